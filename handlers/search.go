package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rubberband/rubberband/internal/errs"
	"github.com/rubberband/rubberband/internal/query"
	"github.com/rubberband/rubberband/pkg/logger"
)

// searchParams are the query keys the search endpoints consume themselves.
// Everything else becomes an exact-match attribute filter.
var searchParams = map[string]struct{}{
	"q":     {},
	"sort":  {},
	"order": {},
	"site":  {},
}

// SearchHandler exposes the read surface. No endpoint here ever sees a
// write secret.
type SearchHandler struct {
	svc *query.Service
}

func NewSearchHandler(svc *query.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

func (h *SearchHandler) Register(r gin.IRoutes) {
	r.GET("/search", h.ContextSearch)
	r.POST("/search", h.ContextSearch)
	r.GET("/:slug", h.SiteSearch)
}

// SiteSearch answers a query scoped to the slug in the path.
func (h *SearchHandler) SiteSearch(c *gin.Context) {
	p := query.Params{
		Term:    c.Query("q"),
		Sort:    c.Query("sort"),
		Order:   c.Query("order"),
		Filters: filterParams(c),
	}
	pages, err := h.svc.SiteSearch(c.Request.Context(), c.Param("slug"), p)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown site"})
			return
		}
		logger.Errorf("site search: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search backend error"})
		return
	}
	c.JSON(http.StatusOK, pages)
}

// ContextSearch resolves the tenant from the caller's context: explicit site
// param for cross-origin consumers, referer path for signed-in platform
// users, a bare landing response for everyone else.
func (h *SearchHandler) ContextSearch(c *gin.Context) {
	ac := authContext(c)
	p := query.Params{
		Site: param(c, "site"),
		Term: param(c, "q"),
	}

	out, err := h.svc.Search(c.Request.Context(), ac, p)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown site"})
			return
		}
		logger.Errorf("context search: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "search backend error"})
		return
	}

	switch out.Kind {
	case query.KindCORS:
		c.JSON(http.StatusOK, gin.H{"results": out.Results, "count": out.Count})
	case query.KindInternal:
		c.JSON(http.StatusOK, out.Pages)
	default:
		c.JSON(http.StatusOK, gin.H{"results": []query.Result{}, "count": 0})
	}
}

// authContext derives the immutable caller context from the request.
func authContext(c *gin.Context) query.AuthContext {
	ac := query.AuthContext{Origin: c.GetHeader("Origin")}
	if ref := c.GetHeader("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil {
			ac.RefererHost = u.Host
			ac.RefererPath = u.Path
		}
	}
	if v, ok := c.Get("claims"); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			if sub, ok := cm["sub"].(string); ok {
				ac.UserSub = sub
			}
		}
	}
	return ac
}

// param reads a key from the query string, falling back to the POST form.
func param(c *gin.Context, key string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return c.PostForm(key)
}

func filterParams(c *gin.Context) map[string]string {
	filters := map[string]string{}
	for k, vs := range c.Request.URL.Query() {
		if _, ok := searchParams[k]; ok {
			continue
		}
		if len(vs) > 0 {
			filters[k] = vs[0]
		}
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}
