package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rubberband/rubberband/internal/tenant"
	"github.com/rubberband/rubberband/pkg/logger"
	"github.com/rubberband/rubberband/pkg/middleware"
)

// SitesHandler is the owner console API: register sites, rotate secrets,
// manage domains. Every route requires an authenticated owner and only ever
// operates on that owner's sites.
type SitesHandler struct {
	svc *tenant.Service
}

func NewSitesHandler(svc *tenant.Service) *SitesHandler {
	return &SitesHandler{svc: svc}
}

func (h *SitesHandler) Register(rg *gin.RouterGroup, auth middleware.Verifier) {
	g := rg.Group("/api/v1/sites", middleware.AuthMiddleware(auth))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.POST("/:slug/secret", h.RotateSecret)
	g.DELETE("/:slug", h.Delete)
	g.POST("/:slug/domains", h.AddDomain)
	g.DELETE("/:slug/domains/:url", h.RemoveDomain)
}

// siteView is the console-facing shape; unlike the JSON model it carries the
// write secret, which only the owner ever sees.
type siteView struct {
	*tenant.Site
	Secret string `json:"secret"`
}

func view(s *tenant.Site) siteView { return siteView{Site: s, Secret: s.Secret} }

// Create registers a new site and provisions its index.
func (h *SitesHandler) Create(c *gin.Context) {
	var req struct {
		Slug   string `json:"slug" binding:"required"`
		Domain string `json:"domain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub := callerSub(c)
	if sub == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no subject claim"})
		return
	}
	site, err := h.svc.Create(c.Request.Context(), req.Slug, sub, req.Domain)
	if err != nil {
		logger.Errorf("site create: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, view(site))
}

// List returns the caller's sites, secrets included.
func (h *SitesHandler) List(c *gin.Context) {
	sub := callerSub(c)
	if sub == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no subject claim"})
		return
	}
	sites, err := h.svc.ListByOwner(c.Request.Context(), sub)
	if err != nil {
		logger.Errorf("site list: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	out := make([]siteView, 0, len(sites))
	for _, s := range sites {
		out = append(out, view(s))
	}
	c.JSON(http.StatusOK, out)
}

// RotateSecret replaces the write secret; the old one stops working at once.
func (h *SitesHandler) RotateSecret(c *gin.Context) {
	site, ok := h.ownedSite(c)
	if !ok {
		return
	}
	secret, err := h.svc.RotateSecret(c.Request.Context(), site.Slug)
	if err != nil {
		logger.Errorf("secret rotate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rotation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": site.Slug, "secret": secret})
}

// Delete removes the site and drops its entire index.
func (h *SitesHandler) Delete(c *gin.Context) {
	site, ok := h.ownedSite(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), site.Slug); err != nil {
		logger.Errorf("site delete: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SitesHandler) AddDomain(c *gin.Context) {
	site, ok := h.ownedSite(c)
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.svc.AddDomain(c.Request.Context(), site.Slug, req.URL)
	if err != nil {
		logger.Errorf("domain add: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "domain add failed"})
		return
	}
	c.JSON(http.StatusOK, view(updated))
}

func (h *SitesHandler) RemoveDomain(c *gin.Context) {
	site, ok := h.ownedSite(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveDomain(c.Request.Context(), site.Slug, c.Param("url")); err != nil {
		logger.Errorf("domain remove: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "domain remove failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedSite resolves the slug in the path and enforces ownership. Unknown
// slugs and foreign sites both answer 404 so the surface leaks nothing.
func (h *SitesHandler) ownedSite(c *gin.Context) (*tenant.Site, bool) {
	sub := callerSub(c)
	if sub == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no subject claim"})
		return nil, false
	}
	site, err := h.svc.ResolveBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		logger.Errorf("site resolve: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return nil, false
	}
	if site == nil || site.OwnerSub != sub {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown site"})
		return nil, false
	}
	return site, true
}

// callerSub extracts the subject set by the auth middleware.
func callerSub(c *gin.Context) string {
	v, ok := c.Get("claims")
	if !ok {
		return ""
	}
	cm, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	sub, _ := cm["sub"].(string)
	return sub
}
