package query

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rubberband/rubberband/internal/errs"
	"github.com/rubberband/rubberband/internal/index"
	"github.com/rubberband/rubberband/internal/tenant"
	"github.com/rubberband/rubberband/pkg/metrics"
)

const snippetRunes = 160

// Registry is the read side of tenant resolution; implemented by
// tenant.Service. Reads never touch the write secret.
type Registry interface {
	ResolveBySlug(ctx context.Context, slug string) (*tenant.Site, error)
}

// Params are the caller-supplied query parameters of one search.
type Params struct {
	// Site names the tenant explicitly; only honored for cross-origin
	// callers, where no referer heuristic applies.
	Site    string
	Term    string
	Sort    string
	Order   string
	Filters map[string]string
}

// Page is one result of a scoped site search.
type Page struct {
	Path    string            `json:"path"`
	Body    string            `json:"body"`
	Created time.Time         `json:"created"`
	Extra   map[string]string `json:"extra,omitempty"`
	Score   float64           `json:"score"`
}

// Result is one entry of the structured cross-origin response.
type Result struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Redirect string `json:"redirect"`
	Snippet  string `json:"snippet"`
}

// PagePair is the simplified (url, body) shape returned to authenticated
// platform callers.
type PagePair struct {
	URL  string `json:"url"`
	Body string `json:"body"`
}

// Outcome kinds for the context-driven search entry point.
const (
	KindCORS     = "cors"
	KindInternal = "internal"
	KindLanding  = "landing"
)

// Outcome is the result of a context search; exactly the fields for its Kind
// are set.
type Outcome struct {
	Kind    string
	Results []Result
	Count   int
	Pages   []PagePair
}

// Service answers read queries. It is stateless; tenant scoping comes from
// the slug or the AuthContext, never from a write secret.
type Service struct {
	registry     Registry
	store        index.Store
	platformHost string
}

func NewService(registry Registry, store index.Store, platformHost string) *Service {
	return &Service{registry: registry, store: store, platformHost: platformHost}
}

// SiteSearch runs a query scoped to one known tenant slug. Without a term it
// returns the full listing, newest first.
func (s *Service) SiteSearch(ctx context.Context, slug string, p Params) ([]Page, error) {
	site, err := s.registry.ResolveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, errs.ErrNotFound
	}
	metrics.SearchQueries.WithLabelValues("scoped").Inc()

	hits, err := s.store.Search(ctx, site.Slug, index.Query{
		Term:    p.Term,
		Sort:    p.Sort,
		Order:   p.Order,
		Filters: p.Filters,
	})
	if err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(hits))
	for _, h := range hits {
		pages = append(pages, Page{
			Path:    h.Path,
			Body:    h.Body,
			Created: h.Created,
			Extra:   h.Extra,
			Score:   h.Score,
		})
	}
	return pages, nil
}

// Search is the context-driven entry point behind the shared search endpoint.
// The branch taken depends only on the AuthContext the boundary built.
func (s *Service) Search(ctx context.Context, ac AuthContext, p Params) (*Outcome, error) {
	switch {
	case ac.CrossOrigin():
		return s.corsSearch(ctx, p)
	case ac.Authenticated() && ac.RefererHost == s.platformHost:
		return s.internalSearch(ctx, ac, p)
	default:
		// anonymous, same-host, no tenant signal: the landing surface
		// computes no results
		metrics.SearchQueries.WithLabelValues("landing").Inc()
		return &Outcome{Kind: KindLanding}, nil
	}
}

// corsSearch serves external API consumers: the tenant comes from the
// explicit site parameter and results are shaped for embedding.
func (s *Service) corsSearch(ctx context.Context, p Params) (*Outcome, error) {
	site, err := s.registry.ResolveBySlug(ctx, p.Site)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, errs.ErrNotFound
	}
	metrics.SearchQueries.WithLabelValues("cors").Inc()

	hits, err := s.store.Search(ctx, site.Slug, index.Query{
		Term:    p.Term,
		Sort:    p.Sort,
		Order:   p.Order,
		Filters: p.Filters,
	})
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(site.PrimaryDomain(), "/")
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Title:    titleOf(h.Document),
			URL:      base + h.Path,
			Redirect: h.Path,
			Snippet:  snippet(h.Body),
		})
	}
	return &Outcome{Kind: KindCORS, Results: results, Count: len(results)}, nil
}

// internalSearch serves authenticated platform users browsing their own
// site pages; the tenant slug is the first segment of the referring path.
func (s *Service) internalSearch(ctx context.Context, ac AuthContext, p Params) (*Outcome, error) {
	slug := refererSlug(ac.RefererPath)
	site, err := s.registry.ResolveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, errs.ErrNotFound
	}
	metrics.SearchQueries.WithLabelValues("internal").Inc()

	hits, err := s.store.Search(ctx, site.Slug, index.Query{Term: p.Term})
	if err != nil {
		return nil, err
	}
	pages := make([]PagePair, 0, len(hits))
	for _, h := range hits {
		pages = append(pages, PagePair{URL: h.Path, Body: h.Body})
	}
	return &Outcome{Kind: KindInternal, Pages: pages}, nil
}

// refererSlug extracts the tenant slug from a referring path like
// "/acme/dashboard".
func refererSlug(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return strings.ToLower(path)
}

func titleOf(doc index.Document) string {
	if t := doc.Extra["title"]; t != "" {
		return t
	}
	return doc.Path
}

func snippet(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(body) <= snippetRunes {
		return body
	}
	runes := []rune(body)
	cut := string(runes[:snippetRunes])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
