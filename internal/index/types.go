package index

import (
	"context"
	"time"
)

// Document is the canonical indexed record for one page of a site. ID is the
// content fingerprint; Extra carries writer-supplied attributes outside the
// reserved set, stored verbatim.
type Document struct {
	ID      string
	Path    string
	Body    string
	Created time.Time
	SiteID  string
	Extra   map[string]string
}

// Query describes one search against a single tenant index. A blank Term
// means "list everything". Sort accepts the public sort keys ("datetime",
// "matches"); Order is "asc" or "desc". Filters are exact attribute matches
// AND-ed onto the main query.
type Query struct {
	Term    string
	Sort    string
	Order   string
	Filters map[string]string
	Size    int
}

// Hit is one ranked search result.
type Hit struct {
	Document
	Score float64
}

// Store isolates all index-backend interaction behind per-tenant namespacing.
// Get returns (nil, nil) on a miss; that is an expected outcome, not an error.
type Store interface {
	EnsureIndex(ctx context.Context, slug string) error
	Upsert(ctx context.Context, slug string, doc Document) error
	Get(ctx context.Context, slug, id string) (*Document, error)
	DeleteByPath(ctx context.Context, slug, path string) error
	DeleteAll(ctx context.Context, slug string) error
	DropIndex(ctx context.Context, slug string) error
	Search(ctx context.Context, slug string, q Query) ([]Hit, error)
	Close() error
}

// Public sort keys accepted by Query.Sort.
const (
	SortDatetime = "datetime"
	SortMatches  = "matches"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)
