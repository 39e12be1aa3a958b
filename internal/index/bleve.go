package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/rubberband/rubberband/internal/errs"
	"github.com/rubberband/rubberband/pkg/logger"
)

// reserved field names inside an indexed record; everything else round-trips
// through Document.Extra.
const (
	fieldPath    = "path"
	fieldBody    = "body"
	fieldCreated = "created"
	fieldSiteID  = "site_id"
)

const defaultSearchSize = 100

// BleveStore keeps one bleve index per tenant slug under a root directory.
// With an empty root every index lives in memory, which is what the unit
// tests use. The only shared mutable state is the map of open handles.
type BleveStore struct {
	mu   sync.RWMutex
	root string
	open map[string]bleve.Index
}

var _ Store = (*BleveStore)(nil)

// NewBleveStore creates a store rooted at dir. Pass "" for memory-only mode.
func NewBleveStore(dir string) *BleveStore {
	return &BleveStore{root: dir, open: make(map[string]bleve.Index)}
}

func indexMapping() *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentMapping()

	doc.AddFieldMappingsAt(fieldBody, bleve.NewTextFieldMapping())

	// path and site_id are matched exactly (delete-by-path, isolation), so
	// they are indexed as single keyword tokens
	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt(fieldPath, pathField)

	siteField := bleve.NewTextFieldMapping()
	siteField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt(fieldSiteID, siteField)

	doc.AddFieldMappingsAt(fieldCreated, bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// EnsureIndex provisions the tenant's index. Safe to call again for an
// existing tenant.
func (s *BleveStore) EnsureIndex(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[slug]; ok {
		return nil
	}

	var (
		idx bleve.Index
		err error
	)
	if s.root == "" {
		idx, err = bleve.NewMemOnly(indexMapping())
	} else {
		path := filepath.Join(s.root, slug)
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping())
		}
	}
	if err != nil {
		return fmt.Errorf("%w: index %q: %v", errs.ErrIndexCreation, slug, err)
	}
	s.open[slug] = idx
	logger.Debugf("index ready for tenant %q", slug)
	return nil
}

// indexFor returns the open handle for a tenant, opening an on-disk index
// lazily after a restart. Indexes are only ever created by EnsureIndex.
func (s *BleveStore) indexFor(slug string) (bleve.Index, error) {
	s.mu.RLock()
	idx, ok := s.open[slug]
	s.mu.RUnlock()
	if ok {
		return idx, nil
	}

	if s.root == "" {
		return nil, fmt.Errorf("%w: no index for tenant %q", errs.ErrBackendUnavailable, slug)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok = s.open[slug]; ok {
		return idx, nil
	}
	idx, err := bleve.Open(filepath.Join(s.root, slug))
	if err != nil {
		return nil, fmt.Errorf("%w: open index %q: %v", errs.ErrBackendUnavailable, slug, err)
	}
	s.open[slug] = idx
	return idx, nil
}

// Upsert writes or overwrites the record keyed by doc.ID.
func (s *BleveStore) Upsert(ctx context.Context, slug string, doc Document) error {
	idx, err := s.indexFor(slug)
	if err != nil {
		return err
	}
	if err := idx.Index(doc.ID, toFields(doc)); err != nil {
		return fmt.Errorf("%w: upsert %s/%s: %v", errs.ErrBackendUnavailable, slug, doc.ID, err)
	}
	return nil
}

// Get is a point lookup by document id. A miss returns (nil, nil).
func (s *BleveStore) Get(ctx context.Context, slug, id string) (*Document, error) {
	idx, err := s.indexFor(slug)
	if err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Size = 1
	req.Fields = []string{"*"}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", errs.ErrBackendUnavailable, slug, id, err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}
	doc := fromFields(res.Hits[0].ID, res.Hits[0].Fields)
	return &doc, nil
}

// DeleteByPath removes every document stored under the given path.
func (s *BleveStore) DeleteByPath(ctx context.Context, slug, path string) error {
	idx, err := s.indexFor(slug)
	if err != nil {
		return err
	}
	tq := bleve.NewTermQuery(path)
	tq.SetField(fieldPath)
	ids, err := s.matchingIDs(ctx, idx, slug, tq)
	if err != nil {
		return err
	}
	return s.deleteIDs(idx, slug, ids)
}

// DeleteAll removes every document in the tenant's index. Not atomic with
// concurrent ingests; a document written mid-deletion may survive.
func (s *BleveStore) DeleteAll(ctx context.Context, slug string) error {
	idx, err := s.indexFor(slug)
	if err != nil {
		return err
	}
	ids, err := s.matchingIDs(ctx, idx, slug, bleve.NewMatchAllQuery())
	if err != nil {
		return err
	}
	return s.deleteIDs(idx, slug, ids)
}

// DropIndex closes and removes the tenant's index entirely. Used when a
// tenant is deleted.
func (s *BleveStore) DropIndex(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.open[slug]; ok {
		if err := idx.Close(); err != nil {
			logger.Warnf("closing index %q: %v", slug, err)
		}
		delete(s.open, slug)
	}
	if s.root != "" {
		if err := os.RemoveAll(filepath.Join(s.root, slug)); err != nil {
			return fmt.Errorf("%w: drop index %q: %v", errs.ErrBackendUnavailable, slug, err)
		}
	}
	return nil
}

// Search executes a structured listing or a free-text query against one
// tenant's index and returns the hits in final order.
func (s *BleveStore) Search(ctx context.Context, slug string, q Query) ([]Hit, error) {
	idx, err := s.indexFor(slug)
	if err != nil {
		return nil, err
	}

	base := buildQuery(q)
	req := bleve.NewSearchRequest(base)
	req.Fields = []string{"*"}
	req.Size = q.Size
	if req.Size <= 0 {
		req.Size = defaultSearchSize
	}
	req.SortBy(sortOrder(q))

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", errs.ErrBackendUnavailable, slug, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{Document: fromFields(h.ID, h.Fields), Score: h.Score})
	}
	return hits, nil
}

// Close closes every open index handle.
func (s *BleveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for slug, idx := range s.open {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close index %q: %w", slug, err)
		}
		delete(s.open, slug)
	}
	return firstErr
}

// buildQuery composes the base query (match-all listing or free-text match)
// with exact attribute filters.
func buildQuery(q Query) query.Query {
	var base query.Query
	if term := strings.TrimSpace(q.Term); term != "" {
		base = bleve.NewMatchQuery(term)
	} else {
		base = bleve.NewMatchAllQuery()
	}
	if len(q.Filters) == 0 {
		return base
	}
	parts := []query.Query{base}
	for field, value := range q.Filters {
		mq := bleve.NewMatchQuery(value)
		mq.SetField(field)
		parts = append(parts, mq)
	}
	return bleve.NewConjunctionQuery(parts...)
}

// sortOrder translates the public sort parameters into a bleve sort spec.
// Listings default to newest-first; free-text queries default to relevance.
// Ties always break by document id ascending so ordering is stable.
func sortOrder(q Query) []string {
	var primary string
	switch q.Sort {
	case SortDatetime:
		primary = "-" + fieldCreated
		if q.Order == OrderAsc {
			primary = fieldCreated
		}
	case SortMatches:
		primary = "-_score"
		if q.Order == OrderAsc {
			primary = "_score"
		}
	default:
		if strings.TrimSpace(q.Term) == "" {
			primary = "-" + fieldCreated
		} else {
			primary = "-_score"
		}
	}
	return []string{primary, "_id"}
}

func (s *BleveStore) matchingIDs(ctx context.Context, idx bleve.Index, slug string, q query.Query) ([]string, error) {
	count, err := idx.DocCount()
	if err != nil {
		return nil, fmt.Errorf("%w: doc count %q: %v", errs.ErrBackendUnavailable, slug, err)
	}
	if count == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = int(count)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: collect ids %q: %v", errs.ErrBackendUnavailable, slug, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func (s *BleveStore) deleteIDs(idx bleve.Index, slug string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("%w: delete batch %q: %v", errs.ErrBackendUnavailable, slug, err)
	}
	return nil
}

func toFields(doc Document) map[string]interface{} {
	fields := map[string]interface{}{
		fieldPath:    doc.Path,
		fieldBody:    doc.Body,
		fieldCreated: doc.Created,
		fieldSiteID:  doc.SiteID,
	}
	for k, v := range doc.Extra {
		if _, reserved := fields[k]; !reserved {
			fields[k] = v
		}
	}
	return fields
}

func fromFields(id string, fields map[string]interface{}) Document {
	doc := Document{ID: id, Extra: map[string]string{}}
	for k, v := range fields {
		text, _ := v.(string)
		switch k {
		case fieldPath:
			doc.Path = text
		case fieldBody:
			doc.Body = text
		case fieldSiteID:
			doc.SiteID = text
		case fieldCreated:
			if t, err := time.Parse(time.RFC3339, text); err == nil {
				doc.Created = t
			}
		default:
			doc.Extra[k] = text
		}
	}
	return doc
}
