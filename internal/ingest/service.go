package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rubberband/rubberband/internal/archive"
	"github.com/rubberband/rubberband/internal/content"
	"github.com/rubberband/rubberband/internal/errs"
	"github.com/rubberband/rubberband/internal/index"
	"github.com/rubberband/rubberband/internal/tenant"
	"github.com/rubberband/rubberband/pkg/logger"
	"github.com/rubberband/rubberband/pkg/metrics"
)

// ModifiedLayout is the fixed timestamp format accepted for the `modified`
// field, e.g. "2024-03-01 12:30:00 UTC+0000".
const ModifiedLayout = "2006-01-02 15:04:05 MST-0700"

// Registry resolves write secrets to sites; implemented by tenant.Service.
type Registry interface {
	ResolveBySecret(ctx context.Context, secret string) (*tenant.Site, error)
}

// Request carries one content push. Extra holds every writer-supplied
// attribute outside the reserved parameter set.
type Request struct {
	Secret   string
	Path     string
	Format   string
	Hash     string
	Modified string
	Body     []byte
	Extra    map[string]string
}

// Status reports how an accepted ingest terminated.
type Status int

const (
	// StatusStored means the document was normalized and written.
	StatusStored Status = iota
	// StatusDuplicate means an identical body was already indexed and the
	// request was a no-op.
	StatusDuplicate
)

// Service validates, deduplicates and indexes incoming content.
type Service struct {
	registry Registry
	store    index.Store
	archive  archive.Archive // nil disables raw-body archiving
}

func NewService(registry Registry, store index.Store, arc archive.Archive) *Service {
	return &Service{registry: registry, store: store, archive: arc}
}

// Ingest runs the pipeline: validate, resolve tenant, fingerprint, dedup,
// normalize, persist. Validation failures leave the index untouched; a dedup
// hit is a successful no-op.
func (s *Service) Ingest(ctx context.Context, req Request) (Status, error) {
	if req.Secret == "" || req.Path == "" || req.Format == "" {
		metrics.IngestRejected.WithLabelValues("missing_field").Inc()
		return 0, errs.ErrMissingField
	}

	format, err := content.ParseFormat(req.Format)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("unsupported_format").Inc()
		return 0, err
	}

	site, err := s.registry.ResolveBySecret(ctx, req.Secret)
	if err != nil {
		return 0, fmt.Errorf("resolve secret: %w", err)
	}
	if site == nil {
		metrics.IngestRejected.WithLabelValues("unauthorized").Inc()
		return 0, errs.ErrUnauthorized
	}

	fingerprint := content.Fingerprint(req.Body)
	if req.Hash != "" && req.Hash != fingerprint {
		metrics.IngestRejected.WithLabelValues("hash_mismatch").Inc()
		return 0, fmt.Errorf("%w: claimed %s, computed %s", errs.ErrHashMismatch, req.Hash, fingerprint)
	}

	// A malformed or absent timestamp never aborts the ingest.
	created := time.Now().UTC()
	if req.Modified != "" {
		if t, perr := time.Parse(ModifiedLayout, req.Modified); perr == nil {
			created = t
		} else {
			logger.Debugf("ignoring malformed modified timestamp %q for %s", req.Modified, site.Slug)
		}
	}

	existing, err := s.store.Get(ctx, site.Slug, fingerprint)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		metrics.IngestDeduplicated.Inc()
		logger.Debugf("dedup hit for %s/%s", site.Slug, fingerprint)
		return StatusDuplicate, nil
	}

	body, err := content.Normalize(req.Body, format)
	if err != nil {
		metrics.IngestRejected.WithLabelValues("normalize").Inc()
		return 0, err
	}

	doc := index.Document{
		ID:      fingerprint,
		Path:    req.Path,
		Body:    body,
		Created: created,
		SiteID:  site.ID,
		Extra:   req.Extra,
	}
	if err := s.store.Upsert(ctx, site.Slug, doc); err != nil {
		return 0, err
	}

	if s.archive != nil {
		if err := s.archive.Put(ctx, site.Slug, fingerprint, req.Body); err != nil {
			// the document is indexed; a failed archive write is not fatal
			logger.Warnf("archiving %s/%s failed: %v", site.Slug, fingerprint, err)
		}
	}

	metrics.IngestAccepted.Inc()
	return StatusStored, nil
}

// Remove unindexes content. An empty path removes the tenant's entire corpus.
func (s *Service) Remove(ctx context.Context, secret, path string) error {
	if secret == "" {
		return errs.ErrMissingField
	}
	site, err := s.registry.ResolveBySecret(ctx, secret)
	if err != nil {
		return fmt.Errorf("resolve secret: %w", err)
	}
	if site == nil {
		return errs.ErrUnauthorized
	}

	if path != "" {
		if err := s.store.DeleteByPath(ctx, site.Slug, path); err != nil {
			return err
		}
		logger.Infof("unindexed %s%s", site.Slug, path)
		return nil
	}

	if err := s.store.DeleteAll(ctx, site.Slug); err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.RemoveAll(ctx, site.Slug); err != nil {
			logger.Warnf("clearing archive for %s failed: %v", site.Slug, err)
		}
	}
	logger.Infof("unindexed all content for %s", site.Slug)
	return nil
}
