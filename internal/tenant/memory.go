package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used by unit tests and by
// deployments that run without MongoDB.
type MemoryRepository struct {
	mu    sync.RWMutex
	sites map[string]*Site // keyed by slug
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sites: make(map[string]*Site)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sites[s.Slug]; ok {
		return fmt.Errorf("slug %q already registered", s.Slug)
	}
	for _, existing := range r.sites {
		if existing.Secret == s.Secret {
			return fmt.Errorf("secret collision")
		}
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.ID == "" {
		s.ID = "site_" + s.Slug
	}
	cp := *s
	r.sites[s.Slug] = &cp
	return nil
}

func (r *MemoryRepository) GetBySecret(ctx context.Context, secret string) (*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sites {
		if s.Secret == secret {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetBySlug(ctx context.Context, slug string) (*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sites[slug]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerSub string) ([]*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Site{}
	for _, s := range r.sites {
		if s.OwnerSub == ownerSub {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateSecret(ctx context.Context, slug, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[slug]
	if !ok {
		return fmt.Errorf("site %q not found", slug)
	}
	s.Secret = secret
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) SetDomains(ctx context.Context, slug string, domains []Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[slug]
	if !ok {
		return fmt.Errorf("site %q not found", slug)
	}
	s.Domains = append([]Domain(nil), domains...)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sites, slug)
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
