package tenant

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/rubberband/rubberband/internal/errs"
	"github.com/rubberband/rubberband/internal/index"
	"github.com/rubberband/rubberband/pkg/logger"
)

const (
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	secretLength   = 24
)

// Service is the tenant registry: it owns the secret→site and slug→site
// mappings and keeps site lifecycle in step with the per-tenant index.
type Service struct {
	repo  Repository
	store index.Store
}

func NewService(repo Repository, store index.Store) *Service {
	return &Service{repo: repo, store: store}
}

// Create registers a new site, generates its write secret and provisions the
// dedicated index. An index provisioning failure rolls the registration back.
func (s *Service) Create(ctx context.Context, slug, ownerSub string, domainURL string) (*Site, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, errs.ErrMissingField
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	site := &Site{
		Slug:     slug,
		Secret:   secret,
		OwnerSub: ownerSub,
		Public:   true,
	}
	if domainURL != "" {
		site.Domains = []Domain{{URL: domainURL, Primary: true}}
	}
	if err := s.repo.Create(ctx, site); err != nil {
		return nil, fmt.Errorf("register site %q: %w", slug, err)
	}
	if err := s.store.EnsureIndex(ctx, slug); err != nil {
		_ = s.repo.Delete(ctx, slug)
		return nil, err
	}
	logger.Infof("registered site %q", slug)
	return site, nil
}

// ResolveBySecret maps a write secret to its site. Unknown secrets resolve to
// (nil, nil); the caller applies its authorization policy.
func (s *Service) ResolveBySecret(ctx context.Context, secret string) (*Site, error) {
	if secret == "" {
		return nil, nil
	}
	return s.repo.GetBySecret(ctx, secret)
}

// ResolveBySlug maps a slug to its site; (nil, nil) on a miss.
func (s *Service) ResolveBySlug(ctx context.Context, slug string) (*Site, error) {
	return s.repo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
}

// ListByOwner returns every site owned by the given user.
func (s *Service) ListByOwner(ctx context.Context, ownerSub string) ([]*Site, error) {
	return s.repo.ListByOwner(ctx, ownerSub)
}

// RotateSecret replaces the site's write secret and returns the new value.
// Readers are unaffected; only future writes need the new secret.
func (s *Service) RotateSecret(ctx context.Context, slug string) (string, error) {
	site, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return "", err
	}
	if site == nil {
		return "", errs.ErrNotFound
	}
	secret, err := generateSecret()
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	if err := s.repo.UpdateSecret(ctx, slug, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// AddDomain attaches a domain to the site; the first domain becomes primary.
func (s *Service) AddDomain(ctx context.Context, slug, url string) (*Site, error) {
	site, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, errs.ErrNotFound
	}
	d := Domain{URL: url, Primary: len(site.Domains) == 0}
	domains := append(site.Domains, d)
	if err := s.repo.SetDomains(ctx, slug, domains); err != nil {
		return nil, err
	}
	site.Domains = domains
	return site, nil
}

// RemoveDomain detaches a domain from the site.
func (s *Service) RemoveDomain(ctx context.Context, slug, url string) error {
	site, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if site == nil {
		return errs.ErrNotFound
	}
	domains := make([]Domain, 0, len(site.Domains))
	for _, d := range site.Domains {
		if d.URL != url {
			domains = append(domains, d)
		}
	}
	return s.repo.SetDomains(ctx, slug, domains)
}

// Delete removes the site record and drops its index; documents do not
// outlive their tenant.
func (s *Service) Delete(ctx context.Context, slug string) error {
	site, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if site == nil {
		return errs.ErrNotFound
	}
	if err := s.store.DropIndex(ctx, slug); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, slug); err != nil {
		return err
	}
	logger.Infof("deleted site %q and its index", slug)
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, secretLength)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = secretAlphabet[n.Int64()]
	}
	return string(b), nil
}
