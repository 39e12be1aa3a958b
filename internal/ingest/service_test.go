package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rubberband/rubberband/internal/archive"
	"github.com/rubberband/rubberband/internal/content"
	"github.com/rubberband/rubberband/internal/errs"
	"github.com/rubberband/rubberband/internal/index"
	"github.com/rubberband/rubberband/internal/tenant"
)

// countingStore wraps a Store and counts writes so tests can assert the
// zero-side-effect guarantees.
type countingStore struct {
	index.Store
	upserts int
}

func (c *countingStore) Upsert(ctx context.Context, slug string, doc index.Document) error {
	c.upserts++
	return c.Store.Upsert(ctx, slug, doc)
}

type fixture struct {
	svc     *Service
	store   *countingStore
	site    *tenant.Site
	archive *archive.MemoryArchive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bs := index.NewBleveStore("")
	t.Cleanup(func() { _ = bs.Close() })
	cs := &countingStore{Store: bs}

	registry := tenant.NewService(tenant.NewMemoryRepository(), bs)
	site, err := registry.Create(context.Background(), "acme", "user-1", "")
	require.NoError(t, err)

	arc := archive.NewMemoryArchive()
	return &fixture{
		svc:     NewService(registry, cs, arc),
		store:   cs,
		site:    site,
		archive: arc,
	}
}

func validRequest(f *fixture, body string) Request {
	return Request{
		Secret: f.site.Secret,
		Path:   "/docs/intro",
		Format: "plaintext",
		Body:   []byte(body),
	}
}

func TestIngest_StoresDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.svc.Ingest(ctx, validRequest(f, "welcome to acme"))
	require.NoError(t, err)
	require.Equal(t, StatusStored, status)
	require.Equal(t, 1, f.store.upserts)

	id := content.Fingerprint([]byte("welcome to acme"))
	doc, err := f.store.Get(ctx, "acme", id)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "/docs/intro", doc.Path)
	require.Equal(t, "welcome to acme", doc.Body)
	require.Equal(t, f.site.ID, doc.SiteID)

	// raw body is archived under the fingerprint
	raw, err := f.archive.Get(ctx, "acme", id)
	require.NoError(t, err)
	require.Equal(t, []byte("welcome to acme"), raw)
}

func TestIngest_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.svc.Ingest(ctx, validRequest(f, "same body"))
	require.NoError(t, err)
	require.Equal(t, StatusStored, status)

	// second ingest of the identical body is a successful no-op
	status, err = f.svc.Ingest(ctx, validRequest(f, "same body"))
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, status)
	require.Equal(t, 1, f.store.upserts)

	hits, err := f.store.Search(ctx, "acme", index.Query{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestIngest_DifferentPathsSameContentCollide(t *testing.T) {
	// the identifier is the content hash alone, so two paths with identical
	// content share one stored document
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest(f, "shared body")
	_, err := f.svc.Ingest(ctx, req)
	require.NoError(t, err)

	req.Path = "/other/location"
	status, err := f.svc.Ingest(ctx, req)
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, status)
	require.Equal(t, 1, f.store.upserts)
}

func TestIngest_MissingFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, mutate := range map[string]func(*Request){
		"secret": func(r *Request) { r.Secret = "" },
		"path":   func(r *Request) { r.Path = "" },
		"format": func(r *Request) { r.Format = "" },
	} {
		req := validRequest(f, "body")
		mutate(&req)
		_, err := f.svc.Ingest(ctx, req)
		require.True(t, errors.Is(err, errs.ErrMissingField), name)
	}
	require.Zero(t, f.store.upserts)
}

func TestIngest_UnsupportedFormat(t *testing.T) {
	f := newFixture(t)

	req := validRequest(f, "body")
	req.Format = "pdf"
	_, err := f.svc.Ingest(context.Background(), req)
	require.True(t, errors.Is(err, errs.ErrUnsupportedFormat))
	require.Zero(t, f.store.upserts)
}

func TestIngest_UnknownSecret(t *testing.T) {
	f := newFixture(t)

	req := validRequest(f, "body")
	req.Secret = "not-a-real-secret"
	_, err := f.svc.Ingest(context.Background(), req)
	require.True(t, errors.Is(err, errs.ErrUnauthorized))
	require.Zero(t, f.store.upserts)
}

func TestIngest_HashMismatch(t *testing.T) {
	f := newFixture(t)

	req := validRequest(f, "body")
	req.Hash = "deadbeefdeadbeefdeadbeefdeadbeef"
	_, err := f.svc.Ingest(context.Background(), req)
	require.True(t, errors.Is(err, errs.ErrHashMismatch))
	require.Zero(t, f.store.upserts)
}

func TestIngest_HashClaimAccepted(t *testing.T) {
	f := newFixture(t)

	req := validRequest(f, "body")
	req.Hash = content.Fingerprint([]byte("body"))
	status, err := f.svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, StatusStored, status)
}

func TestIngest_ModifiedTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest(f, "dated body")
	req.Modified = "2023-06-15 08:30:00 UTC+0000"
	_, err := f.svc.Ingest(ctx, req)
	require.NoError(t, err)

	doc, err := f.store.Get(ctx, "acme", content.Fingerprint([]byte("dated body")))
	require.NoError(t, err)
	require.NotNil(t, doc)
	want := time.Date(2023, 6, 15, 8, 30, 0, 0, time.UTC)
	require.True(t, want.Equal(doc.Created), "got %v", doc.Created)
}

func TestIngest_MalformedModifiedFallsBackToNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest(f, "badly dated body")
	req.Modified = "last tuesday"
	before := time.Now().UTC().Add(-time.Second)
	status, err := f.svc.Ingest(ctx, req)
	require.NoError(t, err)
	require.Equal(t, StatusStored, status)

	doc, err := f.store.Get(ctx, "acme", content.Fingerprint([]byte("badly dated body")))
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.True(t, doc.Created.After(before))
}

func TestIngest_ExtraAttributesPassThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := validRequest(f, "attributed body")
	req.Extra = map[string]string{"title": "About us", "category": "company"}
	_, err := f.svc.Ingest(ctx, req)
	require.NoError(t, err)

	doc, err := f.store.Get(ctx, "acme", content.Fingerprint([]byte("attributed body")))
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "About us", doc.Extra["title"])
	require.Equal(t, "company", doc.Extra["category"])
}

func TestRemove_ByPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, validRequest(f, "keep"))
	require.NoError(t, err)
	req := validRequest(f, "drop")
	req.Path = "/docs/drop"
	_, err = f.svc.Ingest(ctx, req)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, f.site.Secret, "/docs/drop"))

	hits, err := f.store.Search(ctx, "acme", index.Query{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "/docs/intro", hits[0].Path)
}

func TestRemove_All(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, validRequest(f, "one"))
	require.NoError(t, err)
	req := validRequest(f, "two")
	req.Path = "/two"
	_, err = f.svc.Ingest(ctx, req)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, f.site.Secret, ""))

	hits, err := f.store.Search(ctx, "acme", index.Query{})
	require.NoError(t, err)
	require.Empty(t, hits)
	require.Zero(t, f.archive.Len())
}

func TestRemove_UnknownSecret(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Remove(context.Background(), "bogus", "")
	require.True(t, errors.Is(err, errs.ErrUnauthorized))
}
