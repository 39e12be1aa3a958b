package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rubberband/rubberband/internal/index"
	"github.com/rubberband/rubberband/internal/ingest"
	"github.com/rubberband/rubberband/internal/query"
	"github.com/rubberband/rubberband/internal/tenant"
	"github.com/stretchr/testify/require"
)

type writeFixture struct {
	router *gin.Engine
	site   *tenant.Site
	store  index.Store
}

func newWriteFixture(t *testing.T) *writeFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := index.NewBleveStore("")
	t.Cleanup(func() { _ = store.Close() })

	tenants := tenant.NewService(tenant.NewMemoryRepository(), store)
	site, err := tenants.Create(context.Background(), "acme", "owner-1", "https://acme.example")
	require.NoError(t, err)

	ing := ingest.NewService(tenants, store, nil)
	r := gin.New()
	NewIngestHandler(ing, 1<<20).Register(r)
	NewSearchHandler(query.NewService(tenants, store, "rubberband.io")).Register(r)
	return &writeFixture{router: r, site: site, store: store}
}

func (f *writeFixture) add(t *testing.T, params url.Values, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/add?"+params.Encode(), strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAdd_StoresAndLists(t *testing.T) {
	f := newWriteFixture(t)

	params := url.Values{}
	params.Set("secret", f.site.Secret)
	params.Set("path", "/about")
	params.Set("format", "plaintext")
	params.Set("title", "About us")
	w := f.add(t, params, "all about the acme corporation")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())

	// visible through the scoped search endpoint
	req := httptest.NewRequest("GET", "/acme", nil)
	w2 := httptest.NewRecorder()
	f.router.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var pages []map[string]interface{}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &pages))
	require.Len(t, pages, 1)
	require.Equal(t, "/about", pages[0]["path"])
	extra, _ := pages[0]["extra"].(map[string]interface{})
	require.Equal(t, "About us", extra["title"])
}

func TestAdd_DuplicateIsOK(t *testing.T) {
	f := newWriteFixture(t)

	params := url.Values{}
	params.Set("secret", f.site.Secret)
	params.Set("path", "/about")
	params.Set("format", "plaintext")

	require.Equal(t, http.StatusOK, f.add(t, params, "same body").Code)
	require.Equal(t, http.StatusOK, f.add(t, params, "same body").Code)
}

func TestAdd_MissingFields(t *testing.T) {
	f := newWriteFixture(t)

	params := url.Values{}
	params.Set("secret", f.site.Secret)
	params.Set("format", "plaintext")
	w := f.add(t, params, "no path given")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdd_UnsupportedFormat(t *testing.T) {
	f := newWriteFixture(t)

	params := url.Values{}
	params.Set("secret", f.site.Secret)
	params.Set("path", "/x")
	params.Set("format", "pdf")
	w := f.add(t, params, "binary stuff")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdd_UnknownSecret(t *testing.T) {
	f := newWriteFixture(t)

	params := url.Values{}
	params.Set("secret", "nobody-knows-this-secret")
	params.Set("path", "/x")
	params.Set("format", "plaintext")
	w := f.add(t, params, "body")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdd_HashMismatch(t *testing.T) {
	f := newWriteFixture(t)

	params := url.Values{}
	params.Set("secret", f.site.Secret)
	params.Set("path", "/x")
	params.Set("format", "plaintext")
	params.Set("hash", strings.Repeat("0", 32))
	w := f.add(t, params, "body that hashes differently")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdd_BodyTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := index.NewBleveStore("")
	t.Cleanup(func() { _ = store.Close() })
	tenants := tenant.NewService(tenant.NewMemoryRepository(), store)
	site, err := tenants.Create(context.Background(), "tiny", "owner-1", "")
	require.NoError(t, err)

	r := gin.New()
	NewIngestHandler(ingest.NewService(tenants, store, nil), 8).Register(r)

	params := url.Values{}
	params.Set("secret", site.Secret)
	params.Set("path", "/big")
	params.Set("format", "plaintext")
	req := httptest.NewRequest("POST", "/add?"+params.Encode(), strings.NewReader("this body is longer than eight bytes"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRemove_ByPathAndAll(t *testing.T) {
	f := newWriteFixture(t)

	for _, doc := range []struct{ path, body string }{
		{"/a", "first page"},
		{"/b", "second page"},
	} {
		params := url.Values{}
		params.Set("secret", f.site.Secret)
		params.Set("path", doc.path)
		params.Set("format", "plaintext")
		require.Equal(t, http.StatusOK, f.add(t, params, doc.body).Code)
	}

	// remove one path
	params := url.Values{}
	params.Set("secret", f.site.Secret)
	params.Set("path", "/a")
	req := httptest.NewRequest("POST", "/remove?"+params.Encode(), nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	hits, err := f.store.Search(context.Background(), "acme", index.Query{})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// remove everything
	params.Del("path")
	req = httptest.NewRequest("POST", "/remove?"+params.Encode(), nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	hits, err = f.store.Search(context.Background(), "acme", index.Query{})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestRemove_UnknownSecret(t *testing.T) {
	f := newWriteFixture(t)

	req := httptest.NewRequest("POST", "/remove?secret=bogus", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
