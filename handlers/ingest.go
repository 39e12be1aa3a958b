package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rubberband/rubberband/internal/errs"
	"github.com/rubberband/rubberband/internal/ingest"
	"github.com/rubberband/rubberband/pkg/logger"
)

// reservedParams are the query keys the write endpoints consume themselves.
// Everything else on /add is copied through as an extra document attribute.
var reservedParams = map[string]struct{}{
	"secret":   {},
	"url":      {},
	"path":     {},
	"format":   {},
	"modified": {},
	"hash":     {},
}

// IngestHandler exposes the write surface: push content, unindex content.
type IngestHandler struct {
	svc     *ingest.Service
	maxBody int64
}

func NewIngestHandler(svc *ingest.Service, maxBody int64) *IngestHandler {
	return &IngestHandler{svc: svc, maxBody: maxBody}
}

func (h *IngestHandler) Register(r gin.IRoutes) {
	r.POST("/add", h.Add)
	r.POST("/remove", h.Remove)
}

// Add accepts raw content bytes plus query parameters and indexes the
// document. Success and dedup both answer 200 with an empty body.
func (h *IngestHandler) Add(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}

	req := ingest.Request{
		Secret:   c.Query("secret"),
		Path:     c.Query("path"),
		Format:   c.Query("format"),
		Hash:     c.Query("hash"),
		Modified: c.Query("modified"),
		Body:     body,
		Extra:    extraParams(c),
	}

	if _, err := h.svc.Ingest(c.Request.Context(), req); err != nil {
		status, msg := ingestStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.Status(http.StatusOK)
}

// Remove unindexes one path, or the caller's whole corpus when path is absent.
func (h *IngestHandler) Remove(c *gin.Context) {
	secret := c.Query("secret")
	path := c.Query("path")
	if err := h.svc.Remove(c.Request.Context(), secret, path); err != nil {
		status, msg := ingestStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.Status(http.StatusOK)
}

func (h *IngestHandler) readBody(c *gin.Context) ([]byte, error) {
	r := io.Reader(c.Request.Body)
	if h.maxBody > 0 {
		r = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
	return io.ReadAll(r)
}

// extraParams collects every non-reserved query key. Multi-valued keys keep
// their first value, matching how the reserved keys are read.
func extraParams(c *gin.Context) map[string]string {
	extra := map[string]string{}
	for k, vs := range c.Request.URL.Query() {
		if _, ok := reservedParams[k]; ok {
			continue
		}
		if len(vs) > 0 {
			extra[k] = vs[0]
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// ingestStatus maps service errors onto write-endpoint HTTP statuses.
func ingestStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrMissingField),
		errors.Is(err, errs.ErrUnsupportedFormat),
		errors.Is(err, errs.ErrHashMismatch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errs.ErrIndexCreation), errors.Is(err, errs.ErrBackendUnavailable):
		return http.StatusBadGateway, err.Error()
	default:
		logger.Errorf("ingest: %v", err)
		return http.StatusInternalServerError, "internal error"
	}
}
