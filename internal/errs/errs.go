package errs

import "errors"

// Sentinel errors shared across the ingestion and query services. Handlers
// translate these into HTTP statuses; the services themselves never talk HTTP.
var (
	ErrMissingField       = errors.New("required field missing")
	ErrUnsupportedFormat  = errors.New("unsupported content format")
	ErrUnauthorized       = errors.New("unknown or invalid secret")
	ErrHashMismatch       = errors.New("content hash mismatch")
	ErrIndexCreation      = errors.New("index creation failed")
	ErrNotFound           = errors.New("not found")
	ErrBackendUnavailable = errors.New("index backend unavailable")
)
