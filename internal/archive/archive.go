package archive

import "context"

// Archive stores the raw (pre-normalization) body of every ingested document
// so a tenant corpus can be re-normalized and re-indexed later. Objects are
// keyed by <slug>/<fingerprint>.
type Archive interface {
	Put(ctx context.Context, slug, id string, body []byte) error
	Get(ctx context.Context, slug, id string) ([]byte, error)
	Remove(ctx context.Context, slug, id string) error
	RemoveAll(ctx context.Context, slug string) error
}
