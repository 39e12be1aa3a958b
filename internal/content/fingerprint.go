package content

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint returns the deterministic content hash of the raw body bytes,
// expressed as lowercase hex. It doubles as the document identifier and the
// dedup key, so it must stay stable across releases.
func Fingerprint(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}
