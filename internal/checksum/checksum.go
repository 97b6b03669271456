// Package checksum computes content digests used for change detection and optimistic edits.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Match reports whether data hashes to want. An empty want always matches.
func Match(data []byte, want string) bool {
	return want == "" || Sum(data) == want
}
