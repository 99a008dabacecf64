// Package md5 provides MD5 hashing utilities for cache addressing.
package md5

import (
	"crypto/md5" // #nosec G501 -- addresses storage slots by URL, not a security boundary.
	"encoding/hex"
)

// Hasher implements cache.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) string {
	sum := md5.Sum(data) // #nosec G401 -- see package comment.
	return hex.EncodeToString(sum[:])
}
