// Package chunk splits object payloads into fixed-size, content-addressed
// chunks suitable for de-duplicated storage.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
)

const hashByteSize = sha256.Size

// HashKey is the content-addressed identity of a chunk: the SHA-256 of its
// exact byte content, never of any envelope it's later wrapped in.
type HashKey [hashByteSize]byte

// Sum computes the HashKey of b.
func Sum(b []byte) HashKey {
	return HashKey(sha256.Sum256(b))
}

// Pack copies the first hashByteSize bytes of b into the HashKey.
func (h *HashKey) Pack(b []byte) {
	if len(b) < hashByteSize {
		return
	}
	copy(h[:], b[:hashByteSize])
}

// String returns the canonical lowercase hex digest.
func (h HashKey) String() string {
	return hex.EncodeToString(h[:])
}

// Hex is an alias for String kept for symmetry with callers that read more
// naturally asking for "the hex form" explicitly.
func (h HashKey) Hex() string {
	return h.String()
}

// ParseHashKey decodes a 64-character lowercase hex digest into a HashKey.
func ParseHashKey(s string) (HashKey, error) {
	var h HashKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != hashByteSize {
		return h, errInvalidHashLength
	}
	copy(h[:], b)
	return h, nil
}
