// Package digest computes content addresses over canonical record bytes.
// All "has this record changed" checks reduce to comparing the hex strings
// returned here.
package digest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/dmitrijs2005/gophqms/internal/canon"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Digest returns the lowercase hex SHA-256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SumObject canonicalizes v and returns its digest together with the canonical
// bytes that were hashed.
func SumObject(v any) (string, []byte, error) {
	b, err := canon.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return Digest(b), b, nil
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
