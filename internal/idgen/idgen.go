// Package idgen mints random identifiers for ledger entries and
// credentials.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// random returns n cryptographically random bytes. Entropy exhaustion is
// unrecoverable, so it panics rather than returning an error.
func random(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("idgen: crypto/rand: " + err.Error())
	}
	return b
}

// New returns a fresh 36-character identifier in the canonical
// 8-4-4-4-12 hex layout.
func New() string {
	b := random(16)
	dst := make([]byte, 36)
	hex.Encode(dst[0:8], b[0:4])
	dst[8] = '-'
	hex.Encode(dst[9:13], b[4:6])
	dst[13] = '-'
	hex.Encode(dst[14:18], b[6:8])
	dst[18] = '-'
	hex.Encode(dst[19:23], b[8:10])
	dst[23] = '-'
	hex.Encode(dst[24:36], b[10:16])
	return string(dst)
}

// WithPrefix returns prefix followed by 24 random hex characters, for
// typed identifiers like "badge_3f…".
func WithPrefix(prefix string) string {
	return prefix + hex.EncodeToString(random(12))
}
