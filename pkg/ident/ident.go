// Package ident allocates entity identifiers. Short IDs are opaque random
// strings so they leak neither creation order nor record count; the
// persistence layer's primary-key constraint is the collision backstop.
package ident

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// ShortIDLength is the fixed length of mesh and run identifiers.
const ShortIDLength = 16

// Base-57 alphabet: alphanumerics without the lookalikes 0/O/1/I/l.
const shortAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Betanumeric alphabet used for ARK assigned names, per NOID convention
// (no vowels, so no accidental words).
const noidAlphabet = "0123456789bcdfghjkmnpqrstvwxz"

// NewShortID returns a 16-character opaque identifier.
func NewShortID() string {
	return randomString(shortAlphabet, ShortIDLength)
}

// NewUUID returns a random UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// NewNoid returns an n-character betanumeric ARK assigned name.
func NewNoid(n int) string {
	if n <= 0 {
		n = 8
	}
	return randomString(noidAlphabet, n)
}

func randomString(alphabet string, n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; if it does the
		// process cannot safely allocate identity at all.
		panic(fmt.Sprintf("ident: read random: %v", err))
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
