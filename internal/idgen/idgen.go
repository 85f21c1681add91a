// Package idgen generates process-unique short issue ids: a project
// prefix plus the base32 encoding of a random 40-bit value, retried on
// collision against the existing-id set.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// base32Alphabet is Crockford-style (no padding, lowercase, excludes
// ambiguous characters) to keep generated ids easy to read aloud.
const base32Alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// idLength is the number of base32 characters emitted for a 40-bit value
// (40 bits / 5 bits-per-char = 8 characters).
const idLength = 8

const maxAttempts = 64

// Generator allocates collision-free issue ids for one project prefix.
type Generator struct {
	prefix string
}

func New(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// Next returns a new id not present in exists. It consumes only the
// existing-id set and crypto/rand, so it is trivially testable by
// swapping the exists set.
func (g *Generator) Next(exists map[string]bool) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		suffix, err := randomBase32(idLength)
		if err != nil {
			// crypto/rand failing is exceedingly rare (exhausted entropy
			// source); fall back to a UUID-derived suffix rather than
			// leaving the generator unable to make progress.
			suffix = fallbackSuffix()
		}
		id := fmt.Sprintf("%s-%s", g.prefix, suffix)
		if !exists[id] {
			return id, nil
		}
	}
	return "", fmt.Errorf("idgen: exhausted %d attempts without a free id", maxAttempts)
}

func randomBase32(length int) (string, error) {
	raw := make([]byte, (length*5+7)/8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return encodeBase32(raw, length), nil
}

func encodeBase32(data []byte, length int) string {
	var bits uint64
	var nbits uint
	var out strings.Builder
	di := 0
	for out.Len() < length {
		for nbits < 5 && di < len(data) {
			bits = (bits << 8) | uint64(data[di])
			nbits += 8
			di++
		}
		if nbits < 5 {
			bits <<= 5 - nbits
			nbits = 5
		}
		nbits -= 5
		idx := (bits >> nbits) & 0x1f
		out.WriteByte(base32Alphabet[idx])
	}
	return out.String()
}

func fallbackSuffix() string {
	u := uuid.New()
	return encodeBase32(u[:], idLength)
}
