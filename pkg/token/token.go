// Package token generates the public identifiers embedded in deep links.
//
// Tokens carry no meaning: they are raw random bytes rendered URL-safe,
// never derived from the content they point at.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
)

// rawBytes is the entropy per token. 8 bytes encode to 11 URL-safe
// characters, enough that collisions are negligible at relay volumes.
const rawBytes = 8

var pattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,}$`)

// Generate returns a new random token. An error from the system
// randomness source is not recoverable and should be treated as fatal.
func Generate() (string, error) {
	buf := make([]byte, rawBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random source: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Valid reports whether s has the shape of a generated token.
// Used to reject malformed deep-link payloads before any store lookup.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
