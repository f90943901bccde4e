package secrets

import (
	"crypto/rand"
	"encoding/base64"

	dErrors "credvault/pkg/domain-errors"
)

// tokenEntropyBytes is the random payload size for opaque tokens. 24 bytes of
// entropy keeps tokens URL-friendly while making guessing infeasible.
const tokenEntropyBytes = 24

// Generate creates a cryptographically secure random secret.
// Returns a base64-encoded string suitable for use as opaque tokens.
func Generate() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateToken creates an opaque token with a type prefix, e.g. "v_" for
// share tokens and "view_" for view tokens. The prefix is part of the wire
// format and lets operators tell token kinds apart in logs and stores.
func GenerateToken(prefix string) (string, error) {
	s, err := Generate()
	if err != nil {
		return "", err
	}
	return prefix + s, nil
}
