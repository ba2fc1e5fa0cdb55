package category

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// tokenBytes gives 256 bits of entropy; encoded length is 43 characters.
const tokenBytes = 32

// GenerateToken returns a new URL-safe public token from a cryptographically
// secure source. Tokens are looked up by exact equality only and are never
// derived from any other Category field.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
