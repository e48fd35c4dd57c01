package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const tokenEntropyBytes = 32

// NewToken generates an opaque refresh token: 32 bytes from crypto/rand,
// base64url without padding.
func NewToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("refresh token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 digest persisted in place of the token.
func HashToken(token string) [sha256.Size]byte {
	return sha256.Sum256([]byte(token))
}
