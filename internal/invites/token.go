package invites

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	TokenPrefix = "vdi_"
	TokenBytes  = 32
)

// GenerateToken creates a new invite token and its storage hash. The raw
// token is URL-safe and embedded directly in invite links.
func GenerateToken() (token string, hash []byte, err error) {
	randomBytes := make([]byte, TokenBytes)
	_, err = rand.Read(randomBytes)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	token = TokenPrefix + encoded
	hash = HashToken(token)

	return token, hash, nil
}

// HashToken returns the sha256 digest stored in place of the raw token.
func HashToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}

// ValidateTokenFormat checks prefix and payload length without touching the
// store, so malformed tokens are rejected before any query.
func ValidateTokenFormat(token string) bool {
	if len(token) < len(TokenPrefix) {
		return false
	}

	if token[:len(TokenPrefix)] != TokenPrefix {
		return false
	}

	encoded := token[len(TokenPrefix):]
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	return len(decoded) == TokenBytes
}
