package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SessionTokenLength is the number of random bytes in a session token (32 bytes = 256 bits)
const SessionTokenLength = 32

// GenerateSessionToken returns a new opaque session token: 32 random bytes, hex encoded
func GenerateSessionToken() (string, error) {
	b := make([]byte, SessionTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TokenPrefix returns the first 8 characters of a token for log correlation
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
