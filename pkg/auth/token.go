package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SessionTokenPrefix identifies rackbook session tokens
	SessionTokenPrefix = "rbs_"
	// SessionTokenLength is the number of random bytes (32 bytes = 256 bits)
	SessionTokenLength = 32
)

// TokenGenerator generates opaque session tokens. Only the SHA256 hash of a
// token is ever stored.
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new session token and its storage hash.
// Format: rbs_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, SessionTokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = SessionTokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return token, tg.HashToken(token), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, SessionTokenPrefix) {
		return fmt.Errorf("token must start with %q", SessionTokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, SessionTokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}
