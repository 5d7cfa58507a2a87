package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// tokenBytes is 256 bits of entropy
const tokenBytes = 32

// TokenGenerator issues one-time tokens. Only Digest(token) is ever stored.
type TokenGenerator struct {
	rand io.Reader
}

// NewTokenGenerator reads from r, or crypto/rand when r is nil
func NewTokenGenerator(r io.Reader) *TokenGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &TokenGenerator{rand: r}
}

// Generate returns the plaintext token and its digest
func (g *TokenGenerator) Generate() (token, digest string, err error) {
	b := make([]byte, tokenBytes)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, Digest(token), nil
}

// Digest is the hex SHA-256 of token
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
