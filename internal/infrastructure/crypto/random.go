package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// RandomGenerator provides cryptographically secure random value generation.
type RandomGenerator struct{}

// NewRandomGenerator creates a new random generator.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// GenerateToken generates length random bytes as a URL-safe base64 string.
func (g *RandomGenerator) GenerateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateAuthorizationCode generates an authorization code (256 bits).
// Collision-resistant and non-guessable.
func (g *RandomGenerator) GenerateAuthorizationCode() (string, error) {
	return g.GenerateToken(32)
}

// GenerateKID generates a key ID for signing key pairs.
func (g *RandomGenerator) GenerateKID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate key ID: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
