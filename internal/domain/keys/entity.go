package keys

import (
	"crypto/rsa"
	"time"
)

// KeyPair is an RSA key pair used for signing tokens. Multiple pairs can be
// valid at once; rotation never mutates or deletes a pair, it only adds new
// ones. Expired pairs are retained so tokens signed before the expiry stay
// verifiable until an external retention sweep removes them.
type KeyPair struct {
	KID           string          // Key ID (appears in the token header)
	PrivateKey    *rsa.PrivateKey // Used for signing (never serialized outward)
	PublicKey     *rsa.PublicKey  // Exposed via JWKS
	PrivateKeyPEM string          // PEM-encoded private key (for storage)
	PublicKeyPEM  string          // PEM-encoded public key (for storage)
	Algorithm     string          // Always RS256 for this service
	CreatedAt     time.Time
	NotAfter      time.Time // Pair must not sign new tokens past this instant
}

// IsValid reports whether the pair may sign new tokens at the given instant.
func (kp *KeyPair) IsValid(now time.Time) bool {
	return now.Before(kp.NotAfter)
}

// JWK represents a JSON Web Key for public key distribution.
type JWK struct {
	KID       string `json:"kid"`
	KeyType   string `json:"kty"`
	Algorithm string `json:"alg"`
	Use       string `json:"use"`
	N         string `json:"n"` // RSA modulus
	E         string `json:"e"` // RSA exponent
}

// JWKS represents a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}
