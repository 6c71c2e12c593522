package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/klaemsch/authopie/internal/domain/keys"
)

// RSAKeyGenerator generates RSA key pairs for token signing.
type RSAKeyGenerator struct {
	keySize  int
	lifetime time.Duration
	randGen  *RandomGenerator
}

// NewRSAKeyGenerator creates a new RSA key generator.
// keySize should be at least 2048 bits.
func NewRSAKeyGenerator(keySize int, lifetime time.Duration) *RSAKeyGenerator {
	return &RSAKeyGenerator{
		keySize:  keySize,
		lifetime: lifetime,
		randGen:  NewRandomGenerator(),
	}
}

// Generate creates a new key pair valid from now until now + lifetime.
func (g *RSAKeyGenerator) Generate(now time.Time) (*keys.KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, g.keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	kid, err := g.randGen.GenerateKID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key ID: %w", err)
	}

	privateKeyPEM := encodePrivateKey(privateKey)

	publicKeyPEM, err := encodePublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	now = now.UTC()

	return &keys.KeyPair{
		KID:           kid,
		PrivateKey:    privateKey,
		PublicKey:     &privateKey.PublicKey,
		PrivateKeyPEM: privateKeyPEM,
		PublicKeyPEM:  publicKeyPEM,
		Algorithm:     "RS256",
		CreatedAt:     now,
		NotAfter:      now.Add(g.lifetime),
	}, nil
}

// encodePrivateKey encodes an RSA private key to PEM format.
func encodePrivateKey(key *rsa.PrivateKey) string {
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block))
}

// encodePublicKey encodes an RSA public key to PEM format.
func encodePublicKey(key *rsa.PublicKey) (string, error) {
	keyBytes, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	block := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: keyBytes,
	}
	return string(pem.EncodeToMemory(block)), nil
}

// ParsePrivateKey parses a PEM-encoded RSA private key.
func ParsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unknown PEM block type: %s", block.Type)
	}
}

// ParsePublicKey parses a PEM-encoded RSA public key.
func ParsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}

	return rsaKey, nil
}
