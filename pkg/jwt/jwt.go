// Package jwt implements the signed token codec and the claim-level
// validator. Tokens are compact three-part RS256 strings; the signing key's
// kid travels in the header as a lookup hint only and is never trusted for
// authorization decisions.
package jwt

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/klaemsch/authopie/internal/domain/keys"
	"github.com/klaemsch/authopie/pkg/clock"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// Token type discriminators. An access token can never be replayed as a
// refresh token or vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// KeyResolver maps a kid from a token header to the public key that
// verifies it. Returning an error fails verification.
type KeyResolver func(kid string) (*rsa.PublicKey, error)

// Claims is the claim-set carried by both token roles. Access tokens carry
// Scopes; refresh tokens carry only the subject. A claim-set is a value,
// re-created for every issuance and never mutated.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes,omitempty"`
	Type   string   `json:"typ"`
}

// Manager handles token creation and validation.
type Manager struct {
	issuer   string
	audience string
	clock    clock.Clock
}

// NewManager creates a new token manager. All expiry comparisons use the
// given clock.
func NewManager(issuer, audience string, clk clock.Clock) *Manager {
	return &Manager{issuer: issuer, audience: audience, clock: clk}
}

// CreateAccessToken signs an access token carrying the given scopes.
func (m *Manager) CreateAccessToken(pair *keys.KeyPair, subject string, tokenScopes []string, ttl time.Duration) (string, error) {
	return m.create(pair, subject, m.audience, tokenScopes, TypeAccess, ttl)
}

// CreateRefreshToken signs a refresh token. It carries only the subject;
// scopes are re-derived from the principal at redemption time.
func (m *Manager) CreateRefreshToken(pair *keys.KeyPair, subject string, ttl time.Duration) (string, error) {
	return m.create(pair, subject, m.audience, nil, TypeRefresh, ttl)
}

// CreateAPIToken signs an access token with a caller-chosen subject,
// audience, and scope set. The caller must have been authorized before
// this is reached; the codec does not gate it.
func (m *Manager) CreateAPIToken(pair *keys.KeyPair, subject, audience string, tokenScopes []string, ttl time.Duration) (string, error) {
	if audience == "" {
		audience = m.audience
	}
	return m.create(pair, subject, audience, tokenScopes, TypeAccess, ttl)
}

func (m *Manager) create(pair *keys.KeyPair, subject, audience string, tokenScopes []string, typ string, ttl time.Duration) (string, error) {
	now := m.clock.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Scopes: tokenScopes,
		Type:   typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = pair.KID

	signed, err := token.SignedString(pair.PrivateKey)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}

// ValidateAccessToken verifies signature and claim policy for an access
// token and returns its claims.
func (m *Manager) ValidateAccessToken(tokenString string, resolve KeyResolver) (*Claims, error) {
	return m.validate(tokenString, TypeAccess, resolve)
}

// ValidateRefreshToken verifies signature and claim policy for a refresh
// token and returns its claims.
func (m *Manager) ValidateRefreshToken(tokenString string, resolve KeyResolver) (*Claims, error) {
	return m.validate(tokenString, TypeRefresh, resolve)
}

// validate applies all checks: signature against the kid-resolved public
// key, issuer, audience, exp, nbf, iat, required claims, and the type
// discriminator. Every failure collapses to the single opaque
// ErrAuthenticationFailed; the caller can never tell an unknown kid from a
// bad signature or an expired claim.
func (m *Manager) validate(tokenString, wantType string, resolve KeyResolver) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		m.keyFunc(resolve),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, apperrors.ErrAuthenticationFailed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrAuthenticationFailed
	}

	// Required claims beyond what the parser enforces.
	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, apperrors.ErrAuthenticationFailed
	}

	if claims.Type != wantType {
		return nil, apperrors.ErrAuthenticationFailed
	}

	return claims, nil
}

// DecodeAndVerify verifies the signature of a token and returns its claims
// without applying claim-level policy. The kid is read from the header
// untrusted, purely to look up the verification key.
func (m *Manager) DecodeAndVerify(tokenString string, resolve KeyResolver) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		m.keyFunc(resolve),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, apperrors.ErrAuthenticationFailed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, apperrors.ErrAuthenticationFailed
	}

	return claims, nil
}

func (m *Manager) keyFunc(resolve KeyResolver) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing kid in token header")
		}

		return resolve(kid)
	}
}

// ExtractKID extracts the key ID from a token without verifying it.
// Useful for key lookup before validation.
func ExtractKID(tokenString string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", apperrors.Wrap(err, "failed to parse token")
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return "", fmt.Errorf("missing kid in token header")
	}

	return kid, nil
}

// GenerateJWK creates a JWK representation of a key pair's public half.
func GenerateJWK(pair *keys.KeyPair) keys.JWK {
	return keys.JWK{
		KID:       pair.KID,
		KeyType:   "RSA",
		Algorithm: pair.Algorithm,
		Use:       "sig",
		N:         base64.RawURLEncoding.EncodeToString(pair.PublicKey.N.Bytes()),
		E:         base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pair.PublicKey.E)).Bytes()),
	}
}

// GenerateJWKS creates a JWKS from multiple key pairs.
func GenerateJWKS(pairs []*keys.KeyPair) keys.JWKS {
	jwks := keys.JWKS{Keys: make([]keys.JWK, 0, len(pairs))}
	for _, pair := range pairs {
		jwks.Keys = append(jwks.Keys, GenerateJWK(pair))
	}
	return jwks
}
