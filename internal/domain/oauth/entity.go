package oauth

import (
	"time"

	"github.com/google/uuid"
)

// Client is a registered relying party. Immutable reference data.
// Redirect URI matching is exact: wildcard and prefix matching widen the
// redirection attack surface and are not supported.
type Client struct {
	ID           uuid.UUID
	ClientID     string   // Public client identifier
	Name         string   // Human-readable name
	RedirectURIs []string // Allowed redirect URIs, matched exactly
	CreatedAt    time.Time
}

// NewClient creates a new client.
func NewClient(clientID, name string, redirectURIs []string) *Client {
	return &Client{
		ID:           uuid.New(),
		ClientID:     clientID,
		Name:         name,
		RedirectURIs: redirectURIs,
		CreatedAt:    time.Now().UTC(),
	}
}

// ValidateRedirectURI checks if the given URI is in the allowed list.
func (c *Client) ValidateRedirectURI(uri string) bool {
	for _, allowed := range c.RedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode is a one-time code binding a client, redirect URI, and
// principal. It exists in the store at most once per code value; redemption
// is destructive, so a code cannot be redeemed twice even under concurrent
// requests.
type AuthorizationCode struct {
	Code        string // Cryptographically random, non-guessable
	ClientID    string
	RedirectURI string
	Subject     string // Username of the principal the code was issued for
	Scope       string
	Nonce       string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// NewAuthorizationCode creates a code expiring after ttl.
func NewAuthorizationCode(code, clientID, redirectURI, subject, scope, nonce string, now time.Time, ttl time.Duration) *AuthorizationCode {
	return &AuthorizationCode{
		Code:        code,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Subject:     subject,
		Scope:       scope,
		Nonce:       nonce,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
}

// IsExpired checks the code against the given instant.
func (ac *AuthorizationCode) IsExpired(now time.Time) bool {
	return now.After(ac.ExpiresAt)
}
