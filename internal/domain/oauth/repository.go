package oauth

import (
	"context"
	"time"
)

// ClientRepository is the read-only client registry consulted during the
// authorization-code flow.
type ClientRepository interface {
	// Create persists a new client.
	Create(ctx context.Context, client *Client) error

	// GetByClientID retrieves a client by public client_id. Returns
	// errors.ErrClientNotFound if unknown.
	GetByClientID(ctx context.Context, clientID string) (*Client, error)
}

// AuthorizationCodeRepository stores one-time authorization codes.
type AuthorizationCodeRepository interface {
	// Store saves a code. Storing a code value that already exists is an
	// error (codes are unique by construction; a collision means the
	// random source is broken).
	Store(ctx context.Context, code *AuthorizationCode) error

	// Consume atomically fetches and deletes the code record. Of any number
	// of concurrent consumers of the same code, exactly one receives the
	// record; the rest get errors.ErrCodeNotFound. The returned record may
	// already be expired - callers must check, the code is gone either way.
	Consume(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteExpired removes codes that expired before the cutoff
	// (background sweep). Returns the number of codes removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
