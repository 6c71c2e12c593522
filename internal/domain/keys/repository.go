package keys

import (
	"context"
	"time"
)

// Repository defines the interface for key pair persistence. Implementations
// must tolerate concurrent reads during a rotation write.
type Repository interface {
	// Create persists a new key pair.
	Create(ctx context.Context, pair *KeyPair) error

	// GetByKID retrieves a pair by its Key ID regardless of validity, so
	// tokens signed before a pair expired remain verifiable. Returns
	// errors.ErrKeyNotFound for an unknown kid.
	GetByKID(ctx context.Context, kid string) (*KeyPair, error)

	// GetValid retrieves all pairs with NotAfter later than now.
	GetValid(ctx context.Context, now time.Time) ([]*KeyPair, error)

	// GetAll retrieves every stored pair, valid or not. Used for JWKS so
	// verification keys outlive their signing window.
	GetAll(ctx context.Context) ([]*KeyPair, error)

	// DeleteExpired removes pairs whose NotAfter is before the given cutoff
	// (retention sweep). Returns the number of pairs removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Generator defines the interface for generating new key pairs.
type Generator interface {
	// Generate creates a new RSA key pair valid from now.
	Generate(now time.Time) (*KeyPair, error)
}
