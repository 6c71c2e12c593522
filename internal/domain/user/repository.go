package user

import (
	"context"
)

// Repository resolves principals. The issuer uses it to re-derive current
// scopes at login and at refresh-token redemption.
type Repository interface {
	// GetByUsername retrieves a user with roles by username. Returns
	// errors.ErrUserNotFound if no such user exists.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Create persists a new user.
	Create(ctx context.Context, u *User) error

	// Update persists changes to an existing user.
	Update(ctx context.Context, u *User) error
}
