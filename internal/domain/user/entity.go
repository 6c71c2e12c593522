package user

import (
	"time"

	"github.com/google/uuid"

	"github.com/klaemsch/authopie/pkg/scopes"
)

// Role grants a set of scopes. Scopes is a space-separated scope string,
// e.g. "manage-users manage-roles".
type Role struct {
	ID     uuid.UUID
	Name   string
	Scopes string
}

// User is the principal tokens are issued to. Token scopes are always
// re-derived from the user's current roles at issuance and refresh time;
// they are never trusted from a presented token.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash []byte
	Roles        []Role
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a user with no roles.
func NewUser(username string, passwordHash []byte) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ScopeSet aggregates the scopes of all roles into a deduplicated set.
func (u *User) ScopeSet() []string {
	seen := make(map[string]struct{})
	var set []string
	for _, role := range u.Roles {
		for _, s := range scopes.Split(role.Scopes) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			set = append(set, s)
		}
	}
	return set
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return !u.Disabled
}
