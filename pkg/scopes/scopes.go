// Package scopes implements scope-based authorization checks on top of
// validated tokens. A Requirement is a named permission together with the
// set of scope values that satisfy it, so a super-scope like "*" can stand
// in for any concrete permission.
package scopes

import (
	"strings"

	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// Requirement is a named permission with the scope aliases that satisfy it.
type Requirement struct {
	// Name is the canonical, user-visible name of the permission. It is
	// safe to disclose in forbidden errors.
	Name string

	// Aliases are all scope values that satisfy the requirement. The
	// canonical scope itself must be listed.
	Aliases []string
}

// New creates a Requirement. The first alias doubles as the display name.
func New(aliases ...string) Requirement {
	name := ""
	if len(aliases) > 0 {
		name = aliases[0]
	}
	return Requirement{Name: name, Aliases: aliases}
}

// Built-in requirements. "*" is the super-scope that satisfies everything;
// AnyAuthenticated is satisfied by any token, scoped or not, via the empty
// alias.
var (
	Wildcard         = New("*")
	ManageUsers      = New("manage-users", "*")
	ManageRoles      = New("manage-roles", "*")
	ManageKeyPairs   = New("manage-key-pairs", "*")
	ManageTokens     = New("manage-tokens", "*")
	AnyAuthenticated = New("")
)

// SatisfiedBy reports whether the given token scopes satisfy the
// requirement: true iff the intersection of tokenScopes and the alias set
// is non-empty. A token with no scopes only satisfies a requirement that
// lists the empty string as an alias.
func (r Requirement) SatisfiedBy(tokenScopes []string) bool {
	for _, alias := range r.Aliases {
		if alias == "" {
			return true
		}
		for _, scope := range tokenScopes {
			if scope == alias {
				return true
			}
		}
	}
	return false
}

// Authorize checks the requirement against the token scopes and returns a
// ForbiddenError naming the requirement on failure.
func (r Requirement) Authorize(tokenScopes []string) error {
	if !r.SatisfiedBy(tokenScopes) {
		return apperrors.NewForbidden(r.Name)
	}
	return nil
}

// Split parses a space-separated scope string into a scope set. Empty
// segments are dropped.
func Split(scope string) []string {
	parts := strings.Fields(scope)
	if len(parts) == 0 {
		return nil
	}
	return parts
}

// Join renders a scope set as a space-separated string.
func Join(scopes []string) string {
	return strings.Join(scopes, " ")
}
