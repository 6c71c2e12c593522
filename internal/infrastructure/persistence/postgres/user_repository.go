package postgres

import (
	"context"

	"github.com/klaemsch/authopie/internal/domain/user"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// UserRepository implements user.Repository using PostgreSQL. Roles are
// loaded eagerly: scope derivation happens on every issuance and refresh,
// so a user without roles is a user without scopes.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		u.ID,
		u.Username,
		u.PasswordHash,
		u.Disabled,
		u.CreatedAt,
		u.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return apperrors.ErrEntityAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}

	return nil
}

// GetByUsername retrieves a user with roles by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `
		SELECT id, username, password_hash, disabled, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	u := &user.User{}
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Disabled,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get user")
	}

	roles, err := r.rolesForUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.Roles = roles

	return u, nil
}

// Update persists changes to an existing user.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET password_hash = $2, disabled = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, u.ID, u.PasswordHash, u.Disabled, u.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to update user")
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) rolesForUser(ctx context.Context, u *user.User) ([]user.Role, error) {
	query := `
		SELECT r.id, r.name, r.scopes
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`

	rows, err := r.db.Pool.Query(ctx, query, u.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query roles")
	}
	defer rows.Close()

	var roles []user.Role
	for rows.Next() {
		var role user.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Scopes); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan role")
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "error iterating roles")
	}

	return roles, nil
}
