package postgres

import (
	"context"
	"time"

	"github.com/klaemsch/authopie/internal/domain/oauth"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// AuthorizationCodeRepository implements oauth.AuthorizationCodeRepository
// using PostgreSQL. Consume relies on DELETE ... RETURNING so fetch and
// delete are one statement; of two concurrent redeemers exactly one gets
// the row back.
type AuthorizationCodeRepository struct {
	db *DB
}

// NewAuthorizationCodeRepository creates a new PostgreSQL code repository.
func NewAuthorizationCodeRepository(db *DB) *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{db: db}
}

// Store persists a new authorization code.
func (r *AuthorizationCodeRepository) Store(ctx context.Context, code *oauth.AuthorizationCode) error {
	query := `
		INSERT INTO authorization_codes (code, client_id, redirect_uri, subject, scope, nonce, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		code.Code,
		code.ClientID,
		code.RedirectURI,
		code.Subject,
		code.Scope,
		code.Nonce,
		code.ExpiresAt,
		code.CreatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return apperrors.ErrEntityAlreadyExists
		}
		return apperrors.Wrap(err, "failed to store authorization code")
	}

	return nil
}

// Consume atomically fetches and deletes the code record.
func (r *AuthorizationCodeRepository) Consume(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	query := `
		DELETE FROM authorization_codes
		WHERE code = $1
		RETURNING code, client_id, redirect_uri, subject, scope, nonce, expires_at, created_at
	`

	record := &oauth.AuthorizationCode{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&record.Code,
		&record.ClientID,
		&record.RedirectURI,
		&record.Subject,
		&record.Scope,
		&record.Nonce,
		&record.ExpiresAt,
		&record.CreatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrCodeNotFound
		}
		return nil, apperrors.Wrap(err, "failed to consume authorization code")
	}

	return record, nil
}

// DeleteExpired removes codes that expired before the cutoff.
func (r *AuthorizationCodeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM authorization_codes WHERE expires_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired codes")
	}

	return result.RowsAffected(), nil
}
