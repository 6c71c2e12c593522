package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	domainkeys "github.com/klaemsch/authopie/internal/domain/keys"
	"github.com/klaemsch/authopie/internal/infrastructure/crypto"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// SigningKeyRepository implements keys.Repository using PostgreSQL.
// Key material is stored PEM-encoded; the parsed crypto handles are
// rebuilt on every read.
type SigningKeyRepository struct {
	db *DB
}

// NewSigningKeyRepository creates a new PostgreSQL signing key repository.
func NewSigningKeyRepository(db *DB) *SigningKeyRepository {
	return &SigningKeyRepository{db: db}
}

// Create persists a new key pair.
func (r *SigningKeyRepository) Create(ctx context.Context, pair *domainkeys.KeyPair) error {
	query := `
		INSERT INTO key_pairs (kid, private_key, public_key, algorithm, created_at, not_after)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		pair.KID,
		pair.PrivateKeyPEM,
		pair.PublicKeyPEM,
		pair.Algorithm,
		pair.CreatedAt,
		pair.NotAfter,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return apperrors.ErrEntityAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create key pair")
	}

	return nil
}

// GetByKID retrieves a pair by its Key ID, expired or not.
func (r *SigningKeyRepository) GetByKID(ctx context.Context, kid string) (*domainkeys.KeyPair, error) {
	query := `
		SELECT kid, private_key, public_key, algorithm, created_at, not_after
		FROM key_pairs
		WHERE kid = $1
	`

	pair, err := r.scanPair(r.db.Pool.QueryRow(ctx, query, kid))
	if err != nil {
		if apperrors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrKeyNotFound
		}
		return nil, err
	}

	return pair, nil
}

// GetValid retrieves all pairs still inside their validity window.
func (r *SigningKeyRepository) GetValid(ctx context.Context, now time.Time) ([]*domainkeys.KeyPair, error) {
	query := `
		SELECT kid, private_key, public_key, algorithm, created_at, not_after
		FROM key_pairs
		WHERE not_after > $1
		ORDER BY created_at DESC
	`

	return r.scanPairs(ctx, query, now)
}

// GetAll retrieves every stored pair.
func (r *SigningKeyRepository) GetAll(ctx context.Context) ([]*domainkeys.KeyPair, error) {
	query := `
		SELECT kid, private_key, public_key, algorithm, created_at, not_after
		FROM key_pairs
		ORDER BY created_at DESC
	`

	return r.scanPairs(ctx, query)
}

// DeleteExpired removes pairs that expired before the cutoff.
func (r *SigningKeyRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM key_pairs WHERE not_after < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired key pairs")
	}

	return result.RowsAffected(), nil
}

// scanPair scans a single key pair from a row and parses its PEM material.
func (r *SigningKeyRepository) scanPair(row pgx.Row) (*domainkeys.KeyPair, error) {
	pair := &domainkeys.KeyPair{}

	err := row.Scan(
		&pair.KID,
		&pair.PrivateKeyPEM,
		&pair.PublicKeyPEM,
		&pair.Algorithm,
		&pair.CreatedAt,
		&pair.NotAfter,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, pgx.ErrNoRows
		}
		return nil, apperrors.Wrap(err, "failed to scan key pair")
	}

	if err := r.parseKeys(pair); err != nil {
		return nil, err
	}

	return pair, nil
}

func (r *SigningKeyRepository) scanPairs(ctx context.Context, query string, args ...any) ([]*domainkeys.KeyPair, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query key pairs")
	}
	defer rows.Close()

	var pairs []*domainkeys.KeyPair
	for rows.Next() {
		pair := &domainkeys.KeyPair{}
		err := rows.Scan(
			&pair.KID,
			&pair.PrivateKeyPEM,
			&pair.PublicKeyPEM,
			&pair.Algorithm,
			&pair.CreatedAt,
			&pair.NotAfter,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan key pair")
		}
		if err := r.parseKeys(pair); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "error iterating key pairs")
	}

	return pairs, nil
}

func (r *SigningKeyRepository) parseKeys(pair *domainkeys.KeyPair) error {
	privateKey, err := crypto.ParsePrivateKey(pair.PrivateKeyPEM)
	if err != nil {
		return apperrors.Wrap(err, "failed to parse private key")
	}
	pair.PrivateKey = privateKey

	publicKey, err := crypto.ParsePublicKey(pair.PublicKeyPEM)
	if err != nil {
		return apperrors.Wrap(err, "failed to parse public key")
	}
	pair.PublicKey = publicKey

	return nil
}
