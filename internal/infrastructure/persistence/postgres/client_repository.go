package postgres

import (
	"context"

	"github.com/klaemsch/authopie/internal/domain/oauth"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// ClientRepository implements oauth.ClientRepository using PostgreSQL.
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new PostgreSQL client repository.
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create persists a new client.
func (r *ClientRepository) Create(ctx context.Context, client *oauth.Client) error {
	query := `
		INSERT INTO clients (id, client_id, name, redirect_uris, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		client.ID,
		client.ClientID,
		client.Name,
		client.RedirectURIs,
		client.CreatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return apperrors.ErrEntityAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create client")
	}

	return nil
}

// GetByClientID retrieves a client by public client_id.
func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*oauth.Client, error) {
	query := `
		SELECT id, client_id, name, redirect_uris, created_at
		FROM clients
		WHERE client_id = $1
	`

	client := &oauth.Client{}
	err := r.db.Pool.QueryRow(ctx, query, clientID).Scan(
		&client.ID,
		&client.ClientID,
		&client.Name,
		&client.RedirectURIs,
		&client.CreatedAt,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrClientNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get client")
	}

	return client, nil
}
