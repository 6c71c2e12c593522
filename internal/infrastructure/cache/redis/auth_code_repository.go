package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/klaemsch/authopie/internal/domain/oauth"
	"github.com/klaemsch/authopie/pkg/clock"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

const authCodePrefix = "auth_code:"

// AuthorizationCodeRepository stores authorization codes in Redis with
// auto-expiry. Consume uses GETDEL so fetch and delete are one atomic
// command; of two concurrent redeemers exactly one gets the record.
type AuthorizationCodeRepository struct {
	client *Client
	clock  clock.Clock
}

func NewAuthorizationCodeRepository(client *Client, clk clock.Clock) *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{client: client, clock: clk}
}

type authCodeData struct {
	Code        string    `json:"code"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	Subject     string    `json:"subject"`
	Scope       string    `json:"scope"`
	Nonce       string    `json:"nonce,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store saves the code with TTL. Uses SetNX so a code value can never be
// silently overwritten.
func (r *AuthorizationCodeRepository) Store(ctx context.Context, code *oauth.AuthorizationCode) error {
	key := authCodePrefix + code.Code

	data := authCodeData{
		Code:        code.Code,
		ClientID:    code.ClientID,
		RedirectURI: code.RedirectURI,
		Subject:     code.Subject,
		Scope:       code.Scope,
		Nonce:       code.Nonce,
		ExpiresAt:   code.ExpiresAt,
		CreatedAt:   code.CreatedAt,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal auth code")
	}

	ttl := code.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return apperrors.ErrInvalidInput
	}

	success, err := r.client.SetNX(ctx, key, jsonData, ttl)
	if err != nil {
		return apperrors.Wrap(err, "failed to store auth code")
	}

	if !success {
		return apperrors.ErrEntityAlreadyExists
	}

	return nil
}

// Consume atomically fetches and deletes the code record.
func (r *AuthorizationCodeRepository) Consume(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	key := authCodePrefix + code

	jsonData, err := r.client.GetDel(ctx, key)
	if err != nil {
		if err == goredis.Nil {
			return nil, apperrors.ErrCodeNotFound
		}
		return nil, apperrors.Wrap(err, "failed to consume auth code")
	}

	var data authCodeData
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal auth code")
	}

	return &oauth.AuthorizationCode{
		Code:        data.Code,
		ClientID:    data.ClientID,
		RedirectURI: data.RedirectURI,
		Subject:     data.Subject,
		Scope:       data.Scope,
		Nonce:       data.Nonce,
		ExpiresAt:   data.ExpiresAt,
		CreatedAt:   data.CreatedAt,
	}, nil
}

// DeleteExpired is a no-op for the Redis backend: keys carry their own TTL
// and Redis evicts them. Kept to satisfy the repository contract.
func (r *AuthorizationCodeRepository) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
