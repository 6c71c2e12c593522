package memory

import (
	"context"
	"sync"
	"time"

	"github.com/klaemsch/authopie/internal/domain/oauth"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// AuthorizationCodeRepository implements oauth.AuthorizationCodeRepository
// in memory. Consume holds the write lock across the lookup and the delete,
// which is what makes redemption at-most-once.
type AuthorizationCodeRepository struct {
	mu    sync.Mutex
	codes map[string]*oauth.AuthorizationCode
}

// NewAuthorizationCodeRepository creates an empty in-memory code store.
func NewAuthorizationCodeRepository() *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{codes: make(map[string]*oauth.AuthorizationCode)}
}

func (r *AuthorizationCodeRepository) Store(_ context.Context, code *oauth.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[code.Code]; ok {
		return apperrors.ErrEntityAlreadyExists
	}
	r.codes[code.Code] = code
	return nil
}

func (r *AuthorizationCodeRepository) Consume(_ context.Context, code string) (*oauth.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.codes[code]
	if !ok {
		return nil, apperrors.ErrCodeNotFound
	}
	delete(r.codes, code)
	return record, nil
}

func (r *AuthorizationCodeRepository) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for value, record := range r.codes {
		if record.ExpiresAt.Before(cutoff) {
			delete(r.codes, value)
			count++
		}
	}
	return count, nil
}
