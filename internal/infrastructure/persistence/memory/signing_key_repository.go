// Package memory provides mutex-guarded in-memory implementations of the
// domain repositories. They carry the same atomicity guarantees as the
// PostgreSQL and Redis backends and are the default stores in tests and
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/klaemsch/authopie/internal/domain/keys"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// SigningKeyRepository implements keys.Repository in memory.
type SigningKeyRepository struct {
	mu    sync.RWMutex
	pairs map[string]*keys.KeyPair
}

// NewSigningKeyRepository creates an empty in-memory key store.
func NewSigningKeyRepository() *SigningKeyRepository {
	return &SigningKeyRepository{pairs: make(map[string]*keys.KeyPair)}
}

func (r *SigningKeyRepository) Create(_ context.Context, pair *keys.KeyPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pairs[pair.KID]; ok {
		return apperrors.ErrEntityAlreadyExists
	}
	r.pairs[pair.KID] = pair
	return nil
}

func (r *SigningKeyRepository) GetByKID(_ context.Context, kid string) (*keys.KeyPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pair, ok := r.pairs[kid]
	if !ok {
		return nil, apperrors.ErrKeyNotFound
	}
	return pair, nil
}

func (r *SigningKeyRepository) GetValid(_ context.Context, now time.Time) ([]*keys.KeyPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var valid []*keys.KeyPair
	for _, pair := range r.pairs {
		if pair.IsValid(now) {
			valid = append(valid, pair)
		}
	}
	return valid, nil
}

func (r *SigningKeyRepository) GetAll(_ context.Context) ([]*keys.KeyPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*keys.KeyPair, 0, len(r.pairs))
	for _, pair := range r.pairs {
		all = append(all, pair)
	}
	return all, nil
}

func (r *SigningKeyRepository) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for kid, pair := range r.pairs {
		if pair.NotAfter.Before(cutoff) {
			delete(r.pairs, kid)
			count++
		}
	}
	return count, nil
}
