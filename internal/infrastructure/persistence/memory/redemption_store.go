package memory

import (
	"context"
	"sync"
	"time"

	"github.com/klaemsch/authopie/pkg/clock"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// RedemptionStore implements token.RedemptionStore in memory. Tombstones
// are purged lazily once their TTL has passed.
type RedemptionStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	redeemed map[string]time.Time
}

// NewRedemptionStore creates an empty in-memory redemption store.
func NewRedemptionStore(clk clock.Clock) *RedemptionStore {
	return &RedemptionStore{
		clock:    clk,
		redeemed: make(map[string]time.Time),
	}
}

func (r *RedemptionStore) MarkRedeemed(_ context.Context, jti string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	// Lazy purge: a tombstone past its TTL blocks nothing, the token it
	// belonged to has expired on its own.
	for id, expiresAt := range r.redeemed {
		if expiresAt.Before(now) {
			delete(r.redeemed, id)
		}
	}

	if _, ok := r.redeemed[jti]; ok {
		return apperrors.ErrRefreshTokenUsed
	}
	r.redeemed[jti] = now.Add(ttl)
	return nil
}
