package redis

import (
	"context"
	"time"

	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

const redeemedPrefix = "redeemed_jti:"

// RedemptionStore records redeemed refresh-token IDs in Redis. SETNX makes
// the claim atomic: of any number of concurrent redeemers of the same
// token exactly one wins the tombstone.
type RedemptionStore struct {
	client *Client
}

func NewRedemptionStore(client *Client) *RedemptionStore {
	return &RedemptionStore{client: client}
}

// MarkRedeemed atomically records the jti as redeemed for ttl.
func (r *RedemptionStore) MarkRedeemed(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token already expired on its own; nothing left to block.
		return nil
	}

	key := redeemedPrefix + jti

	success, err := r.client.SetNX(ctx, key, "1", ttl)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark token redeemed")
	}

	if !success {
		return apperrors.ErrRefreshTokenUsed
	}

	return nil
}
