// Package token holds the refresh-token redemption state. Refresh tokens
// are stateless JWTs; the only state kept is a tombstone per redeemed jti,
// which makes each refresh token single-use.
package token

import (
	"context"
	"time"
)

// RedemptionStore records redeemed refresh-token IDs. A tombstone only
// needs to live as long as the token it blocks would otherwise remain
// valid, so entries carry a TTL and the store may drop them afterwards.
type RedemptionStore interface {
	// MarkRedeemed atomically records the jti as redeemed. If the jti was
	// already recorded it returns errors.ErrRefreshTokenUsed; of any number
	// of concurrent redeemers exactly one succeeds.
	MarkRedeemed(ctx context.Context, jti string, ttl time.Duration) error
}
