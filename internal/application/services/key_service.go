package services

import (
	"context"
	"crypto/rsa"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/klaemsch/authopie/config"
	"github.com/klaemsch/authopie/internal/domain/keys"
	"github.com/klaemsch/authopie/pkg/clock"
	"github.com/klaemsch/authopie/pkg/errors"
	"github.com/klaemsch/authopie/pkg/jwt"
	"github.com/klaemsch/authopie/pkg/logger"
)

// KeyService owns the signing-key lifecycle: selection for signing,
// generation when no valid pair exists, public-key resolution for
// verification, and JWKS distribution.
type KeyService struct {
	keyRepo keys.Repository
	keyGen  keys.Generator
	clock   clock.Clock
	log     logger.Logger
	cfg     *config.JWTConfig

	// Cache for JWKS to avoid repeated store queries
	jwksCache     *keys.JWKS
	jwksCacheMu   sync.RWMutex
	jwksCacheTime time.Time
	jwksCacheTTL  time.Duration
}

// NewKeyService creates a new key service.
func NewKeyService(
	keyRepo keys.Repository,
	keyGen keys.Generator,
	clk clock.Clock,
	log logger.Logger,
	cfg *config.JWTConfig,
) *KeyService {
	return &KeyService{
		keyRepo:      keyRepo,
		keyGen:       keyGen,
		clock:        clk,
		log:          log,
		cfg:          cfg,
		jwksCacheTTL: 5 * time.Minute,
	}
}

// SelectSigningKey returns a valid key pair for signing: a uniform-random
// choice among the valid pairs, or a freshly generated one if none exist.
// Random selection spreads signing load across pairs so a single key
// compromise covers a bounded share of live tokens.
//
// Safe under races: two callers that both observe zero valid pairs both
// generate one (distinct kids, both inserts succeed) and both return a
// usable pair. No lock is held across key generation or store I/O.
func (s *KeyService) SelectSigningKey(ctx context.Context) (*keys.KeyPair, error) {
	now := s.clock.Now()

	valid, err := s.keyRepo.GetValid(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list valid key pairs")
	}

	if len(valid) > 0 {
		return valid[rand.IntN(len(valid))], nil
	}

	s.log.Debug("no valid key pair found, generating a new one")
	return s.generateAndStore(ctx, now)
}

// RotateKey generates and stores a new key pair regardless of how many
// valid pairs already exist.
func (s *KeyService) RotateKey(ctx context.Context) error {
	if _, err := s.generateAndStore(ctx, s.clock.Now()); err != nil {
		return err
	}
	return nil
}

func (s *KeyService) generateAndStore(ctx context.Context, now time.Time) (*keys.KeyPair, error) {
	pair, err := s.keyGen.Generate(now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key pair")
	}

	if err := s.keyRepo.Create(ctx, pair); err != nil {
		return nil, errors.Wrap(err, "failed to store key pair")
	}

	s.invalidateJWKSCache()
	s.log.Info("key pair created", logger.KID(pair.KID), logger.Time("not_after", pair.NotAfter))

	return pair, nil
}

// PublicKeyResolver returns the resolver used for token verification. The
// kid comes from an untrusted token header; an unknown pair fails
// resolution, which the validator folds into its single opaque
// authentication failure. Validity gates signing only: a retained pair
// past NotAfter still verifies the tokens it signed, until the retention
// sweep purges it.
func (s *KeyService) PublicKeyResolver(ctx context.Context) jwt.KeyResolver {
	return func(kid string) (*rsa.PublicKey, error) {
		pair, err := s.keyRepo.GetByKID(ctx, kid)
		if err != nil {
			return nil, err
		}
		return pair.PublicKey, nil
	}
}

// GetJWKS returns the JSON Web Key Set for public key distribution. All
// stored pairs are included, expired ones too, so relying parties can keep
// verifying tokens while a rotation propagates.
func (s *KeyService) GetJWKS(ctx context.Context) (*keys.JWKS, error) {
	s.jwksCacheMu.RLock()
	if s.jwksCache != nil && s.clock.Now().Sub(s.jwksCacheTime) < s.jwksCacheTTL {
		jwks := s.jwksCache
		s.jwksCacheMu.RUnlock()
		return jwks, nil
	}
	s.jwksCacheMu.RUnlock()

	pairs, err := s.keyRepo.GetAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get key pairs")
	}

	jwks := jwt.GenerateJWKS(pairs)

	s.jwksCacheMu.Lock()
	s.jwksCache = &jwks
	s.jwksCacheTime = s.clock.Now()
	s.jwksCacheMu.Unlock()

	return &jwks, nil
}

// invalidateJWKSCache clears the JWKS cache.
func (s *KeyService) invalidateJWKSCache() {
	s.jwksCacheMu.Lock()
	s.jwksCache = nil
	s.jwksCacheMu.Unlock()
}

// CleanupExpiredKeys removes key pairs past the retention window. Pairs
// are kept for a full key lifetime beyond their signing expiry so
// everything they signed has long expired before the pair disappears.
func (s *KeyService) CleanupExpiredKeys(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.cfg.KeyLifetime)

	count, err := s.keyRepo.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup expired key pairs")
	}

	if count > 0 {
		s.invalidateJWKSCache()
		s.log.Info("expired key pairs removed", logger.Int64("count", count))
	}

	return count, nil
}

// StartRotationScheduler starts a background goroutine that rotates keys
// periodically and sweeps out retained expired pairs. Stops when ctx is
// cancelled.
func (s *KeyService) StartRotationScheduler(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.KeyRotationInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RotateKey(ctx); err != nil {
					s.log.Error("scheduled key rotation failed", logger.Error(err))
				}
				if _, err := s.CleanupExpiredKeys(ctx); err != nil {
					s.log.Error("key cleanup failed", logger.Error(err))
				}
			}
		}
	}()
}
