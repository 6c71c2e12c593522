package services

import (
	"context"
	"time"

	"github.com/klaemsch/authopie/config"
	"github.com/klaemsch/authopie/internal/application/dto"
	"github.com/klaemsch/authopie/internal/domain/oauth"
	"github.com/klaemsch/authopie/internal/infrastructure/crypto"
	"github.com/klaemsch/authopie/pkg/clock"
	"github.com/klaemsch/authopie/pkg/errors"
	"github.com/klaemsch/authopie/pkg/logger"
	"github.com/klaemsch/authopie/pkg/scopes"
)

// OAuthService brokers the authorization-code exchange: it issues one-time
// codes bound to a client, redirect URI, and principal, and redeems them
// at most once into a token pair.
type OAuthService struct {
	clientRepo   oauth.ClientRepository
	authCodeRepo oauth.AuthorizationCodeRepository
	tokenService *TokenService
	randGen      *crypto.RandomGenerator
	clock        clock.Clock
	log          logger.Logger
	cfg          *config.JWTConfig
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(
	clientRepo oauth.ClientRepository,
	authCodeRepo oauth.AuthorizationCodeRepository,
	tokenService *TokenService,
	randGen *crypto.RandomGenerator,
	clk clock.Clock,
	log logger.Logger,
	cfg *config.JWTConfig,
) *OAuthService {
	return &OAuthService{
		clientRepo:   clientRepo,
		authCodeRepo: authCodeRepo,
		tokenService: tokenService,
		randGen:      randGen,
		clock:        clk,
		log:          log,
		cfg:          cfg,
	}
}

// IssueCode validates the client and redirect URI and creates a one-time
// authorization code for the given principal. Redirect-URI matching is
// exact. Issue-side failures are safe to report: no credential has been
// presented yet.
func (s *OAuthService) IssueCode(ctx context.Context, req *dto.AuthorizeRequest) (string, error) {
	client, err := s.clientRepo.GetByClientID(ctx, req.ClientID)
	if err != nil {
		return "", errors.ErrClientNotFound
	}

	if !client.ValidateRedirectURI(req.RedirectURI) {
		return "", errors.ErrInvalidRedirect
	}

	code, err := s.randGen.GenerateAuthorizationCode()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate authorization code")
	}

	authCode := oauth.NewAuthorizationCode(
		code,
		client.ClientID,
		req.RedirectURI,
		req.Subject,
		req.Scope,
		req.Nonce,
		s.clock.Now(),
		s.cfg.AuthCodeTTL,
	)

	if err := s.authCodeRepo.Store(ctx, authCode); err != nil {
		return "", errors.Wrap(err, "failed to store authorization code")
	}

	s.log.Debug("authorization code issued",
		logger.ClientID(client.ClientID), logger.Subject(req.Subject))

	return code, nil
}

// RedeemCode exchanges an authorization code for a token pair. The code
// record is consumed (atomic fetch-and-delete) before any validation, so
// the code is gone after the first attempt regardless of outcome; a
// failed redemption cannot be retried and cannot serve as an oracle. Of
// two concurrent redeemers, the loser observes "not found".
//
// Every redeem-side failure collapses to the opaque authentication
// failure: which binding check rejected the exchange is never disclosed.
func (s *OAuthService) RedeemCode(ctx context.Context, req *dto.TokenRequest) (*dto.TokenPair, error) {
	record, err := s.authCodeRepo.Consume(ctx, req.Code)
	if err != nil {
		return nil, errors.ErrAuthenticationFailed
	}

	if record.ClientID != req.ClientID {
		s.log.Warn("authorization code redeemed with wrong client",
			logger.ClientID(req.ClientID))
		return nil, errors.ErrAuthenticationFailed
	}

	if record.RedirectURI != req.RedirectURI {
		s.log.Warn("authorization code redirect_uri mismatch",
			logger.ClientID(req.ClientID))
		return nil, errors.ErrAuthenticationFailed
	}

	// Checked on the captured record: the store row is already gone.
	if record.IsExpired(s.clock.Now()) {
		return nil, errors.ErrAuthenticationFailed
	}

	u, err := s.tokenService.userRepo.GetByUsername(ctx, record.Subject)
	if err != nil {
		return nil, errors.ErrAuthenticationFailed
	}

	if !u.IsActive() {
		return nil, errors.ErrAuthenticationFailed
	}

	if record.Scope != "" {
		return s.tokenService.IssuePairWithScope(ctx, u, scopes.Split(record.Scope))
	}
	return s.tokenService.IssuePair(ctx, u)
}

// StartExpirySweep starts a background goroutine that removes expired
// codes at the given interval. Backends with native TTL expiry make this
// a cheap no-op. Stops when ctx is cancelled.
func (s *OAuthService) StartExpirySweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := s.authCodeRepo.DeleteExpired(ctx, s.clock.Now())
				if err != nil {
					s.log.Error("authorization code sweep failed", logger.Error(err))
					continue
				}
				if count > 0 {
					s.log.Debug("expired authorization codes removed", logger.Int64("count", count))
				}
			}
		}
	}()
}
