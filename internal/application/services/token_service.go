package services

import (
	"context"
	"time"

	"github.com/klaemsch/authopie/config"
	"github.com/klaemsch/authopie/internal/application/dto"
	"github.com/klaemsch/authopie/internal/domain/token"
	"github.com/klaemsch/authopie/internal/domain/user"
	"github.com/klaemsch/authopie/pkg/clock"
	"github.com/klaemsch/authopie/pkg/errors"
	"github.com/klaemsch/authopie/pkg/jwt"
	"github.com/klaemsch/authopie/pkg/logger"
	"github.com/klaemsch/authopie/pkg/scopes"
)

// TokenService is the access/refresh token issuer. It orchestrates key
// selection and the codec to mint pairs, and rotates a presented refresh
// token into a fresh pair exactly once.
type TokenService struct {
	userRepo    user.Repository
	keyService  *KeyService
	jwtManager  *jwt.Manager
	redemptions token.RedemptionStore
	clock       clock.Clock
	log         logger.Logger
	cfg         *config.JWTConfig
}

// NewTokenService creates a new token service.
func NewTokenService(
	userRepo user.Repository,
	keyService *KeyService,
	jwtManager *jwt.Manager,
	redemptions token.RedemptionStore,
	clk clock.Clock,
	log logger.Logger,
	cfg *config.JWTConfig,
) *TokenService {
	return &TokenService{
		userRepo:    userRepo,
		keyService:  keyService,
		jwtManager:  jwtManager,
		redemptions: redemptions,
		clock:       clk,
		log:         log,
		cfg:         cfg,
	}
}

// IssuePair mints an access/refresh pair for the given principal. Both
// tokens are signed with the same key pair so they stay consistently
// verifiable even if a rotation happens between issuance and first use.
// Access-token scopes are derived from the principal's current roles.
func (s *TokenService) IssuePair(ctx context.Context, u *user.User) (*dto.TokenPair, error) {
	return s.issuePair(ctx, u, nil)
}

// IssuePairWithScope is IssuePair restricted to the intersection of the
// principal's scopes with the requested scope set. Used by the
// authorization-code exchange, where the client asked for a narrower grant.
func (s *TokenService) IssuePairWithScope(ctx context.Context, u *user.User, requested []string) (*dto.TokenPair, error) {
	return s.issuePair(ctx, u, requested)
}

func (s *TokenService) issuePair(ctx context.Context, u *user.User, requested []string) (*dto.TokenPair, error) {
	pair, err := s.keyService.SelectSigningKey(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select signing key")
	}

	tokenScopes := u.ScopeSet()
	if requested != nil {
		tokenScopes = intersectScopes(tokenScopes, requested)
	}

	accessToken, err := s.jwtManager.CreateAccessToken(pair, u.Username, tokenScopes, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create access token")
	}

	refreshToken, err := s.jwtManager.CreateRefreshToken(pair, u.Username, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create refresh token")
	}

	s.log.Debug("token pair issued", logger.Subject(u.Username), logger.KID(pair.KID))

	return &dto.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		Scope:        scopes.Join(tokenScopes),
	}, nil
}

// RedeemRefresh validates a refresh token and rotates it into a fresh
// pair. Refresh tokens are single-use: the presented token's jti is
// tombstoned before issuance, so a second redemption fails even if it
// races the first. Scopes are never copied from the old token; they are
// re-derived from the principal's roles at redemption time, since roles
// may have changed.
//
// Every failure surfaces as the opaque authentication failure.
func (s *TokenService) RedeemRefresh(ctx context.Context, refreshToken string) (*dto.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken, s.keyService.PublicKeyResolver(ctx))
	if err != nil {
		return nil, errors.ErrAuthenticationFailed
	}

	// Tombstone lives only as long as the token would have.
	remaining := claims.ExpiresAt.Time.Sub(s.clock.Now())
	if err := s.redemptions.MarkRedeemed(ctx, claims.ID, remaining); err != nil {
		if errors.Is(err, errors.ErrRefreshTokenUsed) {
			s.log.Warn("refresh token replayed", logger.Subject(claims.Subject))
			return nil, errors.ErrAuthenticationFailed
		}
		return nil, errors.Wrap(err, "failed to mark refresh token redeemed")
	}

	u, err := s.userRepo.GetByUsername(ctx, claims.Subject)
	if err != nil {
		// The subject vanished since issuance; never leak that detail.
		return nil, errors.ErrAuthenticationFailed
	}

	if !u.IsActive() {
		return nil, errors.ErrAuthenticationFailed
	}

	return s.IssuePair(ctx, u)
}

// IssueCustomToken mints an API token with caller-chosen subject,
// audience, and scopes on behalf of an operator whose access token
// carries the manage-tokens scope. API tokens are plain access tokens;
// they have no refresh counterpart and are not tracked after issuance.
func (s *TokenService) IssueCustomToken(ctx context.Context, accessToken string, req *dto.APITokenRequest) (string, error) {
	claims, err := s.Authorize(ctx, accessToken, scopes.ManageTokens)
	if err != nil {
		return "", err
	}

	if req.Subject == "" || req.ExpiresIn <= 0 {
		return "", errors.ErrInvalidInput
	}

	pair, err := s.keyService.SelectSigningKey(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to select signing key")
	}

	ttl := time.Duration(req.ExpiresIn) * time.Second
	token, err := s.jwtManager.CreateAPIToken(pair, req.Subject, req.Audience, req.Scopes, ttl)
	if err != nil {
		return "", errors.Wrap(err, "failed to create api token")
	}

	s.log.Info("api token minted",
		logger.Subject(req.Subject),
		logger.String("minted_by", claims.Subject),
		logger.KID(pair.KID))

	return token, nil
}

// ValidateAccess validates an access token string and returns its claims.
func (s *TokenService) ValidateAccess(ctx context.Context, accessToken string) (*jwt.Claims, error) {
	return s.jwtManager.ValidateAccessToken(accessToken, s.keyService.PublicKeyResolver(ctx))
}

// Authorize validates an access token and checks it against a scope
// requirement. Authentication failures stay opaque; authorization
// failures name the missing requirement.
func (s *TokenService) Authorize(ctx context.Context, accessToken string, requirement scopes.Requirement) (*jwt.Claims, error) {
	claims, err := s.ValidateAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := requirement.Authorize(claims.Scopes); err != nil {
		return nil, err
	}

	return claims, nil
}

func intersectScopes(have, requested []string) []string {
	allowed := make(map[string]struct{}, len(have))
	for _, s := range have {
		allowed[s] = struct{}{}
	}

	var out []string
	for _, s := range requested {
		if _, ok := allowed[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
