package services_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/klaemsch/authopie/internal/application/dto"
	"github.com/klaemsch/authopie/internal/domain/user"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
	"github.com/klaemsch/authopie/pkg/jwt"
	"github.com/klaemsch/authopie/pkg/scopes"
)

func roleWith(name, scopeString string) user.Role {
	return user.Role{Name: name, Scopes: scopeString}
}

func TestIssuePairAndValidate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret", roleWith("editor", "manage-roles"))

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(900), pair.ExpiresIn)
	require.Equal(t, "manage-roles", pair.Scope)

	claims, err := e.tokenSvc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, []string{"manage-roles"}, claims.Scopes)
}

func TestAccessExpiresRefreshRotates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret", roleWith("editor", "manage-roles"))

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	e.clk.Advance(e.cfg.AccessTokenTTL + time.Minute)

	_, err = e.tokenSvc.ValidateAccess(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)

	fresh, err := e.tokenSvc.RedeemRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, fresh.AccessToken)

	claims, err := e.tokenSvc.ValidateAccess(ctx, fresh.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"manage-roles"}, claims.Scopes)
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret")

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	_, err = e.tokenSvc.RedeemRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = e.tokenSvc.RedeemRefresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestAccessTokenNotRedeemableAsRefresh(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret")

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	_, err = e.tokenSvc.RedeemRefresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestRefreshRederivesScopesFromRoles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret", roleWith("editor", "manage-roles"))

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	// Role change between issuance and redemption.
	alice.Roles = []user.Role{roleWith("admin", "*")}
	require.NoError(t, e.userRepo.Update(ctx, alice))

	fresh, err := e.tokenSvc.RedeemRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	claims, err := e.tokenSvc.ValidateAccess(ctx, fresh.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []string{"*"}, claims.Scopes)
}

func TestRefreshForDisabledUserFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret")

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	alice.Disabled = true
	require.NoError(t, e.userRepo.Update(ctx, alice))

	_, err = e.tokenSvc.RedeemRefresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestExpiredRefreshTokenFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret")

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	e.clk.Advance(e.cfg.RefreshTokenTTL + time.Minute)

	_, err = e.tokenSvc.RedeemRefresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestRefreshOutlivesSigningKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret")

	// Key created now, pair issued a day later: the refresh token's
	// lifetime reaches one day past the key's NotAfter.
	_, err := e.keySvc.SelectSigningKey(ctx)
	require.NoError(t, err)
	e.clk.Advance(24 * time.Hour)

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	// Key expired, token still has a day left. It must verify.
	e.clk.Advance(e.cfg.KeyLifetime - 23*time.Hour)

	fresh, err := e.tokenSvc.RedeemRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// The fresh pair is signed by a valid key, not the expired one.
	oldKID, err := kidOf(pair.RefreshToken)
	require.NoError(t, err)
	newKID, err := kidOf(fresh.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, oldKID, newKID)
}

func TestIssuePairWithScopeIntersects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret",
		roleWith("editor", "manage-roles manage-users"))

	pair, err := e.tokenSvc.IssuePairWithScope(ctx, alice, []string{"manage-users", "manage-key-pairs"})
	require.NoError(t, err)

	claims, err := e.tokenSvc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	// Requested scopes the principal does not hold are dropped, not granted.
	require.Equal(t, []string{"manage-users"}, claims.Scopes)
}

func TestAuthorize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret", roleWith("editor", "manage-roles"))

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	_, err = e.tokenSvc.Authorize(ctx, pair.AccessToken, scopes.ManageRoles)
	require.NoError(t, err)

	_, err = e.tokenSvc.Authorize(ctx, pair.AccessToken, scopes.ManageKeyPairs)
	var forbidden *apperrors.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, "manage-key-pairs", forbidden.Requirement)

	_, err = e.tokenSvc.Authorize(ctx, "garbage", scopes.ManageRoles)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestIssueCustomToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	operator := e.seedUser(t, "operator", "s3cret", roleWith("token-admin", "manage-tokens"))

	pair, err := e.tokenSvc.IssuePair(ctx, operator)
	require.NoError(t, err)

	token, err := e.tokenSvc.IssueCustomToken(ctx, pair.AccessToken, &dto.APITokenRequest{
		Subject:   "backup-job",
		Audience:  "storage-service",
		Scopes:    []string{"manage-users"},
		ExpiresIn: 3600,
	})
	require.NoError(t, err)

	// The token targets a foreign audience, so inspect it signature-only.
	mgr := jwt.NewManager(e.cfg.Issuer, e.cfg.Audience, e.clk)
	claims, err := mgr.DecodeAndVerify(token, e.keySvc.PublicKeyResolver(ctx))
	require.NoError(t, err)
	require.Equal(t, "backup-job", claims.Subject)
	require.Equal(t, jwtlib.ClaimStrings{"storage-service"}, claims.Audience)
	require.Equal(t, []string{"manage-users"}, claims.Scopes)
	require.Equal(t, jwt.TypeAccess, claims.Type)
}

func TestIssueCustomTokenRequiresScope(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret", roleWith("editor", "manage-roles"))

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	req := &dto.APITokenRequest{Subject: "backup-job", ExpiresIn: 3600}

	_, err = e.tokenSvc.IssueCustomToken(ctx, pair.AccessToken, req)
	var forbidden *apperrors.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, "manage-tokens", forbidden.Requirement)

	_, err = e.tokenSvc.IssueCustomToken(ctx, "garbage", req)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestIssueCustomTokenRejectsBadRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	operator := e.seedUser(t, "operator", "s3cret", roleWith("token-admin", "*"))

	pair, err := e.tokenSvc.IssuePair(ctx, operator)
	require.NoError(t, err)

	_, err = e.tokenSvc.IssueCustomToken(ctx, pair.AccessToken,
		&dto.APITokenRequest{Subject: "", ExpiresIn: 3600})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.tokenSvc.IssueCustomToken(ctx, pair.AccessToken,
		&dto.APITokenRequest{Subject: "backup-job", ExpiresIn: 0})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestBothTokensSignedWithSameKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.seedUser(t, "alice", "s3cret")

	pair, err := e.tokenSvc.IssuePair(ctx, alice)
	require.NoError(t, err)

	accessKID, err := kidOf(pair.AccessToken)
	require.NoError(t, err)
	refreshKID, err := kidOf(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, accessKID, refreshKID)
}
