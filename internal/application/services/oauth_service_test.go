package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klaemsch/authopie/internal/application/dto"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

func TestAuthorizationCodeFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", "s3cret", roleWith("editor", "manage-roles"))
	e.seedClient(t, "web-app", "https://app.example/callback")

	code, err := e.oauthSvc.IssueCode(ctx, &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, code)

	pair, err := e.oauthSvc.RedeemCode(ctx, &dto.TokenRequest{
		Code:        code,
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
	})
	require.NoError(t, err)

	claims, err := e.tokenSvc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.Equal(t, []string{"manage-roles"}, claims.Scopes)
}

func TestScopedCodeNarrowsGrant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", "s3cret",
		roleWith("admin", "manage-users manage-roles"))
	e.seedClient(t, "web-app", "https://app.example/callback")

	code, err := e.oauthSvc.IssueCode(ctx, &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
		Scope:       "manage-users",
	})
	require.NoError(t, err)

	pair, err := e.oauthSvc.RedeemCode(ctx, &dto.TokenRequest{
		Code:        code,
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
	})
	require.NoError(t, err)
	require.Equal(t, "manage-users", pair.Scope)
}

func TestIssueCodeRejectsUnknownClient(t *testing.T) {
	e := newEnv(t)

	_, err := e.oauthSvc.IssueCode(context.Background(), &dto.AuthorizeRequest{
		ClientID:    "nobody",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
	})
	require.ErrorIs(t, err, apperrors.ErrClientNotFound)
}

func TestIssueCodeRejectsForeignRedirect(t *testing.T) {
	e := newEnv(t)
	e.seedClient(t, "web-app", "https://app.example/callback")

	// Exact match only: same host with an extra path segment is rejected.
	_, err := e.oauthSvc.IssueCode(context.Background(), &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback/extra",
		Subject:     "alice",
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidRedirect)
}

func TestCodeIsSingleUse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", "s3cret")
	e.seedClient(t, "web-app", "https://app.example/callback")

	code, err := e.oauthSvc.IssueCode(ctx, &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
	})
	require.NoError(t, err)

	req := &dto.TokenRequest{
		Code:        code,
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
	}

	_, err = e.oauthSvc.RedeemCode(ctx, req)
	require.NoError(t, err)

	_, err = e.oauthSvc.RedeemCode(ctx, req)
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestFailedRedemptionStillConsumesCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", "s3cret")
	e.seedClient(t, "web-app", "https://app.example/callback")

	code, err := e.oauthSvc.IssueCode(ctx, &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
	})
	require.NoError(t, err)

	// Wrong redirect URI fails the exchange but burns the code.
	_, err = e.oauthSvc.RedeemCode(ctx, &dto.TokenRequest{
		Code:        code,
		ClientID:    "web-app",
		RedirectURI: "https://evil.example/callback",
	})
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)

	// A second attempt with the correct URI finds nothing.
	_, err = e.oauthSvc.RedeemCode(ctx, &dto.TokenRequest{
		Code:        code,
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
	})
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestRedeemWithWrongClientFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", "s3cret")
	e.seedClient(t, "web-app", "https://app.example/callback")

	code, err := e.oauthSvc.IssueCode(ctx, &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
	})
	require.NoError(t, err)

	_, err = e.oauthSvc.RedeemCode(ctx, &dto.TokenRequest{
		Code:        code,
		ClientID:    "other-app",
		RedirectURI: "https://app.example/callback",
	})
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestExpiredCodeFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", "s3cret")
	e.seedClient(t, "web-app", "https://app.example/callback")

	code, err := e.oauthSvc.IssueCode(ctx, &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
	})
	require.NoError(t, err)

	e.clk.Advance(e.cfg.AuthCodeTTL + time.Minute)

	_, err = e.oauthSvc.RedeemCode(ctx, &dto.TokenRequest{
		Code:        code,
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
	})
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}

func TestConcurrentRedemptionHasOneWinner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seedUser(t, "alice", "s3cret")
	e.seedClient(t, "web-app", "https://app.example/callback")

	code, err := e.oauthSvc.IssueCode(ctx, &dto.AuthorizeRequest{
		ClientID:    "web-app",
		RedirectURI: "https://app.example/callback",
		Subject:     "alice",
	})
	require.NoError(t, err)

	const redeemers = 8
	errs := make([]error, redeemers)

	var wg sync.WaitGroup
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.oauthSvc.RedeemCode(ctx, &dto.TokenRequest{
				Code:        code,
				ClientID:    "web-app",
				RedirectURI: "https://app.example/callback",
			})
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
		}
	}
	require.Equal(t, 1, successes)
}
