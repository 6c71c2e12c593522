package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.authSvc.Register(ctx, "bob", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "bob", u.Username)
	require.NotEmpty(t, u.PasswordHash)

	pair, err := e.authSvc.Login(ctx, "bob", "hunter2")
	require.NoError(t, err)

	claims, err := e.tokenSvc.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "bob", claims.Subject)
}

func TestRegisterRejectsEmptyInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.authSvc.Register(ctx, "", "hunter2")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.authSvc.Register(ctx, "bob", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.authSvc.Register(ctx, "bob", "hunter2")
	require.NoError(t, err)

	_, err = e.authSvc.Register(ctx, "bob", "other")
	require.ErrorIs(t, err, apperrors.ErrEntityAlreadyExists)
}

func TestLoginFailuresAreOpaque(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	carol := e.seedUser(t, "carol", "correct-horse")

	// Wrong password.
	_, err := e.authSvc.Login(ctx, "carol", "wrong")
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)

	// Unknown user looks exactly the same.
	_, err = e.authSvc.Login(ctx, "nobody", "correct-horse")
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)

	// So does a disabled account with the right password.
	carol.Disabled = true
	require.NoError(t, e.userRepo.Update(ctx, carol))
	_, err = e.authSvc.Login(ctx, "carol", "correct-horse")
	require.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}
