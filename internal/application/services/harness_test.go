package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klaemsch/authopie/config"
	"github.com/klaemsch/authopie/internal/application/services"
	"github.com/klaemsch/authopie/internal/domain/oauth"
	"github.com/klaemsch/authopie/internal/domain/user"
	"github.com/klaemsch/authopie/internal/infrastructure/crypto"
	"github.com/klaemsch/authopie/internal/infrastructure/persistence/memory"
	"github.com/klaemsch/authopie/pkg/clock"
	"github.com/klaemsch/authopie/pkg/jwt"
	"github.com/klaemsch/authopie/pkg/logger"
)

// env wires the full service stack on in-memory stores and a fake clock.
type env struct {
	clk        *clock.Fake
	cfg        *config.JWTConfig
	keyRepo    *memory.SigningKeyRepository
	userRepo   *memory.UserRepository
	clientRepo *memory.ClientRepository
	codeRepo   *memory.AuthorizationCodeRepository
	hasher     *crypto.Argon2Hasher
	keySvc     *services.KeyService
	tokenSvc   *services.TokenService
	oauthSvc   *services.OAuthService
	authSvc    *services.AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := &config.JWTConfig{
		Issuer:              "authopie",
		Audience:            "authopie-clients",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		AuthCodeTTL:         10 * time.Minute,
		KeySize:             2048,
		KeyLifetime:         7 * 24 * time.Hour,
		KeyRotationInterval: 24 * time.Hour,
	}

	log := logger.Nop()
	keyRepo := memory.NewSigningKeyRepository()
	userRepo := memory.NewUserRepository()
	clientRepo := memory.NewClientRepository()
	codeRepo := memory.NewAuthorizationCodeRepository()

	keyGen := crypto.NewRSAKeyGenerator(cfg.KeySize, cfg.KeyLifetime)
	keySvc := services.NewKeyService(keyRepo, keyGen, clk, log, cfg)

	jwtManager := jwt.NewManager(cfg.Issuer, cfg.Audience, clk)
	tokenSvc := services.NewTokenService(
		userRepo, keySvc, jwtManager, memory.NewRedemptionStore(clk), clk, log, cfg)

	oauthSvc := services.NewOAuthService(
		clientRepo, codeRepo, tokenSvc, crypto.NewRandomGenerator(), clk, log, cfg)

	// Cheap argon2 parameters, this is not a hashing benchmark.
	hasher := crypto.NewArgon2Hasher(8*1024, 1, 1, 16, 32)
	authSvc := services.NewAuthService(userRepo, hasher, tokenSvc, log)

	return &env{
		clk:        clk,
		cfg:        cfg,
		keyRepo:    keyRepo,
		userRepo:   userRepo,
		clientRepo: clientRepo,
		codeRepo:   codeRepo,
		hasher:     hasher,
		keySvc:     keySvc,
		tokenSvc:   tokenSvc,
		oauthSvc:   oauthSvc,
		authSvc:    authSvc,
	}
}

func (e *env) seedUser(t *testing.T, username, password string, roles ...user.Role) *user.User {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)

	u := user.NewUser(username, hash)
	u.Roles = roles
	require.NoError(t, e.userRepo.Create(context.Background(), u))
	return u
}

func kidOf(tokenString string) (string, error) {
	return jwt.ExtractKID(tokenString)
}

func (e *env) seedClient(t *testing.T, clientID string, redirectURIs ...string) *oauth.Client {
	t.Helper()

	client := oauth.NewClient(clientID, clientID, redirectURIs)
	require.NoError(t, e.clientRepo.Create(context.Background(), client))
	return client
}
