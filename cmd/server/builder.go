package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klaemsch/authopie/config"
	"github.com/klaemsch/authopie/internal/application/services"
	"github.com/klaemsch/authopie/internal/infrastructure/cache/redis"
	"github.com/klaemsch/authopie/internal/infrastructure/crypto"
	"github.com/klaemsch/authopie/internal/infrastructure/persistence/postgres"
	"github.com/klaemsch/authopie/pkg/clock"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
	"github.com/klaemsch/authopie/pkg/jwt"
	"github.com/klaemsch/authopie/pkg/logger"
)

func run() error {
	ctx := context.Background()

	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting token authority...", logger.Component("main"))

	db, redisClient, err := initInfrastructure(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()
	defer redisClient.Close()

	clk := clock.System()

	keySvc := services.NewKeyService(
		postgres.NewSigningKeyRepository(db),
		crypto.NewRSAKeyGenerator(cfg.JWT.KeySize, cfg.JWT.KeyLifetime),
		clk, log, &cfg.JWT)

	userRepo := postgres.NewUserRepository(db)
	tokenSvc := services.NewTokenService(
		userRepo, keySvc,
		jwt.NewManager(cfg.JWT.Issuer, cfg.JWT.Audience, clk),
		redis.NewRedemptionStore(redisClient),
		clk, log, &cfg.JWT)

	oauthSvc := services.NewOAuthService(
		postgres.NewClientRepository(db),
		redis.NewAuthorizationCodeRepository(redisClient, clk),
		tokenSvc, crypto.NewRandomGenerator(), clk, log, &cfg.JWT)

	hasher := crypto.NewArgon2Hasher(
		cfg.Auth.Argon2Memory, cfg.Auth.Argon2Iterations, cfg.Auth.Argon2Parallelism,
		cfg.Auth.Argon2SaltLength, cfg.Auth.Argon2KeyLength)
	authSvc := services.NewAuthService(userRepo, hasher, tokenSvc, log)

	if err := bootstrapUser(ctx, authSvc, log); err != nil {
		return err
	}

	// Make sure at least one signing key exists before traffic arrives.
	if _, err := keySvc.SelectSigningKey(ctx); err != nil {
		return fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	log.Info("Signing keys initialized", logger.Component("main"))

	keySvc.StartRotationScheduler(ctx)
	oauthSvc.StartExpirySweep(ctx, cfg.JWT.AuthCodeTTL)
	log.Info("Background schedulers started", logger.Component("main"))

	server := newServer(cfg, keySvc, db, redisClient)
	return startServer(server, log)
}

// bootstrapUser creates the initial user when BOOTSTRAP_USERNAME and
// BOOTSTRAP_PASSWORD are set and the user does not exist yet.
func bootstrapUser(ctx context.Context, authSvc *services.AuthService, log logger.Logger) error {
	username := os.Getenv("BOOTSTRAP_USERNAME")
	password := os.Getenv("BOOTSTRAP_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	if _, err := authSvc.Register(ctx, username, password); err != nil {
		if errors.Is(err, apperrors.ErrEntityAlreadyExists) {
			return nil
		}
		return fmt.Errorf("failed to bootstrap user: %w", err)
	}

	log.Info("Bootstrap user created",
		logger.Component("main"), logger.Subject(username))
	return nil
}

func initInfrastructure(cfg *config.Config, log logger.Logger) (*postgres.DB, *redis.Client, error) {
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Connected to PostgreSQL",
		logger.Component("infrastructure"),
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
	)

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("Connected to Redis",
		logger.Component("infrastructure"),
		logger.String("host", cfg.Redis.Host),
		logger.Int("port", cfg.Redis.Port),
	)

	return db, redisClient, nil
}

// newServer wires the key-distribution and health endpoints. Relying
// parties fetch /jwks.json to verify tokens locally; everything else is
// served by the resource servers themselves via pkg/authmw.
func newServer(cfg *config.Config, keySvc *services.KeyService, db *postgres.DB, redisClient *redis.Client) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /jwks.json", func(w http.ResponseWriter, r *http.Request) {
		set, err := keySvc.GetJWKS(r.Context())
		if err != nil {
			http.Error(w, `{"detail":"internal error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		json.NewEncoder(w).Encode(set)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(r.Context()); err != nil {
			http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Health(r.Context()); err != nil {
			http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startServer(server *http.Server, log logger.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		log.Info("Server listening",
			logger.Component("server"),
			logger.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("Shutting down server...",
			logger.Component("server"),
			logger.String("signal", sig.String()),
		)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited", logger.Component("server"))
	return nil
}
