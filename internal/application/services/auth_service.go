package services

import (
	"context"

	"github.com/klaemsch/authopie/internal/application/dto"
	"github.com/klaemsch/authopie/internal/domain/user"
	"github.com/klaemsch/authopie/internal/infrastructure/crypto"
	"github.com/klaemsch/authopie/pkg/errors"
	"github.com/klaemsch/authopie/pkg/logger"
)

// AuthService handles password registration and login. Login failures are
// opaque: an unknown username, a wrong password, and a disabled account
// all surface as the same authentication failure.
type AuthService struct {
	userRepo     user.Repository
	hasher       *crypto.Argon2Hasher
	tokenService *TokenService
	log          logger.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo user.Repository,
	hasher *crypto.Argon2Hasher,
	tokenService *TokenService,
	log logger.Logger,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		hasher:       hasher,
		tokenService: tokenService,
		log:          log,
	}
}

// Register creates a new user with an argon2id password hash.
func (s *AuthService) Register(ctx context.Context, username, password string) (*user.User, error) {
	if username == "" || password == "" {
		return nil, errors.ErrInvalidInput
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	u := user.NewUser(username, hash)
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info("user registered", logger.Subject(username))
	return u, nil
}

// Login verifies the password and mints a token pair for the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (*dto.TokenPair, error) {
	u, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		s.log.Warn("login for unknown user", logger.Subject(username))
		return nil, errors.ErrAuthenticationFailed
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil || !ok {
		s.log.Warn("login with wrong password", logger.Subject(username))
		return nil, errors.ErrAuthenticationFailed
	}

	if !u.IsActive() {
		s.log.Warn("login for disabled user", logger.Subject(username))
		return nil, errors.ErrAuthenticationFailed
	}

	// Upgrade the stored hash when the configured parameters changed.
	if needs, err := s.hasher.NeedsRehash(u.PasswordHash); err == nil && needs {
		if hash, err := s.hasher.Hash(password); err == nil {
			u.PasswordHash = hash
			if err := s.userRepo.Update(ctx, u); err != nil {
				s.log.Warn("failed to persist rehashed password", logger.Error(err))
			}
		}
	}

	s.log.Info("user logged in", logger.Subject(username))
	return s.tokenService.IssuePair(ctx, u)
}
