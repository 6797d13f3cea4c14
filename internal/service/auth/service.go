// Package auth implements the platform's token service on top of the user
// document façade: registration, password login, refresh rotation against
// the embedded refresh-token collection, and expired-token cleanup.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hashvault/wallet-backend/internal/adapter/postgres"
	userrepo "github.com/hashvault/wallet-backend/internal/adapter/postgres/user"
	"github.com/hashvault/wallet-backend/internal/config"
	"github.com/hashvault/wallet-backend/internal/domain"
)

// usersRepo defines the user façade surface needed by the auth service.
// Refresh tokens live on the User document as an embedded collection; a
// save against a prior snapshot synchronizes only the delta.
type usersRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByRefreshToken(ctx context.Context, tokenHash string) (*domain.User, error)
	Save(ctx context.Context, u *domain.User, prev *userrepo.Snapshot) (*userrepo.Snapshot, error)
	VerifyPassword(u *domain.User, plaintext string) bool
	UpdateMany(ctx context.Context, f postgres.Filter, u postgres.Update) (int64, error)
}

// jwtManager defines the token management interface needed by the auth service.
type jwtManager interface {
	GenerateAccessToken(userID uuid.UUID, role string) (string, error)
	ValidateAccessToken(token string) (uuid.UUID, string, error)
	GenerateRefreshToken() (raw string, hash string, err error)
}

// Service implements auth operations.
type Service struct {
	log   *slog.Logger
	users usersRepo
	jwt   jwtManager
	cfg   config.AuthConfig
}

// NewService creates a new auth service instance.
func NewService(logger *slog.Logger, users usersRepo, jwt jwtManager, cfg config.AuthConfig) *Service {
	return &Service{
		log:   logger.With("service", "auth"),
		users: users,
		jwt:   jwt,
		cfg:   cfg,
	}
}

// issueTokens generates an access/refresh pair, appends the refresh hash to
// the user's embedded collection, and delta-saves against prev. The caller
// applies any other document mutations before calling.
func (s *Service) issueTokens(ctx context.Context, u *domain.User, prev *userrepo.Snapshot) (*AuthResult, error) {
	rawRefresh, hashRefresh, err := s.jwt.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	u.AppendRefreshToken(hashRefresh, time.Now().Add(s.cfg.RefreshTokenTTL))
	if _, err := s.users.Save(ctx, u, prev); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	// The save assigns the identity on first insert, so the access token
	// is minted after it.
	accessToken, err := s.jwt.GenerateAccessToken(u.ID, u.Role.String())
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		User:         u,
	}, nil
}
