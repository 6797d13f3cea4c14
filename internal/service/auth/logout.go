package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hashvault/wallet-backend/internal/adapter/postgres"
	userrepo "github.com/hashvault/wallet-backend/internal/adapter/postgres/user"
	"github.com/hashvault/wallet-backend/internal/auth"
	"github.com/hashvault/wallet-backend/internal/domain"
)

// Logout revokes one session: the presented refresh token is removed from
// the user's embedded collection. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("auth.Logout get user: %w", err)
	}

	prev := userrepo.SnapshotOf(u)
	u.RemoveRefreshToken(auth.HashToken(refreshToken))
	if _, err := s.users.Save(ctx, u, prev); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}

	s.log.InfoContext(ctx, "user logged out", slog.String("user_id", userID.String()))
	return nil
}

// LogoutAll revokes every session of the user by clearing the embedded
// token collection in one delta-save.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("auth.LogoutAll get user: %w", err)
	}

	prev := userrepo.SnapshotOf(u)
	u.RefreshTokens = []domain.RefreshToken{}
	if _, err := s.users.Save(ctx, u, prev); err != nil {
		return fmt.Errorf("auth.LogoutAll: %w", err)
	}

	s.log.InfoContext(ctx, "all sessions revoked", slog.String("user_id", userID.String()))
	return nil
}

// ValidateToken validates an access token and returns the user ID and role.
// Returns ErrUnauthorized if the token is invalid or expired.
func (s *Service) ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error) {
	userID, role, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return uuid.Nil, "", domain.ErrUnauthorized
	}
	return userID, role, nil
}

// CleanupExpiredTokens removes expired refresh tokens across all users and
// returns the number removed. This is a maintenance operation.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	count, err := s.users.UpdateMany(ctx, postgres.Filter{}, postgres.Update{
		"$pull": map[string]any{
			"refreshTokens": map[string]any{
				"expiresAt": map[string]any{"$lt": postgres.Now()},
			},
		},
	})
	if err != nil {
		s.log.ErrorContext(ctx, "token cleanup failed", slog.String("error", err.Error()))
		return 0, fmt.Errorf("auth.CleanupExpiredTokens: %w", err)
	}

	if count > 0 {
		s.log.InfoContext(ctx, "cleaned up expired tokens", slog.Int64("count", count))
	}
	return count, nil
}
