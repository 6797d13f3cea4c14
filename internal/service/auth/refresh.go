package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	userrepo "github.com/hashvault/wallet-backend/internal/adapter/postgres/user"
	"github.com/hashvault/wallet-backend/internal/auth"
	"github.com/hashvault/wallet-backend/internal/domain"
)

// Refresh rotates a refresh token: the presented token is removed from the
// user's embedded collection and a new pair is appended, in one delta-save.
// A token that is not on any document (revoked or already rotated) is
// treated as reuse and returns ErrUnauthorized.
func (s *Service) Refresh(ctx context.Context, input RefreshInput) (*AuthResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hash := auth.HashToken(input.RefreshToken)

	u, err := s.users.FindByRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.WarnContext(ctx, "refresh token reuse attempted")
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("auth.Refresh get user: %w", err)
	}

	var presented *domain.RefreshToken
	for i := range u.RefreshTokens {
		if u.RefreshTokens[i].TokenHash == hash {
			presented = &u.RefreshTokens[i]
			break
		}
	}
	if presented == nil || presented.IsExpired(time.Now()) {
		return nil, domain.ErrUnauthorized
	}
	if u.Status != domain.UserStatusActive {
		return nil, domain.ErrForbidden
	}

	prev := userrepo.SnapshotOf(u)
	u.RemoveRefreshToken(hash)

	result, err := s.issueTokens(ctx, u, prev)
	if err != nil {
		return nil, fmt.Errorf("auth.Refresh: %w", err)
	}

	s.log.InfoContext(ctx, "refresh token rotated",
		slog.String("user_id", u.ID.String()))

	return result, nil
}
