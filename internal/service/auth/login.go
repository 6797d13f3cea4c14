package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashvault/wallet-backend/internal/adapter/postgres"
	userrepo "github.com/hashvault/wallet-backend/internal/adapter/postgres/user"
	"github.com/hashvault/wallet-backend/internal/domain"
)

// Login authenticates with email + password and issues a token pair.
// Returns ErrUnauthorized when the email is unknown or the password is
// wrong, ErrForbidden for suspended and deleted accounts.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := input.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("auth.Login get user: %w", err)
	}

	if !s.users.VerifyPassword(u, input.Password) {
		return nil, domain.ErrUnauthorized
	}
	if u.Status != domain.UserStatusActive {
		return nil, domain.ErrForbidden
	}

	prev := userrepo.SnapshotOf(u)
	now := postgres.Now()
	u.LastLoginAt = &now

	result, err := s.issueTokens(ctx, u, prev)
	if err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	s.log.InfoContext(ctx, "user logged in",
		slog.String("user_id", u.ID.String()))

	return result, nil
}
