package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashvault/wallet-backend/internal/domain"
)

// Register creates a new account and issues the first token pair. The user
// document and its initial refresh token are written in one save, so a
// failed token write leaves no orphaned account. Returns ErrAlreadyExists
// when the email is taken.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	u := &domain.User{
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
		Role:     domain.DefaultUserRole,
		Status:   domain.UserStatusActive,
	}

	// A new document saves against a nil snapshot; the façade hashes the
	// plaintext password and inserts the token child row in the same
	// transaction as the user row.
	result, err := s.issueTokens(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	s.log.InfoContext(ctx, "user registered",
		slog.String("user_id", u.ID.String()))

	return result, nil
}
