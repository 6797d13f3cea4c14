//go:build e2e

package e2e_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hashvault/wallet-backend/internal/adapter/postgres/testhelper"
	userrepo "github.com/hashvault/wallet-backend/internal/adapter/postgres/user"
	authpkg "github.com/hashvault/wallet-backend/internal/auth"
	"github.com/hashvault/wallet-backend/internal/config"
	authsvc "github.com/hashvault/wallet-backend/internal/service/auth"
)

// testStack wires the auth service against a real database, the way main
// assembles it.
type testStack struct {
	pool  *pgxpool.Pool
	users *userrepo.Repo
	auth  *authsvc.Service
}

func setupStack(t *testing.T) *testStack {
	t.Helper()

	pool := testhelper.SetupTestDB(t)

	cfg := config.AuthConfig{
		JWTSecret:        "e2e-secret-e2e-secret-e2e-secret!",
		JWTIssuer:        "hashvault",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  30 * 24 * time.Hour,
		PasswordHashCost: 4, // minimum cost for fast tests
	}

	users := userrepo.New(pool, userrepo.WithHashCost(cfg.PasswordHashCost))
	jwt := authpkg.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)

	return &testStack{
		pool:  pool,
		users: users,
		auth:  authsvc.NewService(slog.Default(), users, jwt, cfg),
	}
}
