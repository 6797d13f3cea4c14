// Command cleanup-tokens removes expired refresh tokens across all user
// documents.
//
// Usage:
//
//	cleanup-tokens
//
// Configuration is loaded the same way as the main binaries (CONFIG_PATH
// or environment variables).
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hashvault/wallet-backend/internal/adapter/postgres"
	userrepo "github.com/hashvault/wallet-backend/internal/adapter/postgres/user"
	"github.com/hashvault/wallet-backend/internal/app"
	"github.com/hashvault/wallet-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	users := userrepo.New(pool,
		userrepo.WithHashCost(cfg.Auth.PasswordHashCost),
		userrepo.WithMaxWindow(cfg.Store.MaxQueryWindow),
	)

	count, err := users.UpdateMany(ctx, postgres.Filter{}, postgres.Update{
		"$pull": map[string]any{
			"refreshTokens": map[string]any{
				"expiresAt": map[string]any{"$lt": postgres.Now()},
			},
		},
	})
	if err != nil {
		logger.Error("cleanup tokens", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("expired refresh tokens removed", slog.Int64("count", count))
}
