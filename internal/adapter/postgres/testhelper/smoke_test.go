package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/hashvault/wallet-backend/internal/domain"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)
	ctx := context.Background()

	user := SeedUser(t, pool)

	var email string
	err := pool.QueryRow(ctx,
		`SELECT email FROM users WHERE id = $1`,
		user.ID,
	).Scan(&email)
	if err != nil {
		t.Fatalf("expected seeded user in DB, got error: %v", err)
	}
	if email != user.Email {
		t.Fatalf("expected email %q, got %q", user.Email, email)
	}

	tx := SeedTransaction(t, pool, user.ID, domain.TxStatusPending, 1.5, time.Now())

	var amount float64
	err = pool.QueryRow(ctx,
		`SELECT amount FROM transactions WHERE id = $1`,
		tx.ID,
	).Scan(&amount)
	if err != nil {
		t.Fatalf("expected seeded transaction in DB, got error: %v", err)
	}
	if amount != 1.5 {
		t.Fatalf("expected amount 1.5, got %v", amount)
	}
}
