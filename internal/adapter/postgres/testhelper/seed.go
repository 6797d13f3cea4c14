package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hashvault/wallet-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedUser creates a user row with default role and status.
// Returns a filled domain.User (no embedded collection entries).
func SeedUser(t *testing.T, pool *pgxpool.Pool) domain.User {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := domain.User{
		ID:            uuid.New(),
		Email:         "testuser-" + suffix + "@example.com",
		Password:      "$2a$10$seeded.hash.placeholder.only.for.tests0000000000000000",
		Name:          "Test User " + suffix,
		Role:          domain.DefaultUserRole,
		Status:        domain.UserStatusActive,
		Wallets:       []domain.UserWallet{},
		Notifications: []domain.Notification{},
		RefreshTokens: []domain.RefreshToken{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.Password, user.Name,
		user.Role.String(), user.Status.String(), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedUser insert user: %v", err)
	}

	return user
}

// SeedTransaction creates a transaction row owned by the given user.
func SeedTransaction(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, status domain.TxStatus, amount float64, createdAt time.Time) domain.Transaction {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	tx := domain.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		TxHash:    "0xhash" + suffix,
		Type:      domain.TxTypeDeposit,
		Status:    status,
		Amount:    amount,
		Currency:  "ETH",
		Network:   domain.NetworkEthereum,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
		UpdatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO transactions (id, user_id, tx_hash, type, status, amount, currency, network, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, tx.UserID, tx.TxHash, tx.Type.String(), tx.Status.String(),
		tx.Amount, tx.Currency, tx.Network.String(), tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedTransaction insert: %v", err)
	}

	return tx
}

// SeedBalance creates a balance row for the given user and currency.
func SeedBalance(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, currency string, amount float64) domain.Balance {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	b := domain.Balance{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  currency,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO balances (id, user_id, currency, amount, locked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.UserID, b.Currency, b.Amount, b.Locked, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedBalance insert: %v", err)
	}

	return b
}

// SeedAuditLog creates an audit log row.
func SeedAuditLog(t *testing.T, pool *pgxpool.Pool, userID *uuid.UUID, action string, network domain.Network) domain.AuditLog {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	a := domain.AuditLog{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Network:   network,
		IP:        "127.0.0.1",
		CreatedAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, network, ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.Action, a.Network.String(), a.IP, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedAuditLog insert: %v", err)
	}

	return a
}

// SeedWebhook creates a webhook endpoint row.
func SeedWebhook(t *testing.T, pool *pgxpool.Pool, events []string) domain.Webhook {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	w := domain.Webhook{
		ID:        uuid.New(),
		URL:       "https://hooks.example.com/" + suffix,
		Secret:    "whsec_" + suffix,
		Events:    events,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO webhooks (id, url, secret, events, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.URL, w.Secret, w.Events, w.Active, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedWebhook insert: %v", err)
	}

	return w
}
