package webhookevent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/adapter/postgres/testhelper"
	"github.com/hashvault/wallet-backend/internal/adapter/postgres/webhookevent"
	"github.com/hashvault/wallet-backend/internal/domain"
)

func newRepo(t *testing.T) (*webhookevent.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return webhookevent.New(pool), pool
}

func TestRepo_Save_EnqueueAndRetry(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	hook := testhelper.SeedWebhook(t, pool, []string{"tx.confirmed"})

	e := &domain.WebhookEvent{
		WebhookID: hook.ID,
		Event:     "tx.confirmed",
		Payload:   map[string]any{"txHash": "0xabc", "amount": 1.5},
	}
	if err := repo.Save(ctx, e); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Fatal("Save must assign the id on first insert")
	}
	if e.Status != domain.DeliveryStatusPending {
		t.Errorf("Status = %s, want the pending default", e.Status)
	}

	// A failed delivery attempt updates the tracking fields.
	now := time.Now().UTC().Truncate(time.Microsecond)
	e.Status = domain.DeliveryStatusFailed
	e.Attempts = 1
	e.LastAttemptAt = &now
	if err := repo.Save(ctx, e); err != nil {
		t.Fatalf("Save attempt: %v", err)
	}

	got, err := repo.FindByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != domain.DeliveryStatusFailed || got.Attempts != 1 {
		t.Errorf("got status=%s attempts=%d, want failed/1", got.Status, got.Attempts)
	}
	if got.LastAttemptAt == nil || !got.LastAttemptAt.Equal(now) {
		t.Errorf("LastAttemptAt = %v, want %v", got.LastAttemptAt, now)
	}
	if got.Payload["txHash"] != "0xabc" {
		t.Errorf("Payload = %v, want the stored blob", got.Payload)
	}
}

func TestRepo_InsertMany(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	hook := testhelper.SeedWebhook(t, pool, []string{"tx.confirmed"})
	events := []*domain.WebhookEvent{
		{WebhookID: hook.ID, Event: "tx.confirmed", Payload: map[string]any{"n": 1.0}},
		{WebhookID: hook.ID, Event: "tx.confirmed", Payload: map[string]any{"n": 2.0}},
	}
	if err := repo.InsertMany(ctx, events); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	n, err := repo.Count(ctx, postgres.Filter{"webhook": hook.ID})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
	for _, e := range events {
		if e.Status != domain.DeliveryStatusPending {
			t.Errorf("Status = %s, want the pending default", e.Status)
		}
	}
}

func TestRepo_Find_PopulateWebhook(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	hook := testhelper.SeedWebhook(t, pool, []string{"tx.failed"})
	for i := 0; i < 2; i++ {
		e := &domain.WebhookEvent{WebhookID: hook.ID, Event: "tx.failed"}
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := repo.Find(postgres.Filter{"webhook": hook.ID}).
		Populate("webhook").
		All(ctx)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, e := range got {
		if e.Webhook == nil {
			t.Fatal("Webhook not populated")
		}
		if e.Webhook.URL != hook.URL {
			t.Errorf("Webhook.URL = %q, want %q", e.Webhook.URL, hook.URL)
		}
	}
}

func TestRepo_Find_PendingQueue(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	hook := testhelper.SeedWebhook(t, pool, []string{"tx.confirmed"})

	pending := &domain.WebhookEvent{WebhookID: hook.ID, Event: "tx.confirmed"}
	if err := repo.Save(ctx, pending); err != nil {
		t.Fatalf("Save: %v", err)
	}
	delivered := &domain.WebhookEvent{
		WebhookID: hook.ID,
		Event:     "tx.confirmed",
		Status:    domain.DeliveryStatusDelivered,
	}
	if err := repo.Save(ctx, delivered); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Find(postgres.Filter{"webhook": hook.ID, "status": "pending"}).
		Sort(postgres.SortSpec{{Field: "createdAt", Dir: 1}}).
		All(ctx)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != pending.ID {
		t.Errorf("got %d events, want only the pending one", len(got))
	}
}

func TestRepo_DeleteMany_PurgeDelivered(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	hook := testhelper.SeedWebhook(t, pool, []string{"tx.confirmed"})
	statuses := []domain.DeliveryStatus{
		domain.DeliveryStatusDelivered,
		domain.DeliveryStatusDelivered,
		domain.DeliveryStatusFailed,
	}
	for _, st := range statuses {
		e := &domain.WebhookEvent{WebhookID: hook.ID, Event: "tx.confirmed", Status: st}
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	n, err := repo.DeleteMany(ctx, postgres.Filter{
		"webhook": hook.ID,
		"status":  "delivered",
	})
	if err != nil {
		t.Fatalf("DeleteMany: %v", err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}

	left, err := repo.Count(ctx, postgres.Filter{"webhook": hook.ID})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if left != 1 {
		t.Errorf("remaining = %d, want 1", left)
	}
}

func TestRepo_Aggregate_GroupByStatus(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	hook := testhelper.SeedWebhook(t, pool, []string{"tx.confirmed"})
	statuses := []domain.DeliveryStatus{
		domain.DeliveryStatusPending,
		domain.DeliveryStatusPending,
		domain.DeliveryStatusFailed,
	}
	for _, st := range statuses {
		e := &domain.WebhookEvent{WebhookID: hook.ID, Event: "tx.confirmed", Status: st}
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	res, err := repo.Aggregate(ctx, postgres.Pipeline{
		{"$match": postgres.Filter{"webhook": hook.ID}},
		{"$group": map[string]any{"_id": "$status", "count": map[string]any{"$sum": 1}}},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	counts := map[string]int64{}
	for _, r := range res {
		counts[r["_id"].(string)] = r["count"].(int64)
	}
	if counts["pending"] != 2 || counts["failed"] != 1 {
		t.Errorf("counts = %v, want pending=2 failed=1", counts)
	}
}

func TestRepo_Save_UpdateMissing(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	hook := testhelper.SeedWebhook(t, pool, []string{"tx.confirmed"})
	e := &domain.WebhookEvent{WebhookID: hook.ID, Event: "tx.confirmed"}
	e.ID = uuid.New() // never persisted

	if err := repo.Save(ctx, e); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Save = %v, want ErrNotFound", err)
	}
}
