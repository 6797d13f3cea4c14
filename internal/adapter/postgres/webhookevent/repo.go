// Package webhookevent implements the WebhookEvent delivery-queue façade.
// The dispatcher enqueues events with InsertMany, expands the owning
// endpoint with Populate("webhook"), and purges delivered history with
// DeleteMany on a createdAt cutoff.
package webhookevent

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/domain"
)

var table = postgres.Table{
	Name:   "webhook_events",
	Entity: "webhook event",
	Columns: []string{
		"id", "webhook_id", "event", "payload", "status",
		"attempts", "last_attempt_at", "created_at",
	},
	FieldColumns: map[string]string{
		"_id":     "id",
		"id":      "id",
		"webhook": "webhook_id",
	},
	ColumnFields: map[string]string{
		"webhook_id": "webhook",
	},
}

// Repo provides WebhookEvent document persistence backed by PostgreSQL.
type Repo struct {
	db     postgres.DB
	coll   *postgres.Collection[domain.WebhookEvent]
	window uint64
}

// Option configures the repository.
type Option func(*Repo)

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new webhook event repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.coll = postgres.NewCollection(db, table, scanEvent,
		postgres.WithResolver(resolveField),
		postgres.WithPopulate("webhook", populateWebhooks),
		postgres.WithMaxWindow[domain.WebhookEvent](r.window),
	)
	return r
}

// Find returns a lazy cursor. Chain Populate("webhook") to resolve the
// owning endpoint in one extra batched round trip.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.WebhookEvent] {
	return r.coll.Find(f)
}

// FindByID returns the event with the given identity.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	return r.coll.FindByID(ctx, id)
}

// FindOne returns the first event matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.WebhookEvent, error) {
	return r.coll.FindOne(ctx, f)
}

// Count returns the number of events matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// Aggregate evaluates the supported pipeline shapes; the delivery monitor
// tallies events by status.
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	return r.coll.Aggregate(ctx, p)
}

// DeleteMany removes every event matching the filter. The retention job
// purges delivered events older than a cutoff.
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// Save persists the document: insert when new (identity and creation
// timestamp copied back), update by identity otherwise. The dispatcher
// updates status, attempts, and lastAttemptAt after each delivery try.
func (r *Repo) Save(ctx context.Context, e *domain.WebhookEvent) error {
	if e.Status == "" {
		e.Status = domain.DefaultDeliveryStatus
	}
	payload, err := postgres.JSONValue(e.Payload)
	if err != nil {
		return err
	}

	q := postgres.QuerierFromCtx(ctx, r.db)

	if e.IsNew() {
		sqlStr, args, err := squirrel.Insert(table.Name).
			Columns("webhook_id", "event", "payload", "status", "attempts", "last_attempt_at").
			Values(e.WebhookID, e.Event, payload, e.Status.String(), e.Attempts, e.LastAttemptAt).
			Suffix("RETURNING id, created_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := q.QueryRow(ctx, sqlStr, args...).Scan(&e.ID, &e.CreatedAt); err != nil {
			return postgres.MapError(err, table.Entity, uuid.Nil)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		return nil
	}

	sqlStr, args, err := squirrel.Update(table.Name).
		Set("webhook_id", e.WebhookID).
		Set("event", e.Event).
		Set("payload", payload).
		Set("status", e.Status.String()).
		Set("attempts", e.Attempts).
		Set("last_attempt_at", e.LastAttemptAt).
		Where(squirrel.Eq{"id": e.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return postgres.MapError(err, table.Entity, e.ID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, table.Entity, e.ID)
	}
	return nil
}

// InsertMany enqueues new deliveries with client-assigned identities so the
// dispatcher can correlate attempts immediately.
func (r *Repo) InsertMany(ctx context.Context, es []*domain.WebhookEvent) error {
	if len(es) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range es {
		if !e.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		if e.Status == "" {
			e.Status = domain.DefaultDeliveryStatus
		}
		payload, err := postgres.JSONValue(e.Payload)
		if err != nil {
			return err
		}
		e.ID = uuid.New()
		batch.Queue(
			`INSERT INTO webhook_events (id, webhook_id, event, payload, status, attempts, last_attempt_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.WebhookID, e.Event, payload, e.Status.String(), e.Attempts, e.LastAttemptAt,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, table.Entity, uuid.Nil)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Materialization
// ---------------------------------------------------------------------------

func scanEvent(rows pgx.Rows) (*domain.WebhookEvent, error) {
	var (
		id            uuid.UUID
		webhookID     uuid.UUID
		event         pgtype.Text
		payload       []byte
		status        pgtype.Text
		attempts      pgtype.Int4
		lastAttemptAt pgtype.Timestamptz
		createdAt     pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &webhookID, &event, &payload, &status,
		&attempts, &lastAttemptAt, &createdAt,
	); err != nil {
		return nil, err
	}

	body, err := postgres.JSONMap(payload)
	if err != nil {
		return nil, err
	}

	return &domain.WebhookEvent{
		ID:            id,
		WebhookID:     webhookID,
		Event:         postgres.TextOr(event, ""),
		Payload:       body,
		Status:        domain.DeliveryStatus(postgres.TextOr(status, domain.DefaultDeliveryStatus.String())),
		Attempts:      postgres.IntOr(attempts, 0),
		LastAttemptAt: postgres.TimePtr(lastAttemptAt),
		CreatedAt:     postgres.TimeOrNow(createdAt),
	}, nil
}

// resolveField serves deferred sorts and aggregation grouping, including
// dotted paths into the payload JSON blob.
func resolveField(e *domain.WebhookEvent, field string) (any, bool) {
	if rest, ok := strings.CutPrefix(field, "payload."); ok {
		return postgres.LookupPath(e.Payload, rest)
	}

	switch field {
	case "_id", "id":
		return e.ID.String(), true
	case "webhook":
		return e.WebhookID.String(), true
	case "event":
		return e.Event, true
	case "status":
		return e.Status.String(), true
	case "attempts":
		return e.Attempts, true
	case "lastAttemptAt":
		if e.LastAttemptAt == nil {
			return nil, true
		}
		return *e.LastAttemptAt, true
	case "createdAt":
		return e.CreatedAt, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Reference expansion
// ---------------------------------------------------------------------------

type webhookRow struct {
	ID      uuid.UUID          `db:"id"`
	URL     pgtype.Text        `db:"url"`
	Secret  pgtype.Text        `db:"secret"`
	Events  []string           `db:"events"`
	Active  pgtype.Bool        `db:"active"`
	Created pgtype.Timestamptz `db:"created_at"`
	Updated pgtype.Timestamptz `db:"updated_at"`
}

// populateWebhooks resolves each event's owning endpoint with a single
// batched lookup over the distinct referenced ids.
func populateWebhooks(ctx context.Context, q postgres.Querier, docs []*domain.WebhookEvent) error {
	seen := make(map[uuid.UUID]struct{}, len(docs))
	ids := make([]uuid.UUID, 0, len(docs))
	for _, e := range docs {
		if _, ok := seen[e.WebhookID]; !ok {
			seen[e.WebhookID] = struct{}{}
			ids = append(ids, e.WebhookID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var rows []webhookRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT id, url, secret, events, active, created_at, updated_at
		 FROM webhooks
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return postgres.MapError(err, "webhook", uuid.Nil)
	}

	byID := make(map[uuid.UUID]*domain.Webhook, len(rows))
	for _, row := range rows {
		events := row.Events
		if events == nil {
			events = []string{}
		}
		byID[row.ID] = &domain.Webhook{
			ID:        row.ID,
			URL:       postgres.TextOr(row.URL, ""),
			Secret:    postgres.TextOr(row.Secret, ""),
			Events:    events,
			Active:    postgres.BoolOr(row.Active, true),
			CreatedAt: postgres.TimeOrNow(row.Created),
			UpdatedAt: postgres.TimeOrNow(row.Updated),
		}
	}

	for _, e := range docs {
		e.Webhook = byID[e.WebhookID]
	}
	return nil
}
