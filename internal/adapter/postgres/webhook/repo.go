// Package webhook implements the Webhook endpoint document façade.
// A NULL active column materializes as true; delivery secrets are compared
// in constant time.
package webhook

import (
	"context"
	"crypto/subtle"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/domain"
)

var table = postgres.Table{
	Name:   "webhooks",
	Entity: "webhook",
	Columns: []string{
		"id", "url", "secret", "events", "active", "created_at", "updated_at",
	},
	FieldColumns: map[string]string{
		"_id": "id",
		"id":  "id",
	},
	ColumnFields: map[string]string{},
}

// Repo provides Webhook document persistence backed by PostgreSQL.
type Repo struct {
	db     postgres.DB
	coll   *postgres.Collection[domain.Webhook]
	window uint64
}

// Option configures the repository.
type Option func(*Repo)

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new webhook repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.coll = postgres.NewCollection(db, table, scanWebhook,
		postgres.WithResolver(resolveField),
		postgres.WithMaxWindow[domain.Webhook](r.window),
	)
	return r
}

// Find returns a lazy cursor over webhooks matching the filter.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.Webhook] {
	return r.coll.Find(f)
}

// FindByID returns the webhook with the given identity.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	return r.coll.FindByID(ctx, id)
}

// FindOne returns the first webhook matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.Webhook, error) {
	return r.coll.FindOne(ctx, f)
}

// Count returns the number of webhooks matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// Aggregate evaluates the supported pipeline shapes.
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	return r.coll.Aggregate(ctx, p)
}

// DeleteMany removes every webhook matching the filter.
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// VerifySecret reports whether the presented secret matches the endpoint's,
// comparing in constant time.
func (r *Repo) VerifySecret(w *domain.Webhook, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(w.Secret), []byte(secret)) == 1
}

// Save persists the document: insert when new (identity and creation
// timestamp copied back), update by identity otherwise.
func (r *Repo) Save(ctx context.Context, w *domain.Webhook) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	if w.IsNew() {
		sqlStr, args, err := squirrel.Insert(table.Name).
			Columns("url", "secret", "events", "active").
			Values(w.URL, w.Secret, w.Events, w.Active).
			Suffix("RETURNING id, created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := q.QueryRow(ctx, sqlStr, args...).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return postgres.MapError(err, table.Entity, uuid.Nil)
		}
		w.CreatedAt = w.CreatedAt.UTC()
		w.UpdatedAt = w.UpdatedAt.UTC()
		return nil
	}

	now := postgres.Now()
	sqlStr, args, err := squirrel.Update(table.Name).
		Set("url", w.URL).
		Set("secret", w.Secret).
		Set("events", w.Events).
		Set("active", w.Active).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": w.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return postgres.MapError(err, table.Entity, w.ID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, table.Entity, w.ID)
	}
	w.UpdatedAt = now
	return nil
}

// InsertMany bulk-inserts new webhooks with client-assigned identities.
func (r *Repo) InsertMany(ctx context.Context, ws []*domain.Webhook) error {
	if len(ws) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range ws {
		if !w.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		w.ID = uuid.New()
		batch.Queue(
			`INSERT INTO webhooks (id, url, secret, events, active)
			 VALUES ($1, $2, $3, $4, $5)`,
			w.ID, w.URL, w.Secret, w.Events, w.Active,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, table.Entity, uuid.Nil)
	}
	return nil
}

func scanWebhook(rows pgx.Rows) (*domain.Webhook, error) {
	var (
		id        uuid.UUID
		url       pgtype.Text
		secret    pgtype.Text
		events    []string
		active    pgtype.Bool
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &url, &secret, &events, &active, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if events == nil {
		events = []string{}
	}
	return &domain.Webhook{
		ID:        id,
		URL:       postgres.TextOr(url, ""),
		Secret:    postgres.TextOr(secret, ""),
		Events:    events,
		Active:    postgres.BoolOr(active, true),
		CreatedAt: postgres.TimeOrNow(createdAt),
		UpdatedAt: postgres.TimeOrNow(updatedAt),
	}, nil
}

func resolveField(w *domain.Webhook, field string) (any, bool) {
	switch field {
	case "_id", "id":
		return w.ID.String(), true
	case "url":
		return w.URL, true
	case "active":
		return w.Active, true
	case "createdAt":
		return w.CreatedAt, true
	case "updatedAt":
		return w.UpdatedAt, true
	}
	return nil, false
}
