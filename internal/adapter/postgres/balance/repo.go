// Package balance implements the Balance document façade. Balances are
// unique per (user, currency); the treasury report groups them by currency
// with count and amount sums.
package balance

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/domain"
)

var table = postgres.Table{
	Name:   "balances",
	Entity: "balance",
	Columns: []string{
		"id", "user_id", "currency", "amount", "locked",
		"created_at", "updated_at",
	},
	FieldColumns: map[string]string{
		"_id":  "id",
		"id":   "id",
		"user": "user_id",
	},
	ColumnFields: map[string]string{
		"user_id": "user",
	},
}

// Repo provides Balance document persistence backed by PostgreSQL.
type Repo struct {
	db     postgres.DB
	coll   *postgres.Collection[domain.Balance]
	window uint64
}

// Option configures the repository.
type Option func(*Repo)

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new balance repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.coll = postgres.NewCollection(db, table, scanBalance,
		postgres.WithResolver(resolveField),
		postgres.WithMaxWindow[domain.Balance](r.window),
	)
	return r
}

// Find returns a lazy cursor over balances matching the filter.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.Balance] {
	return r.coll.Find(f)
}

// FindByID returns the balance with the given identity.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Balance, error) {
	return r.coll.FindByID(ctx, id)
}

// FindOne returns the first balance matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.Balance, error) {
	return r.coll.FindOne(ctx, f)
}

// FindByUserCurrency returns the user's balance in the given currency.
func (r *Repo) FindByUserCurrency(ctx context.Context, userID uuid.UUID, currency string) (*domain.Balance, error) {
	return r.coll.FindOne(ctx, postgres.Filter{
		"user":     userID,
		"currency": currency,
	})
}

// Count returns the number of balances matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// Aggregate evaluates the supported pipeline shapes. The treasury report
// issues a group-by-currency with holder count and amount sum:
//
//	[{$group: {_id: "$currency", count: {$sum: 1}, total: {$sum: "$amount"}}}]
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	return r.coll.Aggregate(ctx, p)
}

// DeleteMany removes every balance matching the filter.
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// Save persists the document: insert when new (identity and creation
// timestamp copied back), update by identity otherwise.
func (r *Repo) Save(ctx context.Context, b *domain.Balance) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	if b.IsNew() {
		sqlStr, args, err := squirrel.Insert(table.Name).
			Columns("user_id", "currency", "amount", "locked").
			Values(b.UserID, b.Currency, b.Amount, b.Locked).
			Suffix("RETURNING id, created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := q.QueryRow(ctx, sqlStr, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return postgres.MapError(err, table.Entity, uuid.Nil)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		return nil
	}

	now := postgres.Now()
	sqlStr, args, err := squirrel.Update(table.Name).
		Set("user_id", b.UserID).
		Set("currency", b.Currency).
		Set("amount", b.Amount).
		Set("locked", b.Locked).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": b.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return postgres.MapError(err, table.Entity, b.ID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, table.Entity, b.ID)
	}
	b.UpdatedAt = now
	return nil
}

// InsertMany bulk-inserts new balances with client-assigned identities.
func (r *Repo) InsertMany(ctx context.Context, bs []*domain.Balance) error {
	if len(bs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, b := range bs {
		if !b.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		b.ID = uuid.New()
		batch.Queue(
			`INSERT INTO balances (id, user_id, currency, amount, locked)
			 VALUES ($1, $2, $3, $4, $5)`,
			b.ID, b.UserID, b.Currency, b.Amount, b.Locked,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, table.Entity, uuid.Nil)
	}
	return nil
}

func scanBalance(rows pgx.Rows) (*domain.Balance, error) {
	var (
		id        uuid.UUID
		userID    uuid.UUID
		currency  pgtype.Text
		amount    pgtype.Float8
		locked    pgtype.Float8
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &userID, &currency, &amount, &locked,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	b := &domain.Balance{
		ID:        id,
		UserID:    userID,
		Currency:  postgres.TextOr(currency, ""),
		CreatedAt: postgres.TimeOrNow(createdAt),
		UpdatedAt: postgres.TimeOrNow(updatedAt),
	}
	if amount.Valid {
		b.Amount = amount.Float64
	}
	if locked.Valid {
		b.Locked = locked.Float64
	}
	return b, nil
}

func resolveField(b *domain.Balance, field string) (any, bool) {
	switch field {
	case "_id", "id":
		return b.ID.String(), true
	case "user":
		return b.UserID.String(), true
	case "currency":
		return b.Currency, true
	case "amount":
		return b.Amount, true
	case "locked":
		return b.Locked, true
	case "createdAt":
		return b.CreatedAt, true
	case "updatedAt":
		return b.UpdatedAt, true
	}
	return nil, false
}
