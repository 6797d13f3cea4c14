// Package wallet implements the standalone Wallet document façade.
package wallet

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
	Name:   "wallets",
	Entity: "wallet",
	Columns: []string{
		"id", "user_id", "address", "network", "label", "is_primary",
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

// Repo provides Wallet document persistence backed by PostgreSQL.
type Repo struct {
	db     postgres.DB
	coll   *postgres.Collection[domain.Wallet]
	window uint64
}

// Option configures the repository.
type Option func(*Repo)

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new wallet repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.coll = postgres.NewCollection(db, table, scanWallet,
		postgres.WithResolver(resolveField),
		postgres.WithMaxWindow[domain.Wallet](r.window),
	)
	return r
}

// Find returns a lazy cursor over wallets matching the filter.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.Wallet] {
	return r.coll.Find(f)
}

// FindByID returns the wallet with the given identity.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.coll.FindByID(ctx, id)
}

// FindOne returns the first wallet matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.Wallet, error) {
	return r.coll.FindOne(ctx, f)
}

// FindByAddress returns the wallet registered under an address on a network.
func (r *Repo) FindByAddress(ctx context.Context, address string, network domain.Network) (*domain.Wallet, error) {
	return r.coll.FindOne(ctx, postgres.Filter{
		"address": address,
		"network": network.String(),
	})
}

// Count returns the number of wallets matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// Aggregate evaluates the supported pipeline shapes; the dashboard asks for
// per-network wallet tallies.
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	return r.coll.Aggregate(ctx, p)
}

// DeleteMany removes every wallet matching the filter.
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// Save persists the document: insert when new (identity and creation
// timestamp copied back), update by identity otherwise.
func (r *Repo) Save(ctx context.Context, w *domain.Wallet) error {
	if w.Network == "" {
		w.Network = domain.DefaultNetwork
	}

	q := postgres.QuerierFromCtx(ctx, r.db)

	if w.IsNew() {
		sqlStr, args, err := squirrel.Insert(table.Name).
			Columns("user_id", "address", "network", "label", "is_primary").
			Values(w.UserID, w.Address, w.Network.String(), w.Label, w.IsPrimary).
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
		Set("user_id", w.UserID).
		Set("address", w.Address).
		Set("network", w.Network.String()).
		Set("label", w.Label).
		Set("is_primary", w.IsPrimary).
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

// InsertMany bulk-inserts new wallets with client-assigned identities.
func (r *Repo) InsertMany(ctx context.Context, ws []*domain.Wallet) error {
	if len(ws) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range ws {
		if !w.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		if w.Network == "" {
			w.Network = domain.DefaultNetwork
		}
		w.ID = uuid.New()
		batch.Queue(
			`INSERT INTO wallets (id, user_id, address, network, label, is_primary)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			w.ID, w.UserID, w.Address, w.Network.String(), w.Label, w.IsPrimary,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, table.Entity, uuid.Nil)
	}
	return nil
}

func scanWallet(rows pgx.Rows) (*domain.Wallet, error) {
	var (
		id        uuid.UUID
		userID    uuid.UUID
		address   pgtype.Text
		network   pgtype.Text
		label     pgtype.Text
		isPrimary pgtype.Bool
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &userID, &address, &network, &label, &isPrimary,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	return &domain.Wallet{
		ID:        id,
		UserID:    userID,
		Address:   postgres.TextOr(address, ""),
		Network:   domain.Network(postgres.TextOr(network, domain.DefaultNetwork.String())),
		Label:     postgres.TextOr(label, ""),
		IsPrimary: postgres.BoolOr(isPrimary, false),
		CreatedAt: postgres.TimeOrNow(createdAt),
		UpdatedAt: postgres.TimeOrNow(updatedAt),
	}, nil
}

func resolveField(w *domain.Wallet, field string) (any, bool) {
	switch field {
	case "_id", "id":
		return w.ID.String(), true
	case "user":
		return w.UserID.String(), true
	case "address":
		return w.Address, true
	case "network":
		return w.Network.String(), true
	case "label":
		return w.Label, true
	case "isPrimary":
		return w.IsPrimary, true
	case "createdAt":
		return w.CreatedAt, true
	case "updatedAt":
		return w.UpdatedAt, true
	}
	return nil, false
}
