// Package token implements the listed-asset Token document façade.
// A NULL enabled column materializes as true: assets are tradable unless
// explicitly disabled.
package token

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
	Name:   "tokens",
	Entity: "token",
	Columns: []string{
		"id", "symbol", "name", "network", "contract_address",
		"decimals", "enabled", "created_at",
	},
	FieldColumns: map[string]string{
		"_id": "id",
		"id":  "id",
	},
	ColumnFields: map[string]string{},
}

// Repo provides Token document persistence backed by PostgreSQL.
type Repo struct {
	db     postgres.DB
	coll   *postgres.Collection[domain.Token]
	window uint64
}

// Option configures the repository.
type Option func(*Repo)

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new token repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.coll = postgres.NewCollection(db, table, scanToken,
		postgres.WithResolver(resolveField),
		postgres.WithMaxWindow[domain.Token](r.window),
	)
	return r
}

// Find returns a lazy cursor over tokens matching the filter.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.Token] {
	return r.coll.Find(f)
}

// FindByID returns the token with the given identity.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Token, error) {
	return r.coll.FindByID(ctx, id)
}

// FindOne returns the first token matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.Token, error) {
	return r.coll.FindOne(ctx, f)
}

// FindBySymbol returns the token listed under a symbol on a network.
func (r *Repo) FindBySymbol(ctx context.Context, symbol string, network domain.Network) (*domain.Token, error) {
	return r.coll.FindOne(ctx, postgres.Filter{
		"symbol":  symbol,
		"network": network.String(),
	})
}

// Count returns the number of tokens matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// Aggregate evaluates the supported pipeline shapes.
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	return r.coll.Aggregate(ctx, p)
}

// DeleteMany removes every token matching the filter.
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// Save persists the document: insert when new (identity and creation
// timestamp copied back), update by identity otherwise.
func (r *Repo) Save(ctx context.Context, t *domain.Token) error {
	if t.Network == "" {
		t.Network = domain.DefaultNetwork
	}

	q := postgres.QuerierFromCtx(ctx, r.db)

	if t.IsNew() {
		sqlStr, args, err := squirrel.Insert(table.Name).
			Columns("symbol", "name", "network", "contract_address", "decimals", "enabled").
			Values(t.Symbol, t.Name, t.Network.String(), t.ContractAddress, t.Decimals, t.Enabled).
			Suffix("RETURNING id, created_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := q.QueryRow(ctx, sqlStr, args...).Scan(&t.ID, &t.CreatedAt); err != nil {
			return postgres.MapError(err, table.Entity, uuid.Nil)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		return nil
	}

	sqlStr, args, err := squirrel.Update(table.Name).
		Set("symbol", t.Symbol).
		Set("name", t.Name).
		Set("network", t.Network.String()).
		Set("contract_address", t.ContractAddress).
		Set("decimals", t.Decimals).
		Set("enabled", t.Enabled).
		Where(squirrel.Eq{"id": t.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return postgres.MapError(err, table.Entity, t.ID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, table.Entity, t.ID)
	}
	return nil
}

// InsertMany bulk-inserts new tokens (an asset listing import) with
// client-assigned identities.
func (r *Repo) InsertMany(ctx context.Context, ts []*domain.Token) error {
	if len(ts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range ts {
		if !t.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		if t.Network == "" {
			t.Network = domain.DefaultNetwork
		}
		t.ID = uuid.New()
		batch.Queue(
			`INSERT INTO tokens (id, symbol, name, network, contract_address, decimals, enabled)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.Symbol, t.Name, t.Network.String(), t.ContractAddress, t.Decimals, t.Enabled,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, table.Entity, uuid.Nil)
	}
	return nil
}

func scanToken(rows pgx.Rows) (*domain.Token, error) {
	var (
		id        uuid.UUID
		symbol    pgtype.Text
		name      pgtype.Text
		network   pgtype.Text
		contract  pgtype.Text
		decimals  pgtype.Int4
		enabled   pgtype.Bool
		createdAt pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &symbol, &name, &network, &contract,
		&decimals, &enabled, &createdAt,
	); err != nil {
		return nil, err
	}

	return &domain.Token{
		ID:              id,
		Symbol:          postgres.TextOr(symbol, ""),
		Name:            postgres.TextOr(name, ""),
		Network:         domain.Network(postgres.TextOr(network, domain.DefaultNetwork.String())),
		ContractAddress: postgres.TextPtr(contract),
		Decimals:        postgres.IntOr(decimals, 0),
		Enabled:         postgres.BoolOr(enabled, true),
		CreatedAt:       postgres.TimeOrNow(createdAt),
	}, nil
}

func resolveField(t *domain.Token, field string) (any, bool) {
	switch field {
	case "_id", "id":
		return t.ID.String(), true
	case "symbol":
		return t.Symbol, true
	case "name":
		return t.Name, true
	case "network":
		return t.Network.String(), true
	case "contractAddress":
		if t.ContractAddress == nil {
			return nil, true
		}
		return *t.ContractAddress, true
	case "decimals":
		return t.Decimals, true
	case "enabled":
		return t.Enabled, true
	case "createdAt":
		return t.CreatedAt, true
	}
	return nil, false
}
