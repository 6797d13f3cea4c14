// Package transaction implements the Transaction document façade.
// Transactions carry a free-form review_meta JSON blob; sorting by a path
// inside it (e.g. "reviewMeta.riskScore") defers to the in-memory sort.
package transaction

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
	Name:   "transactions",
	Entity: "transaction",
	Columns: []string{
		"id", "user_id", "wallet_id", "tx_hash", "type", "status",
		"amount", "currency", "network", "review_meta",
		"created_at", "updated_at",
	},
	FieldColumns: map[string]string{
		"_id":    "id",
		"id":     "id",
		"user":   "user_id",
		"wallet": "wallet_id",
	},
	ColumnFields: map[string]string{
		"user_id":   "user",
		"wallet_id": "wallet",
	},
}

// Repo provides Transaction document persistence backed by PostgreSQL.
type Repo struct {
	db     postgres.DB
	coll   *postgres.Collection[domain.Transaction]
	window uint64
}

// Option configures the repository.
type Option func(*Repo)

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new transaction repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.coll = postgres.NewCollection(db, table, scanTransaction,
		postgres.WithResolver(resolveField),
		postgres.WithPopulate("user", populateUsers),
		postgres.WithMaxWindow[domain.Transaction](r.window),
	)
	return r
}

// Find returns a lazy cursor. Chain Populate("user") to resolve the owning
// user in one extra batched round trip.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.Transaction] {
	return r.coll.Find(f)
}

// FindByID returns the transaction with the given identity.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.coll.FindByID(ctx, id)
}

// FindOne returns the first transaction matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.Transaction, error) {
	return r.coll.FindOne(ctx, f)
}

// Count returns the number of transactions matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// Aggregate evaluates the supported pipeline shapes: the admin dashboard
// issues group-by-day over created_at and group-by-status tallies.
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	return r.coll.Aggregate(ctx, p)
}

// DeleteMany removes every transaction matching the filter.
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// Save persists the document: insert when new (identity and creation
// timestamp copied back), update by identity otherwise.
func (r *Repo) Save(ctx context.Context, tx *domain.Transaction) error {
	meta, err := postgres.JSONValue(tx.ReviewMeta)
	if err != nil {
		return err
	}
	if tx.Type == "" {
		tx.Type = domain.DefaultTxType
	}
	if tx.Status == "" {
		tx.Status = domain.DefaultTxStatus
	}
	if tx.Network == "" {
		tx.Network = domain.DefaultNetwork
	}

	q := postgres.QuerierFromCtx(ctx, r.db)

	if tx.IsNew() {
		sqlStr, args, err := squirrel.Insert(table.Name).
			Columns("user_id", "wallet_id", "tx_hash", "type", "status",
				"amount", "currency", "network", "review_meta").
			Values(tx.UserID, tx.WalletID, tx.TxHash, tx.Type.String(), tx.Status.String(),
				tx.Amount, tx.Currency, tx.Network.String(), meta).
			Suffix("RETURNING id, created_at, updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := q.QueryRow(ctx, sqlStr, args...).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return postgres.MapError(err, table.Entity, uuid.Nil)
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		tx.UpdatedAt = tx.UpdatedAt.UTC()
		return nil
	}

	now := postgres.Now()
	sqlStr, args, err := squirrel.Update(table.Name).
		Set("user_id", tx.UserID).
		Set("wallet_id", tx.WalletID).
		Set("tx_hash", tx.TxHash).
		Set("type", tx.Type.String()).
		Set("status", tx.Status.String()).
		Set("amount", tx.Amount).
		Set("currency", tx.Currency).
		Set("network", tx.Network.String()).
		Set("review_meta", meta).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": tx.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return postgres.MapError(err, table.Entity, tx.ID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, table.Entity, tx.ID)
	}
	tx.UpdatedAt = now
	return nil
}

// InsertMany bulk-inserts new transactions (the explorer sync imports
// batches of confirmed transfers). Identities are assigned client-side so
// callers can correlate immediately.
func (r *Repo) InsertMany(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, tx := range txs {
		if !tx.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		meta, err := postgres.JSONValue(tx.ReviewMeta)
		if err != nil {
			return err
		}
		if tx.Type == "" {
			tx.Type = domain.DefaultTxType
		}
		if tx.Status == "" {
			tx.Status = domain.DefaultTxStatus
		}
		if tx.Network == "" {
			tx.Network = domain.DefaultNetwork
		}

		tx.ID = uuid.New()
		batch.Queue(
			`INSERT INTO transactions (id, user_id, wallet_id, tx_hash, type, status,
			                           amount, currency, network, review_meta)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			tx.ID, tx.UserID, tx.WalletID, tx.TxHash, tx.Type.String(), tx.Status.String(),
			tx.Amount, tx.Currency, tx.Network.String(), meta,
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

func scanTransaction(rows pgx.Rows) (*domain.Transaction, error) {
	var (
		id         uuid.UUID
		userID     uuid.UUID
		walletID   *uuid.UUID
		txHash     pgtype.Text
		txType     pgtype.Text
		status     pgtype.Text
		amount     pgtype.Float8
		currency   pgtype.Text
		network    pgtype.Text
		reviewMeta []byte
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &userID, &walletID, &txHash, &txType, &status,
		&amount, &currency, &network, &reviewMeta,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	meta, err := postgres.JSONMap(reviewMeta)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:         id,
		UserID:     userID,
		WalletID:   walletID,
		TxHash:     postgres.TextOr(txHash, ""),
		Type:       domain.TxType(postgres.TextOr(txType, domain.DefaultTxType.String())),
		Status:     domain.TxStatus(postgres.TextOr(status, domain.DefaultTxStatus.String())),
		Currency:   postgres.TextOr(currency, ""),
		Network:    domain.Network(postgres.TextOr(network, domain.DefaultNetwork.String())),
		ReviewMeta: meta,
		CreatedAt:  postgres.TimeOrNow(createdAt),
		UpdatedAt:  postgres.TimeOrNow(updatedAt),
	}
	if amount.Valid {
		tx.Amount = amount.Float64
	}
	return tx, nil
}

// resolveField serves deferred sorts and aggregation grouping, including
// dotted paths into the review_meta JSON blob.
func resolveField(tx *domain.Transaction, field string) (any, bool) {
	if rest, ok := strings.CutPrefix(field, "reviewMeta."); ok {
		return postgres.LookupPath(tx.ReviewMeta, rest)
	}

	switch field {
	case "_id", "id":
		return tx.ID.String(), true
	case "user":
		return tx.UserID.String(), true
	case "txHash":
		return tx.TxHash, true
	case "type":
		return tx.Type.String(), true
	case "status":
		return tx.Status.String(), true
	case "amount":
		return tx.Amount, true
	case "currency":
		return tx.Currency, true
	case "network":
		return tx.Network.String(), true
	case "createdAt":
		return tx.CreatedAt, true
	case "updatedAt":
		return tx.UpdatedAt, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Reference expansion
// ---------------------------------------------------------------------------

type userRow struct {
	ID      uuid.UUID          `db:"id"`
	Email   string             `db:"email"`
	Name    pgtype.Text        `db:"name"`
	Role    pgtype.Text        `db:"role"`
	Status  pgtype.Text        `db:"status"`
	Created pgtype.Timestamptz `db:"created_at"`
}

// populateUsers resolves each transaction's owning user with a single
// batched lookup over the distinct referenced ids.
func populateUsers(ctx context.Context, q postgres.Querier, docs []*domain.Transaction) error {
	seen := make(map[uuid.UUID]struct{}, len(docs))
	ids := make([]uuid.UUID, 0, len(docs))
	for _, tx := range docs {
		if _, ok := seen[tx.UserID]; !ok {
			seen[tx.UserID] = struct{}{}
			ids = append(ids, tx.UserID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var rows []userRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT id, email, name, role, status, created_at
		 FROM users
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return postgres.MapError(err, "user", uuid.Nil)
	}

	byID := make(map[uuid.UUID]*domain.User, len(rows))
	for _, row := range rows {
		byID[row.ID] = &domain.User{
			ID:        row.ID,
			Email:     row.Email,
			Name:      postgres.TextOr(row.Name, ""),
			Role:      domain.UserRole(postgres.TextOr(row.Role, domain.DefaultUserRole.String())),
			Status:    domain.UserStatus(postgres.TextOr(row.Status, domain.DefaultUserStatus.String())),
			CreatedAt: postgres.TimeOrNow(row.Created),
		}
	}

	for _, tx := range docs {
		tx.User = byID[tx.UserID]
	}
	return nil
}
