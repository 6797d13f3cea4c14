// Package auditlog implements the append-only AuditLog document façade.
// Audit entries are written once and never updated; the security report
// groups them by (action, network) pairs.
package auditlog

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/domain"
)

var table = postgres.Table{
	Name:   "audit_logs",
	Entity: "audit log",
	Columns: []string{
		"id", "user_id", "action", "network", "ip", "metadata", "created_at",
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

// Repo provides AuditLog document persistence backed by PostgreSQL.
type Repo struct {
	db     postgres.DB
	coll   *postgres.Collection[domain.AuditLog]
	window uint64
}

// Option configures the repository.
type Option func(*Repo)

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new audit log repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{db: db}
	for _, opt := range opts {
		opt(r)
	}
	r.coll = postgres.NewCollection(db, table, scanAuditLog,
		postgres.WithResolver(resolveField),
		postgres.WithMaxWindow[domain.AuditLog](r.window),
	)
	return r
}

// Find returns a lazy cursor over audit entries matching the filter.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.AuditLog] {
	return r.coll.Find(f)
}

// FindByID returns the audit entry with the given identity.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error) {
	return r.coll.FindByID(ctx, id)
}

// FindOne returns the first audit entry matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.AuditLog, error) {
	return r.coll.FindOne(ctx, f)
}

// Count returns the number of audit entries matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// Aggregate evaluates the supported pipeline shapes. The security report
// issues the composite-pair grouping:
//
//	[{$group: {_id: {action: "$action", network: "$network"}, count: {$sum: 1}}}]
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	return r.coll.Aggregate(ctx, p)
}

// DeleteMany removes every audit entry matching the filter (retention
// purges filter on createdAt).
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// Save inserts the entry and copies the assigned identity and creation
// timestamp back. Audit entries are append-only; saving a persisted entry
// is a validation error.
func (r *Repo) Save(ctx context.Context, a *domain.AuditLog) error {
	if !a.IsNew() {
		return domain.NewValidationError("_id", "audit log entries are append-only")
	}
	if a.Network == "" {
		a.Network = domain.DefaultNetwork
	}
	meta, err := postgres.JSONValue(a.Metadata)
	if err != nil {
		return err
	}

	sqlStr, args, err := squirrel.Insert(table.Name).
		Columns("user_id", "action", "network", "ip", "metadata").
		Values(a.UserID, a.Action, a.Network.String(), a.IP, meta).
		Suffix("RETURNING id, created_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := q.QueryRow(ctx, sqlStr, args...).Scan(&a.ID, &a.CreatedAt); err != nil {
		return postgres.MapError(err, table.Entity, uuid.Nil)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return nil
}

// InsertMany bulk-inserts new audit entries with client-assigned
// identities. The request middleware flushes entries in batches.
func (r *Repo) InsertMany(ctx context.Context, as []*domain.AuditLog) error {
	if len(as) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range as {
		if !a.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		if a.Network == "" {
			a.Network = domain.DefaultNetwork
		}
		meta, err := postgres.JSONValue(a.Metadata)
		if err != nil {
			return err
		}
		a.ID = uuid.New()
		batch.Queue(
			`INSERT INTO audit_logs (id, user_id, action, network, ip, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, a.UserID, a.Action, a.Network.String(), a.IP, meta,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, table.Entity, uuid.Nil)
	}
	return nil
}

func scanAuditLog(rows pgx.Rows) (*domain.AuditLog, error) {
	var (
		id        uuid.UUID
		userID    *uuid.UUID
		action    pgtype.Text
		network   pgtype.Text
		ip        pgtype.Text
		metadata  []byte
		createdAt pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &userID, &action, &network, &ip, &metadata, &createdAt,
	); err != nil {
		return nil, err
	}

	meta, err := postgres.JSONMap(metadata)
	if err != nil {
		return nil, err
	}

	return &domain.AuditLog{
		ID:        id,
		UserID:    userID,
		Action:    postgres.TextOr(action, ""),
		Network:   domain.Network(postgres.TextOr(network, domain.DefaultNetwork.String())),
		IP:        postgres.TextOr(ip, ""),
		Metadata:  meta,
		CreatedAt: postgres.TimeOrNow(createdAt),
	}, nil
}

// resolveField serves deferred sorts and aggregation grouping, including
// dotted paths into the metadata JSON blob.
func resolveField(a *domain.AuditLog, field string) (any, bool) {
	if rest, ok := strings.CutPrefix(field, "metadata."); ok {
		return postgres.LookupPath(a.Metadata, rest)
	}

	switch field {
	case "_id", "id":
		return a.ID.String(), true
	case "user":
		if a.UserID == nil {
			return nil, true
		}
		return a.UserID.String(), true
	case "action":
		return a.Action, true
	case "network":
		return a.Network.String(), true
	case "ip":
		return a.IP, true
	case "createdAt":
		return a.CreatedAt, true
	}
	return nil, false
}
