// Package user implements the User document façade: reads materialize the
// account row plus its three embedded collections (wallets, notifications,
// refresh tokens), and saves synchronize those collections into their child
// tables.
package user

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/domain"
)

// table drives the column mapper: the identity aliases and the credential
// field are irregular, everything else snake-cases mechanically.
var table = postgres.Table{
	Name:   "users",
	Entity: "user",
	Columns: []string{
		"id", "email", "password_hash", "name", "role", "status",
		"email_verified", "two_factor_enabled", "last_login_at",
		"created_at", "updated_at",
	},
	FieldColumns: map[string]string{
		"_id":      "id",
		"id":       "id",
		"password": "password_hash",
	},
	ColumnFields: map[string]string{
		"password_hash": "password",
	},
}

// Repo provides User document persistence backed by PostgreSQL.
type Repo struct {
	db       postgres.DB
	txm      *postgres.TxManager
	coll     *postgres.Collection[domain.User]
	hashCost int
	window   uint64
}

// Option configures a Repo.
type Option func(*Repo)

// WithHashCost sets the bcrypt cost used when a save hashes a changed
// password.
func WithHashCost(cost int) Option {
	return func(r *Repo) { r.hashCost = cost }
}

// WithMaxWindow overrides the default cursor window cap. Repositories
// assembled from configuration pass StoreConfig.MaxQueryWindow here.
func WithMaxWindow(n uint64) Option {
	return func(r *Repo) { r.window = n }
}

// New creates a new user repository.
func New(db postgres.DB, opts ...Option) *Repo {
	r := &Repo{
		db:       db,
		txm:      postgres.NewTxManager(db),
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.coll = postgres.NewCollection(db, table, scanUser,
		postgres.WithResolver(resolveField),
		postgres.WithPopulate("wallets", populateWallets),
		postgres.WithPopulate("notifications", populateNotifications),
		postgres.WithPopulate("refreshTokens", populateRefreshTokens),
		postgres.WithMaxWindow[domain.User](r.window),
	)
	return r
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Find returns a lazy cursor over user documents. Embedded collections stay
// empty unless the caller chains Populate for them.
func (r *Repo) Find(f postgres.Filter) *postgres.Query[domain.User] {
	return r.coll.Find(f)
}

// FindByID returns the fully-populated user document, or domain.ErrNotFound.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findPopulated(ctx, postgres.Filter{"_id": id})
}

// FindOne returns the first fully-populated document matching the filter.
func (r *Repo) FindOne(ctx context.Context, f postgres.Filter) (*domain.User, error) {
	return r.findPopulated(ctx, f)
}

// FindByEmail returns the user owning the given email address.
func (r *Repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findPopulated(ctx, postgres.Filter{"email": email})
}

func (r *Repo) findPopulated(ctx context.Context, f postgres.Filter) (*domain.User, error) {
	return r.coll.Find(f).
		Populate("wallets").
		Populate("notifications").
		Populate("refreshTokens").
		One(ctx)
}

// FindByRefreshToken returns the user holding the given refresh-token hash
// in its embedded token collection, or domain.ErrNotFound.
func (r *Repo) FindByRefreshToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var userID uuid.UUID
	err := q.QueryRow(ctx,
		`SELECT user_id FROM user_refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&userID)
	if err != nil {
		return nil, postgres.MapError(err, "user", uuid.Nil)
	}

	return r.FindByID(ctx, userID)
}

// Count returns the number of users matching the filter.
func (r *Repo) Count(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.Count(ctx, f)
}

// DeleteMany removes every user matching the filter. Child rows go with
// their parent via ON DELETE CASCADE.
func (r *Repo) DeleteMany(ctx context.Context, f postgres.Filter) (int64, error) {
	return r.coll.DeleteMany(ctx, f)
}

// VerifyPassword compares a plaintext candidate against the document's
// stored bcrypt hash in constant time.
func (r *Repo) VerifyPassword(u *domain.User, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plaintext)) == nil
}

// ---------------------------------------------------------------------------
// Materialization
// ---------------------------------------------------------------------------

// scanUser materializes one users row. Defaults per the document contract:
// role "user", status "active", flags false, absent timestamps "now".
// Embedded collections start empty; populate expanders fill them.
func scanUser(rows pgx.Rows) (*domain.User, error) {
	var (
		id               uuid.UUID
		email            string
		passwordHash     pgtype.Text
		name             pgtype.Text
		role             pgtype.Text
		status           pgtype.Text
		emailVerified    pgtype.Bool
		twoFactorEnabled pgtype.Bool
		lastLoginAt      pgtype.Timestamptz
		createdAt        pgtype.Timestamptz
		updatedAt        pgtype.Timestamptz
	)

	if err := rows.Scan(
		&id, &email, &passwordHash, &name, &role, &status,
		&emailVerified, &twoFactorEnabled, &lastLoginAt,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	return &domain.User{
		ID:               id,
		Email:            email,
		Password:         postgres.TextOr(passwordHash, ""),
		Name:             postgres.TextOr(name, ""),
		Role:             domain.UserRole(postgres.TextOr(role, domain.DefaultUserRole.String())),
		Status:           domain.UserStatus(postgres.TextOr(status, domain.DefaultUserStatus.String())),
		EmailVerified:    postgres.BoolOr(emailVerified, false),
		TwoFactorEnabled: postgres.BoolOr(twoFactorEnabled, false),
		LastLoginAt:      postgres.TimePtr(lastLoginAt),
		Wallets:          []domain.UserWallet{},
		Notifications:    []domain.Notification{},
		RefreshTokens:    []domain.RefreshToken{},
		CreatedAt:        postgres.TimeOrNow(createdAt),
		UpdatedAt:        postgres.TimeOrNow(updatedAt),
	}, nil
}

// resolveField serves deferred sorts and in-memory aggregation grouping.
func resolveField(u *domain.User, field string) (any, bool) {
	switch field {
	case "_id", "id":
		return u.ID.String(), true
	case "email":
		return u.Email, true
	case "name":
		return u.Name, true
	case "role":
		return u.Role.String(), true
	case "status":
		return u.Status.String(), true
	case "emailVerified":
		return u.EmailVerified, true
	case "twoFactorEnabled":
		return u.TwoFactorEnabled, true
	case "lastLoginAt":
		if u.LastLoginAt == nil {
			return nil, true
		}
		return *u.LastLoginAt, true
	case "createdAt":
		return u.CreatedAt, true
	case "updatedAt":
		return u.UpdatedAt, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Embedded-collection expansion (one batched lookup per child table)
// ---------------------------------------------------------------------------

type walletRow struct {
	UserID  uuid.UUID `db:"user_id"`
	Address string    `db:"address"`
	Network string    `db:"network"`
	Label   string    `db:"label"`
}

func populateWallets(ctx context.Context, q postgres.Querier, docs []*domain.User) error {
	ids, byID := indexUsers(docs)
	if len(ids) == 0 {
		return nil
	}

	var rows []walletRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT user_id, address, network, label
		 FROM user_wallets
		 WHERE user_id = ANY($1)
		 ORDER BY user_id, position`,
		ids,
	)
	if err != nil {
		return postgres.MapError(err, "user_wallets", uuid.Nil)
	}

	for _, row := range rows {
		u := byID[row.UserID]
		u.Wallets = append(u.Wallets, domain.UserWallet{
			Address: row.Address,
			Network: domain.Network(row.Network),
			Label:   row.Label,
		})
	}
	return nil
}

type notificationRow struct {
	UserID  uuid.UUID `db:"user_id"`
	Type    string    `db:"type"`
	Title   string    `db:"title"`
	Message string    `db:"message"`
	Read    bool      `db:"read"`
}

func populateNotifications(ctx context.Context, q postgres.Querier, docs []*domain.User) error {
	ids, byID := indexUsers(docs)
	if len(ids) == 0 {
		return nil
	}

	var rows []notificationRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT user_id, type, title, message, read
		 FROM user_notifications
		 WHERE user_id = ANY($1)
		 ORDER BY user_id, position`,
		ids,
	)
	if err != nil {
		return postgres.MapError(err, "user_notifications", uuid.Nil)
	}

	for _, row := range rows {
		u := byID[row.UserID]
		u.Notifications = append(u.Notifications, domain.Notification{
			Type:    row.Type,
			Title:   row.Title,
			Message: row.Message,
			Read:    row.Read,
		})
	}
	return nil
}

type tokenRow struct {
	UserID    uuid.UUID          `db:"user_id"`
	TokenHash string             `db:"token_hash"`
	ExpiresAt pgtype.Timestamptz `db:"expires_at"`
	CreatedAt pgtype.Timestamptz `db:"created_at"`
}

func populateRefreshTokens(ctx context.Context, q postgres.Querier, docs []*domain.User) error {
	ids, byID := indexUsers(docs)
	if len(ids) == 0 {
		return nil
	}

	var rows []tokenRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT user_id, token_hash, expires_at, created_at
		 FROM user_refresh_tokens
		 WHERE user_id = ANY($1)
		 ORDER BY user_id, created_at, token_hash`,
		ids,
	)
	if err != nil {
		return postgres.MapError(err, "user_refresh_tokens", uuid.Nil)
	}

	for _, row := range rows {
		u := byID[row.UserID]
		u.RefreshTokens = append(u.RefreshTokens, domain.RefreshToken{
			TokenHash: row.TokenHash,
			ExpiresAt: postgres.TimeOrNow(row.ExpiresAt),
			CreatedAt: postgres.TimeOrNow(row.CreatedAt),
		})
	}
	return nil
}

// indexUsers returns the distinct parent ids of a page plus an id→document
// index for merging child rows back.
func indexUsers(docs []*domain.User) ([]uuid.UUID, map[uuid.UUID]*domain.User) {
	ids := make([]uuid.UUID, 0, len(docs))
	byID := make(map[uuid.UUID]*domain.User, len(docs))
	for _, u := range docs {
		if _, seen := byID[u.ID]; !seen {
			ids = append(ids, u.ID)
		}
		byID[u.ID] = u
	}
	return ids, byID
}
