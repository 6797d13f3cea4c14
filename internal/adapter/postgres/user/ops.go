package user

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/domain"
)

// childTables maps the unwindable embedded collections to their tables.
var childTables = map[string]string{
	"wallets":       "user_wallets",
	"notifications": "user_notifications",
	"refreshTokens": "user_refresh_tokens",
}

// Aggregate evaluates a pipeline over user documents. An
// unwind+count pipeline ([{$unwind: "$wallets"}, {$count: name}]) counts
// the corresponding child table directly; every other shape goes through
// the shared emulator.
func (r *Repo) Aggregate(ctx context.Context, p postgres.Pipeline) ([]postgres.Result, error) {
	if tableName, countName, ok := unwindCount(p); ok {
		q := postgres.QuerierFromCtx(ctx, r.db)

		var n int64
		err := q.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, tableName)).Scan(&n)
		if err != nil {
			return nil, postgres.MapError(err, tableName, uuid.Nil)
		}
		return []postgres.Result{{countName: n}}, nil
	}

	return r.coll.Aggregate(ctx, p)
}

// unwindCount recognizes the unwind+count shape over an embedded
// collection and returns the backing child table.
func unwindCount(p postgres.Pipeline) (tableName, countName string, ok bool) {
	if len(p) != 2 || len(p[0]) != 1 || len(p[1]) != 1 {
		return "", "", false
	}

	ref, ok := p[0]["$unwind"].(string)
	if !ok || len(ref) < 2 || ref[0] != '$' {
		return "", "", false
	}
	tableName, ok = childTables[ref[1:]]
	if !ok {
		return "", "", false
	}

	countName, ok = p[1]["$count"].(string)
	if !ok || countName == "" {
		return "", "", false
	}
	return tableName, countName, true
}

// UpdateMany supports exactly the one update shape the platform issues:
// pulling expired entries from the embedded refresh-token collection,
// {$pull: {refreshTokens: {expiresAt: {$lt: t}}}}. The scoping filter is
// either empty (all users) or {_id: id}. Anything else is ErrUnsupported.
// Returns the number of removed token rows.
func (r *Repo) UpdateMany(ctx context.Context, f postgres.Filter, u postgres.Update) (int64, error) {
	cutoff, inclusive, err := parsePullExpired(u)
	if err != nil {
		return 0, err
	}

	del := `DELETE FROM user_refresh_tokens WHERE expires_at < $1`
	if inclusive {
		del = `DELETE FROM user_refresh_tokens WHERE expires_at <= $1`
	}
	args := []any{cutoff.UTC()}

	switch len(f) {
	case 0:
	case 1:
		id, ok := f["_id"].(uuid.UUID)
		if !ok {
			return 0, &postgres.UnsupportedError{Op: "update", Token: "filter"}
		}
		del += ` AND user_id = $2`
		args = append(args, id)
	default:
		return 0, &postgres.UnsupportedError{Op: "update", Token: "filter"}
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	tag, err := q.Exec(ctx, del, args...)
	if err != nil {
		return 0, postgres.MapError(err, "user_refresh_tokens", uuid.Nil)
	}
	return tag.RowsAffected(), nil
}

// parsePullExpired validates the $pull update document and extracts the
// expiry cutoff.
func parsePullExpired(u postgres.Update) (time.Time, bool, error) {
	fail := func(token string) (time.Time, bool, error) {
		return time.Time{}, false, &postgres.UnsupportedError{Op: "update", Token: token}
	}

	if len(u) != 1 {
		return fail("update document")
	}
	pull, ok := u["$pull"].(map[string]any)
	if !ok {
		for k := range u {
			return fail(k)
		}
	}
	if len(pull) != 1 {
		return fail("$pull")
	}
	cond, ok := pull["refreshTokens"].(map[string]any)
	if !ok {
		for k := range pull {
			return fail(k)
		}
	}
	if len(cond) != 1 {
		return fail("$pull condition")
	}
	expires, ok := cond["expiresAt"].(map[string]any)
	if !ok || len(expires) != 1 {
		return fail("$pull condition")
	}

	if t, ok := expires["$lt"].(time.Time); ok {
		return t, false, nil
	}
	if t, ok := expires["$lte"].(time.Time); ok {
		return t, true, nil
	}
	for k := range expires {
		return fail(k)
	}
	return fail("$pull condition")
}

// InsertMany bulk-inserts new user documents (primary rows only; documents
// carrying embedded entries must go through Save so the child tables stay
// in sync). Passwords are hashed the same way a save hashes them.
func (r *Repo) InsertMany(ctx context.Context, users []*domain.User) error {
	if len(users) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range users {
		if !u.IsNew() {
			return domain.NewValidationError("_id", "insertMany accepts only new documents")
		}
		if len(u.Wallets)+len(u.Notifications)+len(u.RefreshTokens) > 0 {
			return domain.NewValidationError("wallets", "insertMany cannot write embedded collections")
		}
		if err := r.hashPasswordIfChanged(u, nil); err != nil {
			return err
		}
		if u.Role == "" {
			u.Role = domain.DefaultUserRole
		}
		if u.Status == "" {
			u.Status = domain.DefaultUserStatus
		}

		u.ID = uuid.New()
		batch.Queue(
			`INSERT INTO users (id, email, password_hash, name, role, status,
			                    email_verified, two_factor_enabled, last_login_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			u.ID, u.Email, u.Password, u.Name, u.Role.String(), u.Status.String(),
			u.EmailVerified, u.TwoFactorEnabled, u.LastLoginAt,
		)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, "user", uuid.Nil)
	}
	return nil
}
