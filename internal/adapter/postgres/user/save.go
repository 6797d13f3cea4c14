package user

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/domain"
)

// Snapshot is the loaded state a save diffs against: the persisted
// credential hash (to detect a password change) and the persisted token
// hashes (to compute the delta for the refresh-token collection). It is
// captured at load time and refreshed by every successful save; it is
// never persisted itself.
type Snapshot struct {
	passwordHash string
	tokenHashes  map[string]struct{}
}

// SnapshotOf captures the loaded state of a populated document. Call it
// right after a find, before the caller mutates anything.
func SnapshotOf(u *domain.User) *Snapshot {
	s := &Snapshot{
		passwordHash: u.Password,
		tokenHashes:  make(map[string]struct{}, len(u.RefreshTokens)),
	}
	for _, t := range u.RefreshTokens {
		s.tokenHashes[t.TokenHash] = struct{}{}
	}
	return s
}

// Save persists the document and synchronizes its embedded collections,
// all inside one transaction: the primary row insert/update, a full
// replace of wallets and notifications, and a delta sync of refresh
// tokens diffed against the snapshot. prev must be nil for a new document
// and non-nil for a persisted one; anything else is a validation error.
// The new-document check matters for the credential column: a snapshot
// captured before the first save holds the plaintext password, and diffing
// against it would skip the hash.
//
// The document mutates in place: a first save copies the
// storage-assigned identity and creation timestamp back, and a changed
// password is replaced by its bcrypt hash before the row payload is
// built. The returned snapshot reflects the newly persisted state.
func (r *Repo) Save(ctx context.Context, u *domain.User, prev *Snapshot) (*Snapshot, error) {
	if !u.IsNew() && prev == nil {
		return nil, domain.NewValidationError("snapshot", "persisted user saved without its loaded snapshot")
	}
	if u.IsNew() && prev != nil {
		return nil, domain.NewValidationError("snapshot", "new user saved with a loaded snapshot")
	}

	if err := r.hashPasswordIfChanged(u, prev); err != nil {
		return nil, err
	}

	steps := func(ctx context.Context) error {
		if u.IsNew() {
			if err := r.insertRow(ctx, u); err != nil {
				return err
			}
		} else if err := r.updateRow(ctx, u); err != nil {
			return err
		}

		if err := r.replaceWallets(ctx, u); err != nil {
			return err
		}
		if err := r.replaceNotifications(ctx, u); err != nil {
			return err
		}
		return r.syncRefreshTokens(ctx, u, prev)
	}

	// Participate in an ambient transaction when the caller opened one;
	// otherwise the save is its own bounded transaction, so a failing step
	// rolls back the primary row and every child sync together.
	var err error
	if postgres.InTx(ctx) {
		err = steps(ctx)
	} else {
		err = r.txm.RunInTx(ctx, steps)
	}
	if err != nil {
		return nil, err
	}

	return SnapshotOf(u), nil
}

// hashPasswordIfChanged applies the one-way credential transform before the
// row payload is built: a password differing from the snapshot's persisted
// hash is replaced by its bcrypt hash. Saving an unchanged document never
// re-hashes, so repeated saves are idempotent on the credential column.
func (r *Repo) hashPasswordIfChanged(u *domain.User, prev *Snapshot) error {
	unchanged := prev != nil && u.Password == prev.passwordHash
	if unchanged || u.Password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), r.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = string(hash)
	return nil
}

func (r *Repo) insertRow(ctx context.Context, u *domain.User) error {
	if u.Role == "" {
		u.Role = domain.DefaultUserRole
	}
	if u.Status == "" {
		u.Status = domain.DefaultUserStatus
	}

	sqlStr, args, err := squirrel.Insert(table.Name).
		Columns("email", "password_hash", "name", "role", "status",
			"email_verified", "two_factor_enabled", "last_login_at").
		Values(u.Email, u.Password, u.Name, u.Role.String(), u.Status.String(),
			u.EmailVerified, u.TwoFactorEnabled, u.LastLoginAt).
		Suffix("RETURNING id, created_at, updated_at").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user insert: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if err := q.QueryRow(ctx, sqlStr, args...).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return postgres.MapError(err, "user", uuid.Nil)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return nil
}

func (r *Repo) updateRow(ctx context.Context, u *domain.User) error {
	now := postgres.Now()

	sqlStr, args, err := squirrel.Update(table.Name).
		Set("email", u.Email).
		Set("password_hash", u.Password).
		Set("name", u.Name).
		Set("role", u.Role.String()).
		Set("status", u.Status.String()).
		Set("email_verified", u.EmailVerified).
		Set("two_factor_enabled", u.TwoFactorEnabled).
		Set("last_login_at", u.LastLoginAt).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": u.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build user update: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return postgres.MapError(err, "user", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return postgres.MapError(pgx.ErrNoRows, "user", u.ID)
	}
	u.UpdatedAt = now
	return nil
}

// replaceWallets runs the full-replace scheme: the embedded wallet entries
// are small, fully owned, and never referenced from outside, so delete-all
// plus bulk insert is the whole sync. Position preserves insertion order.
func (r *Repo) replaceWallets(ctx context.Context, u *domain.User) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM user_wallets WHERE user_id = $1`, u.ID); err != nil {
		return postgres.MapError(err, "user_wallets", u.ID)
	}
	if len(u.Wallets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for pos, w := range u.Wallets {
		network := w.Network
		if network == "" {
			network = domain.DefaultNetwork
		}
		batch.Queue(
			`INSERT INTO user_wallets (user_id, address, network, label, position)
			 VALUES ($1, $2, $3, $4, $5)`,
			u.ID, w.Address, network.String(), w.Label, pos,
		)
	}

	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, "user_wallets", u.ID)
	}
	return nil
}

func (r *Repo) replaceNotifications(ctx context.Context, u *domain.User) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	if _, err := q.Exec(ctx, `DELETE FROM user_notifications WHERE user_id = $1`, u.ID); err != nil {
		return postgres.MapError(err, "user_notifications", u.ID)
	}
	if len(u.Notifications) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for pos, n := range u.Notifications {
		batch.Queue(
			`INSERT INTO user_notifications (user_id, type, title, message, read, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, n.Type, n.Title, n.Message, n.Read, pos,
		)
	}

	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, "user_notifications", u.ID)
	}
	return nil
}

// syncRefreshTokens runs the delta scheme: token hashes are externally
// meaningful keys (a client holds the raw token between requests), so only
// the rows that actually changed are written. removed = snapshot − current,
// added = current − snapshot; unchanged rows stay untouched.
func (r *Repo) syncRefreshTokens(ctx context.Context, u *domain.User, prev *Snapshot) error {
	current := make(map[string]domain.RefreshToken, len(u.RefreshTokens))
	for _, t := range u.RefreshTokens {
		if _, dup := current[t.TokenHash]; !dup {
			current[t.TokenHash] = t
		}
	}

	var prevHashes map[string]struct{}
	if prev != nil {
		prevHashes = prev.tokenHashes
	}

	var removed []string
	for hash := range prevHashes {
		if _, keep := current[hash]; !keep {
			removed = append(removed, hash)
		}
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	if len(removed) > 0 {
		_, err := q.Exec(ctx,
			`DELETE FROM user_refresh_tokens WHERE user_id = $1 AND token_hash = ANY($2)`,
			u.ID, removed,
		)
		if err != nil {
			return postgres.MapError(err, "user_refresh_tokens", u.ID)
		}
	}

	batch := &pgx.Batch{}
	queued := make(map[string]struct{}, len(u.RefreshTokens))
	for _, t := range u.RefreshTokens {
		if _, existed := prevHashes[t.TokenHash]; existed {
			continue
		}
		if _, dup := queued[t.TokenHash]; dup {
			continue
		}
		queued[t.TokenHash] = struct{}{}
		batch.Queue(
			`INSERT INTO user_refresh_tokens (user_id, token_hash, expires_at)
			 VALUES ($1, $2, $3)`,
			u.ID, t.TokenHash, t.ExpiresAt.UTC(),
		)
	}

	if _, err := postgres.SendBatchExec(ctx, q, batch); err != nil {
		return postgres.MapError(err, "user_refresh_tokens", u.ID)
	}
	return nil
}
