package postgres

import (
	"context"
	"fmt"
)

// TxManager runs callbacks inside a database transaction carried through the
// context, so repositories pick it up via QuerierFromCtx without signature
// changes. Nesting RunInTx opens a second independent transaction, which is
// a caller bug.
type TxManager struct {
	db DB
}

func NewTxManager(db DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTx begins a transaction at the server default isolation level
// (Read Committed), runs fn with the transaction bound to the context,
// and commits. An error from fn rolls back and is returned as-is; a panic
// rolls back and re-panics.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
