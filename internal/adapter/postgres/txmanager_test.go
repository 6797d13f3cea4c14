package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"
)

func newTxMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestTxManager_Commit(t *testing.T) {
	t.Parallel()

	mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE widgets`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	txm := NewTxManager(mock)
	err := txm.RunInTx(context.Background(), func(ctx context.Context) error {
		if !InTx(ctx) {
			t.Error("callback context must carry the transaction")
		}
		q := QuerierFromCtx(ctx, mock)
		_, err := q.Exec(ctx, `UPDATE widgets SET score = 0`)
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	expectationsWereMet(t, mock)
}

func TestTxManager_RollbackOnError(t *testing.T) {
	t.Parallel()

	mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	cause := errors.New("step failed")
	txm := NewTxManager(mock)
	err := txm.RunInTx(context.Background(), func(ctx context.Context) error {
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want the callback error", err)
	}
	expectationsWereMet(t, mock)
}

func TestTxManager_RollbackOnPanic(t *testing.T) {
	t.Parallel()

	mock := newTxMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	txm := NewTxManager(mock)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected the panic to propagate")
		}
		expectationsWereMet(t, mock)
	}()

	_ = txm.RunInTx(context.Background(), func(ctx context.Context) error {
		panic("boom")
	})
}

func TestTxManager_BeginError(t *testing.T) {
	t.Parallel()

	mock := newTxMock(t)
	cause := errors.New("pool exhausted")
	mock.ExpectBegin().WillReturnError(cause)

	txm := NewTxManager(mock)
	err := txm.RunInTx(context.Background(), func(ctx context.Context) error {
		t.Error("callback must not run when begin fails")
		return nil
	})
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want begin error", err)
	}
	expectationsWereMet(t, mock)
}

func TestQuerierFromCtx_FallsBackToDB(t *testing.T) {
	t.Parallel()

	mock := newTxMock(t)

	if InTx(context.Background()) {
		t.Error("fresh context must not report a transaction")
	}
	if q := QuerierFromCtx(context.Background(), mock); q != Querier(mock) {
		t.Error("without a transaction the db handle must be returned")
	}
}
