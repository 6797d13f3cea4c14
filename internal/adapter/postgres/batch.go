package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SendBatchExec submits a pgx.Batch, executes every queued statement, and
// returns the total number of affected rows. The first failing statement
// aborts the batch; the error propagates after the batch results close.
func SendBatchExec(ctx context.Context, q Querier, batch *pgx.Batch) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	total := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return total, fmt.Errorf("batch statement %d: %w", i, err)
		}
		total += int(tag.RowsAffected())
	}

	return total, nil
}
