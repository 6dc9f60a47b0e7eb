package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltora/voltora/internal/shared"
)

// WithTx runs fn inside a ReadCommitted transaction. Writes that race on the
// same row guard themselves with version predicates; serialization and
// deadlock failures surface as shared.ErrConcurrencyConflict either way.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return mapTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w", mapTxError(err))
	}

	return nil
}

// mapTxError translates SQLSTATE 40001 (serialization failure) and 40P01
// (deadlock detected) into the shared concurrency sentinel.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: %s", shared.ErrConcurrencyConflict, pgErr.Message)
	}
	return err
}
