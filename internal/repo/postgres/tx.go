package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"

	defaultTxAttempts = 3
)

// WithTx runs fn in a read committed transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}
	return runTx(ctx, pool, pgx.TxOptions{}, fn)
}

// WithSerializableTx runs fn in a serializable transaction and restarts it
// when postgres aborts it with a serialization failure or deadlock. fn must
// not have side effects outside tx.
func WithSerializableTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	return retryConflicts(ctx, defaultTxAttempts, func() error {
		return runTx(ctx, pool, opts, fn)
	})
}

func runTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(context.Context, pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func retryConflicts(ctx context.Context, attempts int, run func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := run()
		if err == nil {
			return struct{}{}, nil
		}
		if isTxConflict(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(uint(attempts)))
	return err
}

// isTxConflict reports whether postgres aborted the transaction in favour of a
// concurrent one.
func isTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
