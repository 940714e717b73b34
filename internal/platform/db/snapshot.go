package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by pgx.Tx, *pgxpool.Conn and *pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// ErrNoConnection is returned when neither a transaction nor a connection is
// available in the context.
var ErrNoConnection = errors.New("no database connection in context")

// SnapshotOptions is the isolation used for report reads: every statement of
// the transaction sees the same snapshot and nothing can be written.
var SnapshotOptions = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}

// TxFromContext retrieves the active transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// Conn resolves the querier for ctx: the active transaction, then the
// clinic-scoped connection, then the pool. pool may be nil.
func Conn(ctx context.Context, pool *pgxpool.Pool) (Querier, error) {
	if tx := TxFromContext(ctx); tx != nil {
		return tx, nil
	}
	if c := ConnFromContext(ctx); c != nil {
		return c, nil
	}
	if pool != nil {
		return pool, nil
	}
	return nil, ErrNoConnection
}

// WithSnapshot runs fn inside a read-only repeatable-read transaction opened
// on the clinic connection from ctx, or on pool when there is none. If ctx
// already carries a transaction fn joins it.
func WithSnapshot(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var b txBeginner
	if c := ConnFromContext(ctx); c != nil {
		b = c
	} else if pool != nil {
		b = pool
	} else {
		return ErrNoConnection
	}

	tx, err := b.BeginTx(ctx, SnapshotOptions)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
