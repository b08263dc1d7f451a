package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by the pool, pooled connections and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type txKey struct{}

// ErrNoTx is returned by operations that must run inside WithinTx.
var ErrNoTx = errors.New("no transaction in context")

// ConnFromContext returns the transaction carried by ctx, or nil when the
// caller is outside a transaction. Repositories fall back to their pool.
func ConnFromContext(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// TxRunner opens transactions on a pool and hands them to repositories through the context.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithinTx runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back otherwise, including when ctx expires. Nested calls join
// the outer transaction.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ConnFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// The rollback must still reach the server after ctx is cancelled.
	defer tx.Rollback(context.WithoutCancel(ctx))

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AdvisoryXactLock takes a transaction-scoped advisory lock. It blocks until
// the lock is granted and releases it at commit or rollback.
func AdvisoryXactLock(ctx context.Context, key int64) error {
	q := ConnFromContext(ctx)
	if q == nil {
		return ErrNoTx
	}
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("advisory lock %d: %w", key, err)
	}
	return nil
}

// AdvisoryXactLockShared takes key in shared mode. Shared holders run
// together; AdvisoryXactLock on the same key waits for all of them.
func AdvisoryXactLockShared(ctx context.Context, key int64) error {
	q := ConnFromContext(ctx)
	if q == nil {
		return ErrNoTx
	}
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, key); err != nil {
		return fmt.Errorf("shared advisory lock %d: %w", key, err)
	}
	return nil
}

// AdvisoryXactLockKeys takes one exclusive lock per distinct key within
// class, in sorted order so that concurrent callers cannot deadlock. Keys
// are hashed server-side; a collision only serializes two unrelated keys.
func AdvisoryXactLockKeys(ctx context.Context, class int32, keys ...string) error {
	q := ConnFromContext(ctx)
	if q == nil {
		return ErrNoTx
	}
	for _, k := range sortedUnique(keys) {
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, class, k); err != nil {
			return fmt.Errorf("advisory lock %d/%s: %w", class, k, err)
		}
	}
	return nil
}

func sortedUnique(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
