package postgres

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var (
	ErrTxBegin            = errors.New("begin transaction")
	ErrTxCommit           = errors.New("commit transaction")
	ErrMaxRetriesExceeded = errors.New("transaction failed after max retries")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so stores can run either
// standalone or inside a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error
}

type DB struct {
	Pool       *pgxpool.Pool
	MaxRetries int
	Backoff    time.Duration
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{Pool: pool, MaxRetries: 3, Backoff: 50 * time.Millisecond}
}

// InTx commits when fn returns nil and rolls back otherwise. Serialization
// failures and deadlocks are retried with jittered exponential backoff; fn must
// therefore be safe to run more than once.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error {
	for attempt := 0; ; attempt++ {
		err := d.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= d.MaxRetries {
			log.Error().Err(err).Int("attempts", attempt+1).Msg("postgres: transaction failed after max retries")
			return errors.Mark(err, ErrMaxRetriesExceeded)
		}

		wait := backoff(attempt, d.Backoff)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("postgres: retrying transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (d *DB) runOnce(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error {
	tx, err := d.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Mark(err, ErrTxBegin)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Warn().Err(rbErr).Msg("postgres: rollback failed")
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Mark(err, ErrTxCommit)
	}
	return nil
}

func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsUniqueViolation reports whether err is a unique violation on constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func backoff(attempt int, base time.Duration) time.Duration {
	wait := time.Duration(1<<attempt) * base
	return wait + time.Duration(jitter(int64(wait/5)))
}

func jitter(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(buf[:])&0x7FFFFFFFFFFFFFFF) % n
}
