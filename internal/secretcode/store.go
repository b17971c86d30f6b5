package secretcode

import (
	"context"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store persists secret codes. Every method takes the DBTX to run on so the
// caller decides the transaction boundary.
type Store interface {
	Insert(ctx context.Context, q postgres.DBTX, c *SecretCode) error
	FindByCode(ctx context.Context, q postgres.DBTX, code string) (*SecretCode, error)
	// MarkScanned flips is_scanned once; it reports whether this call did it.
	MarkScanned(ctx context.Context, q postgres.DBTX, code string, at time.Time) (bool, error)
	// MarkUsed flips is_used once for a code that has not expired at `at`.
	MarkUsed(ctx context.Context, q postgres.DBTX, code string, orderID uuid.UUID, at time.Time) (bool, error)
}

type PGStore struct{}

const selectColumns = `id, code, discount_percent, order_id, is_scanned, scanned_at,
	is_used, used_at, used_by_order_id, expires_at, created_at`

func (PGStore) Insert(ctx context.Context, q postgres.DBTX, c *SecretCode) error {
	ct, err := q.Exec(ctx, `
		INSERT INTO secret_codes (id, code, discount_percent, order_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING`,
		c.ID, c.Code, c.DiscountPercent, c.OrderID, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "secretcode: insert")
	}
	if ct.RowsAffected() == 0 {
		return ErrCodeTaken
	}
	return nil
}

func (PGStore) FindByCode(ctx context.Context, q postgres.DBTX, code string) (*SecretCode, error) {
	var c SecretCode
	err := q.QueryRow(ctx, `SELECT `+selectColumns+` FROM secret_codes WHERE code = $1`, code).Scan(
		&c.ID, &c.Code, &c.DiscountPercent, &c.OrderID, &c.IsScanned, &c.ScannedAt,
		&c.IsUsed, &c.UsedAt, &c.UsedByOrderID, &c.ExpiresAt, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "secretcode: select %s", code)
	}
	return &c, nil
}

func (PGStore) MarkScanned(ctx context.Context, q postgres.DBTX, code string, at time.Time) (bool, error) {
	ct, err := q.Exec(ctx, `
		UPDATE secret_codes SET is_scanned = TRUE, scanned_at = $2
		WHERE code = $1 AND NOT is_scanned`, code, at)
	if err != nil {
		return false, errors.Wrap(err, "secretcode: mark scanned")
	}
	return ct.RowsAffected() == 1, nil
}

func (PGStore) MarkUsed(ctx context.Context, q postgres.DBTX, code string, orderID uuid.UUID, at time.Time) (bool, error) {
	ct, err := q.Exec(ctx, `
		UPDATE secret_codes SET is_used = TRUE, used_at = $3, used_by_order_id = $2
		WHERE code = $1 AND NOT is_used AND expires_at > $3`, code, orderID, at)
	if err != nil {
		return false, errors.Wrap(err, "secretcode: mark used")
	}
	return ct.RowsAffected() == 1, nil
}
