package rewards

import (
	"context"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrGiftCardNotFound = errors.New("gift card not found")
	ErrCodeTaken        = errors.New("gift card code already exists")
	// ErrAlreadyIssued is returned when an order already owns a reward.
	ErrAlreadyIssued = errors.New("rewards already issued for order")
)

// Denominations are the gift card values in cents.
var Denominations = []int64{1000, 2500, 5000, 10000}

type GiftCard struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	ValueCents int64     `json:"value_cents"`
	OrderID    uuid.UUID `json:"order_id"`
	IsRedeemed bool      `json:"is_redeemed"`
	CreatedAt  time.Time `json:"created_at"`
}

type GiftCardStore interface {
	Insert(ctx context.Context, q postgres.DBTX, g *GiftCard) error
	FindByOrder(ctx context.Context, q postgres.DBTX, orderID uuid.UUID) (*GiftCard, error)
}

type PGGiftCardStore struct{}

func (PGGiftCardStore) Insert(ctx context.Context, q postgres.DBTX, g *GiftCard) error {
	ct, err := q.Exec(ctx, `
		INSERT INTO gift_cards (id, code, value_cents, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING`,
		g.ID, g.Code, g.ValueCents, g.OrderID, g.CreatedAt)
	if postgres.IsUniqueViolation(err, "gift_cards_order_id_key") {
		return errors.Mark(err, ErrAlreadyIssued)
	}
	if err != nil {
		return errors.Wrap(err, "rewards: insert gift card")
	}
	if ct.RowsAffected() == 0 {
		return ErrCodeTaken
	}
	return nil
}

func (PGGiftCardStore) FindByOrder(ctx context.Context, q postgres.DBTX, orderID uuid.UUID) (*GiftCard, error) {
	var g GiftCard
	err := q.QueryRow(ctx, `
		SELECT id, code, value_cents, order_id, is_redeemed, created_at
		FROM gift_cards WHERE order_id = $1`, orderID).
		Scan(&g.ID, &g.Code, &g.ValueCents, &g.OrderID, &g.IsRedeemed, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGiftCardNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "rewards: select gift card")
	}
	return &g, nil
}
