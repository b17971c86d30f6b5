// Package rewards mints the gift card and secret code an order earns when it
// is paid, and admin-minted secret codes.
package rewards

import (
	"context"

	"github.com/ariefcatur/storefront-orders/internal/clock"
	"github.com/ariefcatur/storefront-orders/internal/codes"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/ariefcatur/storefront-orders/internal/secretcode"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxCodeAttempts = 5

var ErrInvalidPercent = errors.New("discount percent must be within 0..100")

type Issuer struct {
	gifts     GiftCardStore
	secrets   secretcode.Store
	clock     clock.Clock
	ttlMonths int

	// overridable in tests
	newGiftCode   func() (string, error)
	newSecretCode func() (string, error)
}

func NewIssuer(gifts GiftCardStore, secrets secretcode.Store, clk clock.Clock, ttlMonths int) *Issuer {
	if clk == nil {
		clk = clock.Real()
	}
	return &Issuer{
		gifts:         gifts,
		secrets:       secrets,
		clock:         clk,
		ttlMonths:     ttlMonths,
		newGiftCode:   codes.GiftCard,
		newSecretCode: codes.Secret,
	}
}

// Issue mints one gift card and one secret code owned by orderID on q. The
// caller's transaction must also carry the status change to paid.
func (i *Issuer) Issue(ctx context.Context, q postgres.DBTX, orderID uuid.UUID, discountPercent int) (*GiftCard, *secretcode.SecretCode, error) {
	value, err := codes.Pick(Denominations)
	if err != nil {
		return nil, nil, err
	}
	now := i.clock.Now()

	gift := &GiftCard{ID: uuid.New(), ValueCents: value, OrderID: orderID, CreatedAt: now}
	err = retryCode(i.newGiftCode, ErrCodeTaken, func(code string) error {
		gift.Code = code
		return i.gifts.Insert(ctx, q, gift)
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "issue gift card for order %s", orderID)
	}

	sc, err := i.mint(ctx, q, &orderID, discountPercent)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "issue secret code for order %s", orderID)
	}

	log.Info().
		Str("order_id", orderID.String()).
		Int64("gift_card_cents", gift.ValueCents).
		Int("discount_percent", sc.DiscountPercent).
		Msg("rewards issued")
	return gift, sc, nil
}

// MintSecretCode creates a code with no owning order.
func (i *Issuer) MintSecretCode(ctx context.Context, q postgres.DBTX, discountPercent int) (*secretcode.SecretCode, error) {
	return i.mint(ctx, q, nil, discountPercent)
}

func (i *Issuer) mint(ctx context.Context, q postgres.DBTX, orderID *uuid.UUID, pct int) (*secretcode.SecretCode, error) {
	if pct < 0 || pct > 100 {
		return nil, ErrInvalidPercent
	}
	now := i.clock.Now()
	sc := &secretcode.SecretCode{
		ID:              uuid.New(),
		DiscountPercent: pct,
		OrderID:         orderID,
		ExpiresAt:       now.AddDate(0, i.ttlMonths, 0),
		CreatedAt:       now,
	}
	err := retryCode(i.newSecretCode, secretcode.ErrCodeTaken, func(code string) error {
		sc.Code = code
		return i.secrets.Insert(ctx, q, sc)
	})
	if postgres.IsUniqueViolation(err, "secret_codes_order_id_key") {
		return nil, errors.Mark(err, ErrAlreadyIssued)
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// retryCode draws fresh codes until insert stops reporting taken.
func retryCode(gen func() (string, error), taken error, insert func(code string) error) error {
	for attempt := 1; ; attempt++ {
		code, err := gen()
		if err != nil {
			return err
		}
		err = insert(code)
		if !errors.Is(err, taken) {
			return err
		}
		if attempt >= maxCodeAttempts {
			return errors.Wrapf(err, "no free code after %d attempts", attempt)
		}
		log.Warn().Str("code", code).Int("attempt", attempt).Msg("rewards: code collision, retrying")
	}
}
