// Package secretcode guards the secret menu. A code reveals the menu once to
// a non-admin visitor and discounts exactly one order.
package secretcode

import (
	"context"

	"github.com/ariefcatur/storefront-orders/internal/catalog"
	"github.com/ariefcatur/storefront-orders/internal/clock"
	"github.com/ariefcatur/storefront-orders/internal/codes"
	"github.com/ariefcatur/storefront-orders/internal/money"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Catalog interface {
	SecretMenu(ctx context.Context) ([]catalog.Product, error)
}

type Gate struct {
	store   Store
	db      postgres.DBTX
	catalog Catalog
	clock   clock.Clock
}

func NewGate(store Store, db postgres.DBTX, cat Catalog, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.Real()
	}
	return &Gate{store: store, db: db, catalog: cat, clock: clk}
}

// View renders the page behind a code URL. Admin views never change the code.
func (g *Gate) View(ctx context.Context, code string, isAdmin bool) (*View, error) {
	code = codes.Normalize(code)
	c, err := g.store.FindByCode(ctx, g.db, code)
	if err != nil {
		return nil, err
	}
	now := g.clock.Now()
	v := &View{
		Code:            c.Code,
		DiscountPercent: c.DiscountPercent,
		ExpiresAt:       c.ExpiresAt,
		Expired:         c.Expired(now),
		AlreadyScanned:  c.IsScanned,
		AlreadyUsed:     c.IsUsed,
	}

	if isAdmin {
		if v.Products, err = g.menu(ctx, c.DiscountPercent); err != nil {
			return nil, err
		}
		return v, nil
	}
	if v.Expired || c.IsScanned {
		return v, nil
	}

	won, err := g.store.MarkScanned(ctx, g.db, code, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// lost the race to another visitor
		v.AlreadyScanned = true
		return v, nil
	}
	log.Info().Str("code", code).Msg("secret code unlocked")

	if v.Products, err = g.menu(ctx, c.DiscountPercent); err != nil {
		return nil, err
	}
	return v, nil
}

// Lookup returns the code without touching it.
func (g *Gate) Lookup(ctx context.Context, code string) (*SecretCode, error) {
	return g.store.FindByCode(ctx, g.db, codes.Normalize(code))
}

// Redeem marks the code used by orderID outside any caller transaction.
func (g *Gate) Redeem(ctx context.Context, code string, orderID uuid.UUID) error {
	return g.RedeemTx(ctx, g.db, code, orderID)
}

// RedeemTx marks the code used by orderID on q. Whether the code was ever
// scanned does not matter. Concurrent calls for one code have one winner.
func (g *Gate) RedeemTx(ctx context.Context, q postgres.DBTX, code string, orderID uuid.UUID) error {
	code = codes.Normalize(code)
	now := g.clock.Now()
	ok, err := g.store.MarkUsed(ctx, q, code, orderID, now)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	c, err := g.store.FindByCode(ctx, q, code)
	if err != nil {
		return err
	}
	switch {
	case c.Expired(now):
		return errors.Wrapf(ErrExpired, "code %s", code)
	default:
		return errors.Wrapf(ErrAlreadyUsed, "code %s", code)
	}
}

func (g *Gate) menu(ctx context.Context, pct int) ([]MenuItem, error) {
	products, err := g.catalog.SecretMenu(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "secretcode: load menu")
	}
	items := make([]MenuItem, 0, len(products))
	for _, p := range products {
		items = append(items, MenuItem{
			ProductID:       p.ID,
			Name:            p.Name,
			PriceCents:      p.PriceCents,
			DiscountedCents: money.Discounted(p.PriceCents, pct),
			InStock:         p.Stock > 0,
		})
	}
	return items, nil
}
