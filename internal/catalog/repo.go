// Package catalog is the read-only view of the product table that the order
// pipeline needs. Catalog CRUD lives elsewhere.
package catalog

import (
	"context"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type Product struct {
	ID         uuid.UUID `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	PriceCents int64     `json:"price_cents"`
	IsSecret   bool      `json:"is_secret"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repo struct{ DB postgres.DBTX }

// ListProducts returns the public catalog. Secret-menu items are excluded.
func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	return r.list(ctx, false)
}

// SecretMenu returns the products only revealed through a secret code.
func (r *Repo) SecretMenu(ctx context.Context) ([]Product, error) {
	return r.list(ctx, true)
}

func (r *Repo) list(ctx context.Context, secret bool) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, stock, price_cents, is_secret, created_at, updated_at
                                FROM products WHERE is_secret = $1 ORDER BY sku`, secret)
	if err != nil {
		return nil, errors.Wrap(err, "catalog: query products")
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.IsSecret, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "catalog: scan product")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "catalog: iterate products")
}
