package orders

import (
	"context"

	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Ledger is the only writer of products.stock. It never opens its own
// transaction; callers pass the tx the reservation belongs to.
type Ledger struct{}

type stockRow struct {
	stock int
	price int64
}

// Reserve locks every product row in id order, checks all lines, and only
// then decrements. Duplicate lines for one product are merged. The returned
// items carry the current catalog price.
func (Ledger) Reserve(ctx context.Context, q postgres.DBTX, items []ItemInput) ([]LineItem, error) {
	merged := mergeItems(items)
	ids := make([]string, 0, len(merged))
	for _, it := range merged {
		ids = append(ids, it.ProductID.String())
	}

	rows, err := q.Query(ctx, `
		SELECT id, stock, price_cents FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "ledger: lock products")
	}
	locked := make(map[uuid.UUID]stockRow, len(merged))
	for rows.Next() {
		var id uuid.UUID
		var r stockRow
		if err := rows.Scan(&id, &r.stock, &r.price); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "ledger: scan product")
		}
		locked[id] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "ledger: iterate products")
	}

	var shortages []Shortage
	for _, it := range merged {
		r, ok := locked[it.ProductID]
		if !ok {
			return nil, errors.Wrapf(ErrProductNotFound, "product %s", it.ProductID)
		}
		if r.stock < it.Qty {
			shortages = append(shortages, Shortage{ProductID: it.ProductID, Available: r.stock, Requested: it.Qty})
		}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	out := make([]LineItem, 0, len(merged))
	for _, it := range merged {
		r := locked[it.ProductID]
		ct, err := q.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`, it.ProductID, it.Qty)
		if err != nil {
			return nil, errors.Wrap(err, "ledger: decrement stock")
		}
		if ct.RowsAffected() != 1 {
			return nil, &InsufficientStockError{Shortages: []Shortage{{ProductID: it.ProductID, Available: r.stock, Requested: it.Qty}}}
		}
		out = append(out, LineItem{ProductID: it.ProductID, Qty: it.Qty, PriceCents: r.price})
	}
	return out, nil
}

// Release puts reserved units back. It is only used to compensate a
// reservation whose order could not be completed.
func (Ledger) Release(ctx context.Context, q postgres.DBTX, items []LineItem) error {
	for _, it := range items {
		if _, err := q.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now()
			WHERE id = $1`, it.ProductID, it.Qty); err != nil {
			return errors.Wrapf(err, "ledger: release %s", it.ProductID)
		}
	}
	return nil
}

func mergeItems(items []ItemInput) []ItemInput {
	idx := make(map[uuid.UUID]int, len(items))
	out := make([]ItemInput, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}
