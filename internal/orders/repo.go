package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errReferenceTaken = errors.New("order reference already exists")

const constraintExternalID = "orders_external_id_key"

// Repo maps order rows to Order values. Like the ledger it runs on whatever
// DBTX it is given.
type Repo struct{}

const orderColumns = `id, reference, external_id,
	customer_name, customer_phone, customer_email,
	delivery_method, delivery_address, delivery_city, delivery_notes,
	subtotal_cents, discount_cents, delivery_fee_cents, total_cents, status,
	gift_card_id, secret_code_id, consumed_secret_code_id, anonymized_at,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var o Order
	var externalID *string
	err := row.Scan(
		&o.ID, &o.Reference, &externalID,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Email,
		&o.Delivery.Method, &o.Delivery.Address, &o.Delivery.City, &o.Delivery.Notes,
		&o.SubtotalCents, &o.DiscountCents, &o.DeliveryFeeCents, &o.TotalCents, &o.Status,
		&o.GiftCardID, &o.SecretCodeID, &o.ConsumedSecretCodeID, &o.AnonymizedAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if externalID != nil {
		o.ExternalID = *externalID
	}
	return &o, nil
}

// Insert writes the order and its lines. A reference collision returns
// errReferenceTaken without aborting the transaction.
func (Repo) Insert(ctx context.Context, q postgres.DBTX, o *Order) error {
	var externalID *string
	if o.ExternalID != "" {
		externalID = &o.ExternalID
	}
	ct, err := q.Exec(ctx, `
		INSERT INTO orders (id, reference, external_id,
			customer_name, customer_phone, customer_email,
			delivery_method, delivery_address, delivery_city, delivery_notes,
			subtotal_cents, discount_cents, delivery_fee_cents, total_cents, status,
			consumed_secret_code_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)
		ON CONFLICT (reference) DO NOTHING`,
		o.ID, o.Reference, externalID,
		o.Customer.Name, o.Customer.Phone, o.Customer.Email,
		o.Delivery.Method, o.Delivery.Address, o.Delivery.City, o.Delivery.Notes,
		o.SubtotalCents, o.DiscountCents, o.DeliveryFeeCents, o.TotalCents, o.Status,
		o.ConsumedSecretCodeID, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "orders: insert order")
	}
	if ct.RowsAffected() == 0 {
		return errReferenceTaken
	}

	for _, it := range o.Items {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return errors.Wrap(err, "orders: insert item")
		}
	}
	return nil
}

func (r Repo) GetByID(ctx context.Context, q postgres.DBTX, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r Repo) GetByReference(ctx context.Context, q postgres.DBTX, reference string) (*Order, error) {
	return r.getOne(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE reference = $1`, reference)
}

func (r Repo) FindByExternalID(ctx context.Context, q postgres.DBTX, externalID string) (*Order, error) {
	return r.getOne(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE external_id = $1`, externalID)
}

func (r Repo) getOne(ctx context.Context, q postgres.DBTX, sql string, arg any) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "orders: select order")
	}
	if o.Items, err = r.items(ctx, q, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (Repo) items(ctx context.Context, q postgres.DBTX, orderID uuid.UUID) ([]LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, qty, price_cents FROM order_items
		WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "orders: select items")
	}
	defer rows.Close()

	out := []LineItem{}
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return nil, errors.Wrap(err, "orders: scan item")
		}
		out = append(out, it)
	}
	return out, errors.Wrap(rows.Err(), "orders: iterate items")
}

// LockStatus reads the status and holds the row lock until the tx ends.
func (Repo) LockStatus(ctx context.Context, q postgres.DBTX, id uuid.UUID) (Status, error) {
	var s Status
	err := q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "orders: lock order")
	}
	return s, nil
}

// UpdateStatus sets the status and, when given, the reward links.
func (Repo) UpdateStatus(ctx context.Context, q postgres.DBTX, id uuid.UUID, to Status, giftCardID, secretCodeID *uuid.UUID) error {
	ct, err := q.Exec(ctx, `
		UPDATE orders SET status = $2,
			gift_card_id = COALESCE($3, gift_card_id),
			secret_code_id = COALESCE($4, secret_code_id),
			updated_at = now()
		WHERE id = $1`, id, to, giftCardID, secretCodeID)
	if err != nil {
		return errors.Wrap(err, "orders: update status")
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns orders without their lines, newest first.
func (Repo) List(ctx context.Context, q postgres.DBTX, status Status, limit int) ([]Order, error) {
	rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, errors.Wrap(err, "orders: list")
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "orders: scan order")
		}
		out = append(out, *o)
	}
	return out, errors.Wrap(rows.Err(), "orders: iterate orders")
}

// Anonymize clears customer contact data on every order matching email or
// phone. Rows, totals and reward links are kept.
func (Repo) Anonymize(ctx context.Context, q postgres.DBTX, email, phone string, at time.Time) (int64, error) {
	ct, err := q.Exec(ctx, `
		UPDATE orders SET
			customer_name = '', customer_phone = '', customer_email = '',
			delivery_address = '', delivery_city = '', delivery_notes = '',
			anonymized_at = $3, updated_at = $3
		WHERE anonymized_at IS NULL
		  AND (($1 <> '' AND customer_email = $1) OR ($2 <> '' AND customer_phone = $2))`,
		email, phone, at)
	if err != nil {
		return 0, errors.Wrap(err, "orders: anonymize")
	}
	return ct.RowsAffected(), nil
}
