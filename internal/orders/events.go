package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated  = "OrderCreated"
	EventStatusChanged = "OrderStatusChanged"
	EventRewardsIssued = "OrderRewardsIssued"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

// OrderCreatedPayload is what the notifier needs to confirm an order to the
// customer.
type OrderCreatedPayload struct {
	OrderID          string         `json:"order_id"`
	Reference        string         `json:"reference"`
	ExternalID       string         `json:"external_id,omitempty"`
	CustomerName     string         `json:"customer_name"`
	CustomerPhone    string         `json:"customer_phone"`
	DeliveryMethod   DeliveryMethod `json:"delivery_method"`
	Items            []ItemPrice    `json:"items"`
	SubtotalCents    int64          `json:"subtotal_cents"`
	DiscountCents    int64          `json:"discount_cents"`
	DeliveryFeeCents int64          `json:"delivery_fee_cents"`
	TotalCents       int64          `json:"total_cents"`
}

type StatusChangedPayload struct {
	OrderID       string `json:"order_id"`
	Reference     string `json:"reference"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	From          Status `json:"from"`
	To            Status `json:"to"`
}

type RewardsIssuedPayload struct {
	OrderID               string    `json:"order_id"`
	Reference             string    `json:"reference"`
	CustomerName          string    `json:"customer_name"`
	CustomerPhone         string    `json:"customer_phone"`
	GiftCardCode          string    `json:"gift_card_code"`
	GiftCardValueCents    int64     `json:"gift_card_value_cents"`
	SecretCode            string    `json:"secret_code"`
	SecretDiscountPercent int       `json:"secret_discount_percent"`
	SecretExpiresAt       time.Time `json:"secret_expires_at"`
}

func createdPayload(o *Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID.String(), Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return OrderCreatedPayload{
		OrderID:          o.ID.String(),
		Reference:        o.Reference,
		ExternalID:       o.ExternalID,
		CustomerName:     o.Customer.Name,
		CustomerPhone:    o.Customer.Phone,
		DeliveryMethod:   o.Delivery.Method,
		Items:            items,
		SubtotalCents:    o.SubtotalCents,
		DiscountCents:    o.DiscountCents,
		DeliveryFeeCents: o.DeliveryFeeCents,
		TotalCents:       o.TotalCents,
	}
}
