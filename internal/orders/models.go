package orders

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryDelivery DeliveryMethod = "delivery"
)

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

type Delivery struct {
	Method  DeliveryMethod `json:"method"`
	Address string         `json:"address,omitempty"`
	City    string         `json:"city,omitempty"`
	Notes   string         `json:"notes,omitempty"`
}

// LineItem carries the unit price captured when the order was placed.
type LineItem struct {
	ProductID  uuid.UUID `json:"product_id"`
	Qty        int       `json:"qty"`
	PriceCents int64     `json:"price_cents"`
}

func (li LineItem) TotalCents() int64 { return li.PriceCents * int64(li.Qty) }

type Order struct {
	ID                   uuid.UUID  `json:"id"`
	Reference            string     `json:"reference"`
	ExternalID           string     `json:"external_id,omitempty"`
	Customer             Customer   `json:"customer"`
	Delivery             Delivery   `json:"delivery"`
	Items                []LineItem `json:"items"`
	SubtotalCents        int64      `json:"subtotal_cents"`
	DiscountCents        int64      `json:"discount_cents"`
	DeliveryFeeCents     int64      `json:"delivery_fee_cents"`
	TotalCents           int64      `json:"total_cents"`
	Status               Status     `json:"status"`
	GiftCardID           *uuid.UUID `json:"gift_card_id,omitempty"`
	SecretCodeID         *uuid.UUID `json:"secret_code_id,omitempty"`
	ConsumedSecretCodeID *uuid.UUID `json:"consumed_secret_code_id,omitempty"`
	AnonymizedAt         *time.Time `json:"anonymized_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Shortage describes one line the ledger could not cover.
type Shortage struct {
	ProductID uuid.UUID `json:"product_id"`
	Available int       `json:"available"`
	Requested int       `json:"requested"`
}

type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"gt=0,lte=1000"`
}

type CustomerInput struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"required,min=6,max=32"`
	Email string `json:"email" validate:"omitempty,email"`
}

type DeliveryInput struct {
	Method  DeliveryMethod `json:"method" validate:"required,oneof=pickup delivery"`
	Address string         `json:"address" validate:"required_if=Method delivery,max=500"`
	City    string         `json:"city" validate:"required_if=Method delivery,max=120"`
	Notes   string         `json:"notes" validate:"max=500"`
}

// CreateOrderInput is a checkout request. DeliveryFeeCents comes from the
// external fee estimator; line prices always come from the catalog.
type CreateOrderInput struct {
	ExternalID       string        `json:"external_id" validate:"max=128"`
	Customer         CustomerInput `json:"customer"`
	Items            []ItemInput   `json:"items" validate:"required,min=1,dive"`
	Delivery         DeliveryInput `json:"delivery"`
	DeliveryFeeCents int64         `json:"delivery_fee_cents" validate:"gte=0"`
	SecretCode       string        `json:"secret_code" validate:"max=64"`
}

// CreateResult is returned by CreateOrder. Idempotent is set when ExternalID
// matched an order created earlier.
type CreateResult struct {
	Order      *Order `json:"order"`
	Idempotent bool   `json:"idempotent"`
}

// TransitionResult carries the rewards minted by a pending to paid step.
type TransitionResult struct {
	Order *Order      `json:"order"`
	From  Status      `json:"from"`
	To    Status      `json:"to"`
	Gift  *GiftReward `json:"gift_card,omitempty"`
	Code  *CodeReward `json:"secret_code,omitempty"`
}

type GiftReward struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	ValueCents int64     `json:"value_cents"`
}

type CodeReward struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	ExpiresAt       time.Time `json:"expires_at"`
}
