package secretcode

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("secret code not found")
	ErrExpired     = errors.New("secret code expired")
	ErrAlreadyUsed = errors.New("secret code already used")
	ErrCodeTaken   = errors.New("secret code already exists")
)

// SecretCode is a one-time-reveal, one-time-redeem discount token. IsScanned
// and IsUsed are independent: a code may be redeemed without ever being viewed.
type SecretCode struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	IsScanned       bool       `json:"is_scanned"`
	ScannedAt       *time.Time `json:"scanned_at,omitempty"`
	IsUsed          bool       `json:"is_used"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	UsedByOrderID   *uuid.UUID `json:"used_by_order_id,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (c *SecretCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// MenuItem is a secret-menu product priced with the code's discount.
type MenuItem struct {
	ProductID       uuid.UUID `json:"product_id"`
	Name            string    `json:"name"`
	PriceCents      int64     `json:"price_cents"`
	DiscountedCents int64     `json:"discounted_cents"`
	InStock         bool      `json:"in_stock"`
}

// View is what a visitor of the code's URL gets back. Products is only set
// for admins and for the first non-admin scan of a live code.
type View struct {
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Expired         bool       `json:"expired"`
	AlreadyScanned  bool       `json:"already_scanned"`
	AlreadyUsed     bool       `json:"already_used"`
	Products        []MenuItem `json:"products,omitempty"`
}
