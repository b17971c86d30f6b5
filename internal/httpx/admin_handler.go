package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/rewards"
	"github.com/ariefcatur/storefront-orders/internal/secretcode"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
)

type DiscountSettings interface {
	SecretDiscountPercent(ctx context.Context) (int, error)
	SetSecretDiscountPercent(ctx context.Context, pct int) error
}

// MintFunc creates a secret code that belongs to no order.
type MintFunc func(ctx context.Context, discountPercent int) (*secretcode.SecretCode, error)

// GiftCardFunc returns the gift card issued to an order.
type GiftCardFunc func(ctx context.Context, orderID uuid.UUID) (*rewards.GiftCard, error)

type AdminHandler struct {
	Orders   OrderService
	Settings DiscountSettings
	Mint     MintFunc
	GiftCard GiftCardFunc
	Token    string
}

type transitionReq struct {
	Status orders.Status `json:"status"`
}

type discountBody struct {
	DiscountPercent int `json:"discount_percent"`
}

type mintReq struct {
	DiscountPercent *int `json:"discount_percent"`
}

type anonymizeReq struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin(h.Token))
		r.Get("/orders", h.listOrders)
		r.Post("/orders/{id}/status", h.transition)
		r.Get("/orders/{id}/gift-card", h.giftCard)
		r.Get("/settings/secret-discount", h.getDiscount)
		r.Put("/settings/secret-discount", h.putDiscount)
		r.Post("/secret-codes", h.mintCode)
		r.Post("/customers/anonymize", h.anonymize)
	})
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	list, err := h.Orders.List(r.Context(), orders.Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req transitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Orders.Transition(r.Context(), id, req.Status)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) giftCard(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	g, err := h.GiftCard(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *AdminHandler) getDiscount(w http.ResponseWriter, r *http.Request) {
	pct, err := h.Settings.SecretDiscountPercent(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, discountBody{DiscountPercent: pct})
}

func (h *AdminHandler) putDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.Settings.SetSecretDiscountPercent(r.Context(), req.DiscountPercent); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Int("discount_percent", req.DiscountPercent).Msg("secret discount updated")
	writeJSON(w, http.StatusOK, req)
}

// mintCode issues a standalone secret code. Without an explicit percentage
// the current global setting is used.
func (h *AdminHandler) mintCode(w http.ResponseWriter, r *http.Request) {
	var req mintReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var pct int
	if req.DiscountPercent != nil {
		pct = *req.DiscountPercent
	} else {
		var err error
		if pct, err = h.Settings.SecretDiscountPercent(r.Context()); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
	}

	c, err := h.Mint(r.Context(), pct)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *AdminHandler) anonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}
	n, err := h.Orders.Anonymize(r.Context(), req.Email, req.Phone)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"orders_anonymized": n})
}
