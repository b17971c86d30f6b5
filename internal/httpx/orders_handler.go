package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/storefront-orders/internal/catalog"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*orders.CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*orders.Order, error)
	GetByReference(ctx context.Context, reference string) (*orders.Order, error)
	Status(ctx context.Context, id uuid.UUID) (*orders.StatusView, error)
	List(ctx context.Context, status orders.Status, limit int) ([]orders.Order, error)
	Transition(ctx context.Context, id uuid.UUID, to orders.Status) (*orders.TransitionResult, error)
	Anonymize(ctx context.Context, email, phone string) (int64, error)
}

type ProductLister interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

// OrdersHandler serves the public storefront routes.
type OrdersHandler struct {
	Orders   OrderService
	Products ProductLister
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/ref/{reference}", h.getOrderByReference)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Products.ListProducts(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Orders.CreateOrder(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	code := http.StatusCreated
	if res.Idempotent {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getOrderByReference(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	v, err := h.Orders.Status(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}
