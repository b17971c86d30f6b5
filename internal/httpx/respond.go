package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/rewards"
	"github.com/ariefcatur/storefront-orders/internal/secretcode"
	"github.com/ariefcatur/storefront-orders/internal/settings"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/hlog"
)

type errorBody struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Shortages []orders.Shortage `json:"shortages,omitempty"`
	From      orders.Status     `json:"from,omitempty"`
	To        orders.Status     `json:"to,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorBody{Error: message})
}

// respondWithServiceError maps a domain error to its status code and body.
// Anything unrecognised is logged and reported as a bare 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := mapErrorToStatusCode(err)
	if code == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		respondWithError(w, code, "internal error")
		return
	}

	body := errorBody{Error: err.Error()}
	var (
		verr *orders.ValidationError
		serr *orders.InsufficientStockError
		terr *orders.InvalidTransitionError
	)
	switch {
	case errors.As(err, &verr):
		body.Error = orders.ErrValidation.Error()
		body.Fields = verr.Fields
	case errors.As(err, &serr):
		body.Error = orders.ErrInsufficientStock.Error()
		body.Shortages = serr.Shortages
	case errors.As(err, &terr):
		body.Error = orders.ErrInvalidTransition.Error()
		body.From, body.To = terr.From, terr.To
	}
	writeJSON(w, code, body)
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, orders.ErrValidation),
		errors.Is(err, rewards.ErrInvalidPercent),
		errors.Is(err, settings.ErrInvalidPercent):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, secretcode.ErrNotFound),
		errors.Is(err, rewards.ErrGiftCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrProductNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, secretcode.ErrAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, secretcode.ErrExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
