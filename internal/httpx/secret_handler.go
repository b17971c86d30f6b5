package httpx

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/ariefcatur/storefront-orders/internal/secretcode"
	"github.com/go-chi/chi/v5"
)

const HeaderAdminToken = "X-Admin-Token"

type SecretGate interface {
	View(ctx context.Context, code string, isAdmin bool) (*secretcode.View, error)
}

type SecretHandler struct {
	Gate       SecretGate
	AdminToken string
}

func (h *SecretHandler) Register(r chi.Router) {
	r.Get("/secret/{code}", h.view)
}

// view is what a scanned QR code lands on. The first non-admin visit unlocks
// the menu; later visits only see that the code was already opened.
func (h *SecretHandler) view(w http.ResponseWriter, r *http.Request) {
	admin := isAdmin(r, h.AdminToken)
	v, err := h.Gate.View(r.Context(), chi.URLParam(r, "code"), admin)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func isAdmin(r *http.Request, token string) bool {
	got := r.Header.Get(HeaderAdminToken)
	if token == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// RequireAdmin rejects requests without a matching admin token.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAdmin(r, token) {
				respondWithError(w, http.StatusUnauthorized, "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
