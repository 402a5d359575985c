package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// responder writes JSON bodies and reports encoding failures to its logger.
type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (rs responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rs.logger.Error("failed to encode response", "status", status, "error", err)
	}
}

func (rs responder) respondError(w http.ResponseWriter, status int, code, message string) {
	rs.respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError converts the cart error taxonomy to HTTP status codes.
func (rs responder) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		rs.respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, domain.ErrValidation):
		rs.respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, domain.ErrNetwork):
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) && netErr.StatusCode == 0 && errors.Is(netErr.Err, context.DeadlineExceeded) {
			rs.respondError(w, http.StatusGatewayTimeout, "timeout", err.Error())
			return
		}
		rs.respondError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		rs.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (rs responder) health(w http.ResponseWriter, _ *http.Request) {
	rs.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
