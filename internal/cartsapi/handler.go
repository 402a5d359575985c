package cartsapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/fjod/go_cart/cart-sync/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type CartsHandler struct {
	service *CartsService
	logger  *slog.Logger
}

func NewCartsHandler(service *CartsService, logger *slog.Logger) *CartsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartsHandler{service: service, logger: logger}
}

// NewRouter mounts the carts endpoints.
func NewRouter(h *CartsHandler, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.Health)
	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.CreateCart)
		r.Get("/{id}", h.GetCart)
		r.Get("/user/{userId}", h.ListUserCarts)
	})
	return r
}

// GET /carts/user/{userId}
func (h *CartsHandler) ListUserCarts(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || userID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_user_id", "userId must be a positive integer")
		return
	}

	carts, err := h.service.ListUserCarts(r.Context(), userID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, carts)
}

// GET /carts/{id}
func (h *CartsHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_cart_id", "id must be a positive integer")
		return
	}

	cart, err := h.service.GetCart(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, cart)
}

// POST /carts
func (h *CartsHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var cart domain.RemoteCart
	if err := json.NewDecoder(r.Body).Decode(&cart); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// ids are always assigned here
	cart.ID = 0

	if err := h.service.CreateCart(r.Context(), &cart); err != nil {
		h.handleError(w, err)
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" {
		h.logger.Debug("cart created with idempotency key", "cart_id", cart.ID, "idempotency_key", key)
	}
	h.respondJSON(w, http.StatusCreated, cart)
}

func (h *CartsHandler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCart):
		h.respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, repository.ErrCartNotFound):
		h.respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.logger.Error("carts request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *CartsHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CartsHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "status", status, "error", err)
	}
}

func (h *CartsHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
