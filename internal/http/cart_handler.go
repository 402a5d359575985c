package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/fjod/go_cart/cart-sync/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds a single add or update request.
const MaxQuantity = 99

// Cart is the facade surface the handlers drive.
type Cart interface {
	View() session.CartView
	AddToCart(item domain.CatalogItem, quantity int) session.CartView
	RemoveFromCart(productID string) session.CartView
	UpdateQuantity(productID string, quantity int) session.CartView
	ClearCart() session.CartView
	SubmitCartAs(ctx context.Context, userID int64) (domain.SubmitResult, error)
}

type CartHandler struct {
	responder
	cart    Cart
	timeout time.Duration
}

func NewCartHandler(cart Cart, timeout time.Duration, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		responder: newResponder(logger),
		cart:      cart,
		timeout:   timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CheckoutResponseDTO struct {
	OrderID int64 `json:"order_id"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.cart.View())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Price.IsNegative() {
		h.respondError(w, http.StatusBadRequest, "invalid_price", "price must not be negative")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > MaxQuantity {
		h.respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	view := h.cart.AddToCart(domain.CatalogItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		UnitPrice: req.Price,
		ImageRef:  req.Image,
	}, req.Quantity)
	h.respondJSON(w, http.StatusCreated, view)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// zero or below removes the line
	if req.Quantity > MaxQuantity {
		h.respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not exceed 99")
		return
	}

	h.respondJSON(w, http.StatusOK, h.cart.UpdateQuantity(productID, req.Quantity))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	h.respondJSON(w, http.StatusOK, h.cart.RemoveFromCart(productID))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.cart.ClearCart())
}

// POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// submit for the caller of this request, not whichever identity the
	// shared session observed last
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		h.respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	result, err := h.cart.SubmitCartAs(ctx, userID)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, CheckoutResponseDTO{OrderID: result.OrderID})
}
