// Package cartsapi serves the carts endpoints the cart client syncs with and
// submits orders to.
package cartsapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/fjod/go_cart/cart-sync/internal/publisher"
	"github.com/fjod/go_cart/cart-sync/internal/repository"
)

var ErrInvalidCart = errors.New("invalid cart")

type CartsService struct {
	repo      repository.CartRecordRepository
	publisher publisher.EventPublisher
	logger    *slog.Logger
}

func NewCartsService(repo repository.CartRecordRepository, pub publisher.EventPublisher, logger *slog.Logger) *CartsService {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CartsService{repo: repo, publisher: pub, logger: logger}
}

func (s *CartsService) ListUserCarts(ctx context.Context, userID int64) ([]domain.RemoteCart, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrInvalidCart)
	}
	return s.repo.ListCartsByUserID(ctx, userID)
}

func (s *CartsService) GetCart(ctx context.Context, id int64) (*domain.RemoteCart, error) {
	return s.repo.GetCartByID(ctx, id)
}

// CreateCart validates and stores cart, then announces it. A failed
// announcement is logged; the cart is already stored at that point.
func (s *CartsService) CreateCart(ctx context.Context, cart *domain.RemoteCart) error {
	if err := validateCart(cart); err != nil {
		return err
	}

	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return fmt.Errorf("create cart: %w", err)
	}

	if err := s.publisher.PublishCartSubmitted(ctx, *cart); err != nil {
		s.logger.Error("failed to publish cart event", "cart_id", cart.ID, "user_id", cart.UserID, "error", err)
	}

	s.logger.Info("cart created", "cart_id", cart.ID, "user_id", cart.UserID, "products", len(cart.Products))
	return nil
}

func validateCart(cart *domain.RemoteCart) error {
	if cart.UserID <= 0 {
		return fmt.Errorf("%w: userId must be positive", ErrInvalidCart)
	}
	if _, err := time.Parse(domain.DateLayout, cart.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidCart)
	}
	if len(cart.Products) == 0 {
		return fmt.Errorf("%w: products must not be empty", ErrInvalidCart)
	}
	for _, p := range cart.Products {
		if p.ProductID <= 0 {
			return fmt.Errorf("%w: productId must be positive", ErrInvalidCart)
		}
		if p.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive for product %d", ErrInvalidCart, p.ProductID)
		}
	}
	return nil
}
