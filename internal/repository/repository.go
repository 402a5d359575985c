// Package repository stores the cart records served by the carts API.
package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRecordRepository persists submitted carts. CreateCart assigns the
// numeric id.
type CartRecordRepository interface {
	CreateCart(ctx context.Context, cart *domain.RemoteCart) error
	GetCartByID(ctx context.Context, id int64) (*domain.RemoteCart, error)
	ListCartsByUserID(ctx context.Context, userID int64) ([]domain.RemoteCart, error)
	Close(ctx context.Context) error
}
