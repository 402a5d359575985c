package repository

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

// MemoryRepository keeps cart records in process memory, in creation order.
type MemoryRepository struct {
	mu     sync.RWMutex
	carts  []domain.RemoteCart
	byID   map[int64]int
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[int64]int),
		nextID: 1,
	}
}

func (m *MemoryRepository) CreateCart(_ context.Context, cart *domain.RemoteCart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart.ID = m.nextID
	m.nextID++

	stored := *cart
	stored.Products = append([]domain.RemoteProduct(nil), cart.Products...)
	m.byID[stored.ID] = len(m.carts)
	m.carts = append(m.carts, stored)
	return nil
}

func (m *MemoryRepository) GetCartByID(_ context.Context, id int64) (*domain.RemoteCart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[id]
	if !ok {
		return nil, ErrCartNotFound
	}
	cart := copyCart(m.carts[idx])
	return &cart, nil
}

func (m *MemoryRepository) ListCartsByUserID(_ context.Context, userID int64) ([]domain.RemoteCart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.RemoteCart, 0)
	for _, cart := range m.carts {
		if cart.UserID == userID {
			result = append(result, copyCart(cart))
		}
	}
	return result, nil
}

func (m *MemoryRepository) Close(context.Context) error {
	return nil
}

func copyCart(c domain.RemoteCart) domain.RemoteCart {
	c.Products = append([]domain.RemoteProduct(nil), c.Products...)
	return c
}
