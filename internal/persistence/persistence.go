// Package persistence keeps a passive durable copy of the cart used to
// rehydrate the store at startup.
package persistence

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

// DefaultKey is the storage key of the cart snapshot.
const DefaultKey = "cart-storage"

type SnapshotStore interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap domain.Snapshot) error
}

var (
	ErrNotFound = errors.New("no stored cart")
	ErrCorrupt  = errors.New("stored cart is corrupt")
)
