package persistence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

// Adapter applies the best-effort contract on top of a SnapshotStore:
// nothing it does is ever reported to the cart as a failure.
type Adapter struct {
	store   SnapshotStore
	timeout time.Duration
	logger  *slog.Logger
}

func NewAdapter(store SnapshotStore, timeout time.Duration, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// Load returns false when there is no usable stored cart. Unreadable or
// corrupt storage is logged and treated the same as an absent cart.
func (a *Adapter) Load(ctx context.Context) (domain.Snapshot, bool) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	snap, err := a.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return domain.Snapshot{}, false
	}
	if err != nil {
		a.logger.Warn("discarding stored cart", "error", &domain.PersistenceError{Op: "load snapshot", Err: err})
		return domain.Snapshot{}, false
	}
	return *snap, true
}

func (a *Adapter) Save(ctx context.Context, snap domain.Snapshot) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.store.Save(ctx, snap); err != nil {
		a.logger.Error("persisting cart failed", "items", len(snap.Items), "error", &domain.PersistenceError{Op: "save snapshot", Err: err})
	}
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
