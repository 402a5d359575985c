// Package session binds the cart store to the signed-in user and exposes the
// flat view and actions presentation code works with.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/fjod/go_cart/cart-sync/internal/store"
	"github.com/shopspring/decimal"
)

const DefaultSyncTimeout = 10 * time.Second

// CartView is the read side of the facade.
type CartView struct {
	Items      []domain.LineItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	IsLoading  bool              `json:"isLoading"`
	IsSyncing  bool              `json:"isSyncing"`
	Error      string            `json:"error,omitempty"`
}

type Option func(*Facade)

func WithSyncTimeout(d time.Duration) Option {
	return func(f *Facade) {
		if d > 0 {
			f.syncTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

type Facade struct {
	store *store.Store

	mu       sync.Mutex
	identity int64

	// background syncs are detached from request contexts
	baseCtx     context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	syncTimeout time.Duration
	logger      *slog.Logger
}

func New(s *store.Store, opts ...Option) *Facade {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Facade{
		store:       s,
		baseCtx:     ctx,
		cancel:      cancel,
		syncTimeout: DefaultSyncTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ObserveIdentity records the current user id, 0 meaning signed out. A sync
// starts in the background only when the id changes to a different signed-in
// user; repeated observations of the same id and sign-outs never sync.
func (f *Facade) ObserveIdentity(userID int64) {
	if userID < 0 {
		userID = 0
	}

	f.mu.Lock()
	changed := userID != f.identity
	f.identity = userID
	f.mu.Unlock()

	if !changed || userID == 0 {
		return
	}

	f.logger.Info("identity changed, syncing cart", "user_id", userID)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(f.baseCtx, f.syncTimeout)
		defer cancel()
		// failures are already recorded in the sync state
		_ = f.store.SyncWithServer(ctx, userID)
	}()
}

func (f *Facade) Identity() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *Facade) View() CartView {
	snap := f.store.Snapshot()
	state := f.store.SyncState()
	return CartView{
		Items:      snap.Items,
		TotalItems: snap.TotalItems,
		TotalPrice: snap.TotalPrice,
		IsLoading:  state.IsLoading,
		IsSyncing:  state.IsSyncing,
		Error:      state.Error,
	}
}

func (f *Facade) AddToCart(item domain.CatalogItem, quantity int) CartView {
	f.store.AddItem(item, quantity)
	return f.View()
}

func (f *Facade) RemoveFromCart(productID string) CartView {
	f.store.RemoveItem(productID)
	return f.View()
}

func (f *Facade) UpdateQuantity(productID string, quantity int) CartView {
	f.store.UpdateQuantity(productID, quantity)
	return f.View()
}

func (f *Facade) ClearCart() CartView {
	f.store.ClearCart()
	return f.View()
}

// SubmitCart submits on behalf of the current identity.
func (f *Facade) SubmitCart(ctx context.Context) (domain.SubmitResult, error) {
	return f.store.SubmitCart(ctx, f.Identity())
}

// SubmitCartAs submits on behalf of userID regardless of the identity last
// observed. Request handlers use it so a concurrent identity change from
// another request cannot redirect the order.
func (f *Facade) SubmitCartAs(ctx context.Context, userID int64) (domain.SubmitResult, error) {
	return f.store.SubmitCart(ctx, userID)
}

// Wait blocks until every background sync started so far has returned.
func (f *Facade) Wait() {
	f.wg.Wait()
}

// Close cancels in-flight background syncs and waits for them.
func (f *Facade) Close() {
	f.cancel()
	f.wg.Wait()
}
