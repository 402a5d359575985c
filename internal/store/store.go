// Package store holds the authoritative in-process cart state.
//
// A Store owns the line items and the sync flags. Mutations are applied
// synchronously and published to subscribers as a new snapshot; durability is
// left to whichever subscriber persists them. Remote reconciliation and
// submission go through RemoteCarts and never hold the state lock across I/O.
package store

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultQuantity is used when AddItem is called with a non-positive quantity.
const DefaultQuantity = 1

// RemoteCarts is the external carts service as seen by the store.
type RemoteCarts interface {
	FetchServerCart(ctx context.Context, userID int64) ([]domain.RemoteCart, error)
	SubmitOrder(ctx context.Context, userID int64, items []domain.LineItem) (domain.OrderReceipt, error)
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallTimeout bounds shared sync and submit calls. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.callTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type Store struct {
	mu      sync.RWMutex
	items   []domain.LineItem
	totals  domain.Totals
	version uint64

	// in-flight counters behind IsLoading / IsSyncing
	loading      int
	syncing      int
	lastSyncedAt time.Time
	lastErr      string

	subscribers map[int]func(domain.Snapshot)
	nextSubID   int

	remote      RemoteCarts
	syncCalls   *coalescer // at most one fetch per identity
	submitCalls *coalescer // double submits share one order
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func New(remote RemoteCarts, opts ...Option) *Store {
	s := &Store{
		items:       []domain.LineItem{},
		totals:      domain.CalculateTotals(nil),
		subscribers: make(map[int]func(domain.Snapshot)),
		remote:      remote,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.syncCalls = newCoalescer(s.callTimeout)
	s.submitCalls = newCoalescer(s.callTimeout)
	return s
}

// Restore replaces the item collection with a previously persisted snapshot.
// Totals are recomputed from the items. Subscribers are not notified.
func (s *Store) Restore(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = domain.CloneItems(snap.Items)
	s.totals = domain.CalculateTotals(s.items)
	s.version++
}

// Subscribe registers fn to receive every snapshot produced by a mutation.
// fn runs while the store is locked: it must not block or call the store.
func (s *Store) Subscribe(fn func(domain.Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) SyncState() domain.SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SyncState{
		IsLoading:    s.loading > 0,
		IsSyncing:    s.syncing > 0,
		LastSyncedAt: s.lastSyncedAt,
		Error:        s.lastErr,
	}
}

func (s *Store) AddItem(item domain.CatalogItem, quantity int) domain.Snapshot {
	if item.ProductID == "" {
		s.logger.Warn("ignoring cart item without product id", "name", item.Name)
		return s.Snapshot()
	}
	if quantity <= 0 {
		quantity = DefaultQuantity
	}
	if item.UnitPrice.IsNegative() {
		s.logger.Warn("negative unit price clamped to zero", "product_id", item.ProductID)
		item.UnitPrice = decimal.Zero
	}

	return s.mutate(func(items []domain.LineItem) []domain.LineItem {
		for i := range items {
			if items[i].ProductID == item.ProductID {
				items[i].Quantity += quantity
				return items
			}
		}
		return append(items, domain.NewLineItem(item, quantity))
	})
}

// RemoveItem is a no-op when productID is not in the cart.
func (s *Store) RemoveItem(productID string) domain.Snapshot {
	return s.mutate(func(items []domain.LineItem) []domain.LineItem {
		return without(items, productID)
	})
}

// UpdateQuantity sets an absolute quantity; quantity <= 0 removes the item.
func (s *Store) UpdateQuantity(productID string, quantity int) domain.Snapshot {
	return s.mutate(func(items []domain.LineItem) []domain.LineItem {
		if quantity <= 0 {
			return without(items, productID)
		}
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = quantity
				break
			}
		}
		return items
	})
}

func (s *Store) ClearCart() domain.Snapshot {
	return s.mutate(func([]domain.LineItem) []domain.LineItem {
		return []domain.LineItem{}
	})
}

// SyncWithServer fetches the remote carts for userID. The remote records are
// informational only: local items are never replaced by them. Concurrent
// calls for the same identity share a single fetch, which keeps running as
// long as at least one of them is still waiting for it.
func (s *Store) SyncWithServer(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return domain.ErrNotAuthenticated
	}

	_, err, shared := s.syncCalls.do(ctx, strconv.FormatInt(userID, 10), func(ctx context.Context) (interface{}, error) {
		s.mu.Lock()
		s.syncing++
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.syncing--
			s.mu.Unlock()
		}()

		carts, err := s.remote.FetchServerCart(ctx, userID)
		if err != nil {
			if abandoned(ctx) {
				s.logger.Debug("abandoned sync stopped", "user_id", userID)
				return nil, err
			}
			s.logger.Error("sync with server failed", "user_id", userID, "error", err)
			s.setError(err)
			return nil, err
		}

		s.mu.Lock()
		s.lastSyncedAt = s.now()
		s.lastErr = ""
		s.mu.Unlock()
		s.logger.Debug("synced with server", "user_id", userID, "remote_carts", len(carts))
		return nil, nil
	})
	if shared {
		s.logger.Debug("joined in-flight sync", "user_id", userID)
	}
	if err != nil && err == ctx.Err() {
		err = s.callerGone("sync with server", userID, err)
	}
	return err
}

// SubmitCart sends the items present at call time as an order. On success
// the cart is cleared; on failure it is left exactly as it was and the error
// is recorded. A caller whose ctx ends early gets its own error back while
// the shared submission continues for any other caller still waiting.
func (s *Store) SubmitCart(ctx context.Context, userID int64) (domain.SubmitResult, error) {
	if userID <= 0 {
		return failed(domain.ErrNotAuthenticated), domain.ErrNotAuthenticated
	}

	v, err, _ := s.submitCalls.do(ctx, strconv.FormatInt(userID, 10), func(ctx context.Context) (interface{}, error) {
		s.mu.Lock()
		if len(s.items) == 0 {
			s.mu.Unlock()
			return domain.OrderReceipt{}, domain.ErrEmptyCart
		}
		items := domain.CloneItems(s.items)
		startVersion := s.version
		s.loading++
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.loading--
			s.mu.Unlock()
		}()

		receipt, err := s.remote.SubmitOrder(ctx, userID, items)
		if err != nil {
			if abandoned(ctx) {
				s.logger.Warn("abandoned submission stopped", "user_id", userID, "error", err)
				return domain.OrderReceipt{}, err
			}
			s.logger.Error("submit cart failed", "user_id", userID, "items", len(items), "error", err)
			s.setError(err)
			return domain.OrderReceipt{}, err
		}

		if s.currentVersion() != startVersion {
			s.logger.Warn("cart changed while submission was in flight", "user_id", userID, "order_id", receipt.OrderID)
		}
		s.ClearCart()
		s.logger.Info("cart submitted", "user_id", userID, "order_id", receipt.OrderID, "items", len(items))
		return receipt, nil
	})
	if err != nil && err == ctx.Err() {
		err = s.callerGone("submit order", userID, err)
	}
	if err != nil {
		return failed(err), err
	}

	receipt := v.(domain.OrderReceipt)
	return domain.SubmitResult{Success: true, OrderID: receipt.OrderID}, nil
}

// callerGone records that the caller stopped waiting on a remote call. The
// call itself may still be running for other callers.
func (s *Store) callerGone(op string, userID int64, err error) error {
	s.logger.Warn("caller stopped waiting", "op", op, "user_id", userID, "error", err)
	err = &domain.NetworkError{Op: op, Err: err}
	s.setError(err)
	return err
}

// mutate applies a change to a copy of the items. A change that leaves the
// items as they were is not a mutation: the version stays and subscribers
// are not notified.
func (s *Store) mutate(apply func([]domain.LineItem) []domain.LineItem) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = ""
	next := apply(domain.CloneItems(s.items))
	if sameItems(s.items, next) {
		return s.snapshotLocked()
	}
	s.items = next
	s.totals = domain.CalculateTotals(s.items)
	s.version++

	snap := s.snapshotLocked()
	for _, fn := range s.subscribers {
		fn(snap)
	}
	return snap
}

func (s *Store) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		Items:      domain.CloneItems(s.items),
		TotalItems: s.totals.TotalItems,
		TotalPrice: s.totals.TotalPrice,
	}
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *Store) currentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func sameItems(a, b []domain.LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ProductID != y.ProductID || x.Name != y.Name || x.ImageRef != y.ImageRef ||
			x.Quantity != y.Quantity || !x.UnitPrice.Equal(y.UnitPrice) {
			return false
		}
	}
	return true
}

func without(items []domain.LineItem, productID string) []domain.LineItem {
	out := items[:0]
	for _, item := range items {
		if item.ProductID != productID {
			out = append(out, item)
		}
	}
	return out
}

func failed(err error) domain.SubmitResult {
	return domain.SubmitResult{Success: false, Error: err.Error()}
}
