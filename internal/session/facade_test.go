package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/fjod/go_cart/cart-sync/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu         sync.Mutex
	fetches    []int64
	submitters []int64
	submitted  [][]domain.LineItem
	fetchErr   error
	submitErr  error
	fetchBlock chan struct{}
}

func (f *fakeRemote) FetchServerCart(ctx context.Context, userID int64) ([]domain.RemoteCart, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, userID)
	block := f.fetchBlock
	err := f.fetchErr
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &domain.NetworkError{Op: "fetch server cart", Err: ctx.Err()}
		}
	}
	return nil, err
}

func (f *fakeRemote) SubmitOrder(_ context.Context, userID int64, items []domain.LineItem) (domain.OrderReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return domain.OrderReceipt{}, f.submitErr
	}
	f.submitters = append(f.submitters, userID)
	f.submitted = append(f.submitted, items)
	return domain.OrderReceipt{OrderID: int64(len(f.submitted))}, nil
}

func (f *fakeRemote) fetchCalls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.fetches...)
}

func setupFacade(t *testing.T, remote *fakeRemote, opts ...Option) *Facade {
	t.Helper()
	f := New(store.New(remote), opts...)
	t.Cleanup(f.Close)
	return f
}

func shirt() domain.CatalogItem {
	return domain.CatalogItem{ProductID: "1", Name: "Shirt", UnitPrice: decimal.NewFromInt(10)}
}

func TestObserveIdentity_SameUserSyncsOnce(t *testing.T) {
	remote := &fakeRemote{}
	f := setupFacade(t, remote)

	for i := 0; i < 5; i++ {
		f.ObserveIdentity(7)
	}
	f.Wait()

	assert.Equal(t, []int64{7}, remote.fetchCalls())
	assert.False(t, f.store.SyncState().LastSyncedAt.IsZero())
}

func TestObserveIdentity_SwitchUserSyncsAgain(t *testing.T) {
	remote := &fakeRemote{}
	f := setupFacade(t, remote)

	f.ObserveIdentity(7)
	f.ObserveIdentity(8)
	f.Wait()

	assert.ElementsMatch(t, []int64{7, 8}, remote.fetchCalls())
}

func TestObserveIdentity_LogoutNeverSyncs(t *testing.T) {
	remote := &fakeRemote{}
	f := setupFacade(t, remote)

	f.ObserveIdentity(0)
	f.ObserveIdentity(7)
	f.ObserveIdentity(0)
	f.ObserveIdentity(-3)
	f.Wait()

	assert.Equal(t, []int64{7}, remote.fetchCalls())
	assert.Equal(t, int64(0), f.Identity())
}

func TestObserveIdentity_SyncFailureRecorded(t *testing.T) {
	remote := &fakeRemote{fetchErr: &domain.NetworkError{Op: "fetch server cart", StatusCode: 503}}
	f := setupFacade(t, remote)
	f.AddToCart(shirt(), 2)

	f.ObserveIdentity(7)
	f.Wait()

	view := f.View()
	assert.Contains(t, view.Error, "503")
	assert.Len(t, view.Items, 1)
	assert.False(t, view.IsSyncing)
}

func TestObserveIdentity_SyncBoundedByTimeout(t *testing.T) {
	remote := &fakeRemote{fetchBlock: make(chan struct{})}
	f := setupFacade(t, remote, WithSyncTimeout(20*time.Millisecond))

	f.ObserveIdentity(7)
	f.Wait()

	assert.Contains(t, f.View().Error, context.DeadlineExceeded.Error())
}

func TestView_ReflectsMutations(t *testing.T) {
	f := setupFacade(t, &fakeRemote{})

	f.AddToCart(shirt(), 2)
	f.AddToCart(domain.CatalogItem{ProductID: "2", Name: "Hat", UnitPrice: decimal.NewFromInt(5)}, 1)
	view := f.UpdateQuantity("1", 5)

	assert.Equal(t, 6, view.TotalItems)
	assert.True(t, decimal.NewFromInt(55).Equal(view.TotalPrice))

	view = f.RemoveFromCart("2")
	assert.Equal(t, 5, view.TotalItems)

	view = f.ClearCart()
	assert.Empty(t, view.Items)
	assert.True(t, view.TotalPrice.IsZero())
}

func TestSubmitCart_UsesCurrentIdentity(t *testing.T) {
	remote := &fakeRemote{}
	f := setupFacade(t, remote)
	f.AddToCart(shirt(), 1)

	result, err := f.SubmitCart(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.False(t, result.Success)
	assert.Len(t, f.View().Items, 1)

	f.ObserveIdentity(9)
	f.Wait()
	result, err = f.SubmitCart(context.Background())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), result.OrderID)
	assert.Empty(t, f.View().Items)
}

func TestSubmitCartAs_IgnoresObservedIdentity(t *testing.T) {
	remote := &fakeRemote{}
	f := setupFacade(t, remote)
	f.ObserveIdentity(2)
	f.Wait()
	f.AddToCart(shirt(), 1)

	result, err := f.SubmitCartAs(context.Background(), 1)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(2), f.Identity())
	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, []int64{1}, remote.submitters)
}

func TestSubmitCartAs_RequiresIdentity(t *testing.T) {
	f := setupFacade(t, &fakeRemote{})
	f.ObserveIdentity(2)
	f.Wait()
	f.AddToCart(shirt(), 1)

	_, err := f.SubmitCartAs(context.Background(), 0)

	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.Len(t, f.View().Items, 1)
}

func TestSubmitCart_FailureKeepsItems(t *testing.T) {
	remote := &fakeRemote{submitErr: errors.New("connection reset")}
	f := setupFacade(t, remote)
	f.ObserveIdentity(9)
	f.Wait()
	f.AddToCart(shirt(), 3)

	result, err := f.SubmitCart(context.Background())

	require.Error(t, err)
	assert.False(t, result.Success)
	view := f.View()
	assert.Equal(t, 3, view.TotalItems)
	assert.Equal(t, "connection reset", view.Error)
	assert.False(t, view.IsLoading)
}
