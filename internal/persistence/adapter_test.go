package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	err error
}

func (f failingStore) Load(context.Context) (*domain.Snapshot, error) { return nil, f.err }

func (f failingStore) Save(context.Context, domain.Snapshot) error { return f.err }

// gatedStore blocks the first Save until release is closed.
type gatedStore struct {
	mu      sync.Mutex
	saves   []domain.Snapshot
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Load(context.Context) (*domain.Snapshot, error) { return nil, ErrNotFound }

func (g *gatedStore) Save(_ context.Context, snap domain.Snapshot) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	g.mu.Lock()
	g.saves = append(g.saves, snap)
	g.mu.Unlock()
	return nil
}

// slowStore takes delay to save and gives up when ctx ends first.
type slowStore struct {
	delay   time.Duration
	started chan struct{}
	mu      sync.Mutex
	saves   int
}

func (s *slowStore) Load(context.Context) (*domain.Snapshot, error) { return nil, ErrNotFound }

func (s *slowStore) Save(ctx context.Context, _ domain.Snapshot) error {
	close(s.started)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return nil
}

func (s *slowStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (g *gatedStore) saved() []domain.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.Snapshot(nil), g.saves...)
}

func TestAdapter_RoundTrip(t *testing.T) {
	adapter := NewAdapter(NewMemoryStore(), time.Second, nil)
	ctx := context.Background()

	adapter.Save(ctx, testSnapshot())
	snap, ok := adapter.Load(ctx)

	require.True(t, ok)
	assert.Equal(t, testSnapshot().Items, snap.Items)
}

func TestAdapter_AbsentStorage(t *testing.T) {
	adapter := NewAdapter(NewMemoryStore(), time.Second, nil)

	snap, ok := adapter.Load(context.Background())

	assert.False(t, ok)
	assert.Empty(t, snap.Items)
}

func TestAdapter_CorruptStorageIsAbsent(t *testing.T) {
	mem := NewMemoryStore()
	mem.SetRaw([]byte("garbage"))
	adapter := NewAdapter(mem, time.Second, nil)

	snap, ok := adapter.Load(context.Background())

	assert.False(t, ok)
	assert.Empty(t, snap.Items)
}

func TestAdapter_SwallowsBackendErrors(t *testing.T) {
	adapter := NewAdapter(failingStore{err: errors.New("disk unavailable")}, 0, nil)

	_, ok := adapter.Load(context.Background())
	assert.False(t, ok)
	assert.NotPanics(t, func() { adapter.Save(context.Background(), testSnapshot()) })
}

func TestWriter_PersistsEnqueuedSnapshot(t *testing.T) {
	mem := NewMemoryStore()
	writer := NewWriter(NewAdapter(mem, time.Second, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		writer.Run(ctx)
		close(done)
	}()

	writer.Enqueue(testSnapshot())

	require.Eventually(t, func() bool { return mem.Raw() != nil }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestWriter_LatestSnapshotWins(t *testing.T) {
	gated := &gatedStore{started: make(chan struct{}), release: make(chan struct{})}
	writer := NewWriter(NewAdapter(gated, 0, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go writer.Run(ctx)

	writer.Enqueue(domain.NewSnapshot(nil))
	<-gated.started
	for qty := 1; qty <= 5; qty++ {
		writer.Enqueue(domain.NewSnapshot([]domain.LineItem{{ProductID: "A", Quantity: qty}}))
	}
	close(gated.release)

	require.Eventually(t, func() bool { return len(gated.saved()) == 2 }, time.Second, 10*time.Millisecond)
	saves := gated.saved()
	assert.Equal(t, 5, saves[1].TotalItems)
}

func TestWriter_FlushesOnShutdown(t *testing.T) {
	mem := NewMemoryStore()
	writer := NewWriter(NewAdapter(mem, time.Second, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer.Enqueue(testSnapshot())
	writer.Run(ctx)

	snap, err := mem.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Items, 2)
}

func TestWriter_ShutdownDoesNotAbortSaveInProgress(t *testing.T) {
	slow := &slowStore{delay: 50 * time.Millisecond, started: make(chan struct{})}
	writer := NewWriter(NewAdapter(slow, time.Second, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		writer.Run(ctx)
		close(done)
	}()

	writer.Enqueue(testSnapshot())
	<-slow.started
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, slow.count())
}
