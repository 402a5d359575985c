package persistence

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

// MemoryStore keeps the encoded snapshot in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*domain.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, ErrNotFound
	}

	snap, err := Decode(m.data)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (m *MemoryStore) Save(_ context.Context, snap domain.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// Raw returns the stored payload, nil if nothing was saved.
func (m *MemoryStore) Raw() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data...)
}

// SetRaw replaces the stored payload as-is.
func (m *MemoryStore) SetRaw(data []byte) {
	m.mu.Lock()
	m.data = append([]byte(nil), data...)
	m.mu.Unlock()
}
