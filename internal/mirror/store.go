package mirror

import (
	"context"
	"sync"

	"storefront/internal/domain"
)

// Store holds the latest LocalCartMirror per cart. Get returns an error
// matching domain.ErrNotFound when nothing is stored.
type Store interface {
	Get(ctx context.Context, cartID string) (*domain.LocalCartMirror, error)
	Put(ctx context.Context, m domain.LocalCartMirror) error
	Delete(ctx context.Context, cartID string) error
}

// MemoryStore is the in-process Store used when no Redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	mirrors map[string]domain.LocalCartMirror
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mirrors: make(map[string]domain.LocalCartMirror)}
}

func (s *MemoryStore) Get(_ context.Context, cartID string) (*domain.LocalCartMirror, error) {
	s.mu.RLock()
	m, ok := s.mirrors[cartID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (s *MemoryStore) Put(_ context.Context, m domain.LocalCartMirror) error {
	m.Items = append([]domain.MirrorItem(nil), m.Items...)
	s.mu.Lock()
	s.mirrors[m.CartID] = m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, cartID string) error {
	s.mu.Lock()
	delete(s.mirrors, cartID)
	s.mu.Unlock()
	return nil
}
