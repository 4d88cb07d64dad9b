package memory

import (
	"context"
	"sync"

	"github.com/aretw0/palette/pkg/domain"
)

// Store implements ports.RecencyStore in memory.
// Safe for concurrent use.
type Store struct {
	data []byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{}
}

// Save encodes entries, so the stored list behaves like a persisted one.
func (s *Store) Save(ctx context.Context, entries []domain.RecentUsage) error {
	data, err := domain.EncodeRecent(entries)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Load decodes the stored list.
func (s *Store) Load(ctx context.Context) ([]domain.RecentUsage, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	return domain.DecodeRecent(data)
}
