package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/palette/pkg/domain"
)

// Source implements ports.ItemSource over a fixed, replaceable item list.
// It is how hosts register their local commands.
type Source struct {
	id    string
	mu    sync.RWMutex
	items []domain.MenuItem
}

// NewSource creates a source named id holding items.
func NewSource(id string, items ...domain.MenuItem) *Source {
	return &Source{id: id, items: items}
}

// NewCommandSource builds a source from name to function pairs, the common case for host commands.
func NewCommandSource(id string, commands map[string]domain.RunFunc) (*Source, error) {
	items := make([]domain.MenuItem, 0, len(commands))
	for name, run := range commands {
		if run == nil {
			return nil, fmt.Errorf("command %s has no implementation", name)
		}
		items = append(items, domain.NewCommand(name, "", run))
	}
	return NewSource(id, items...), nil
}

// SourceID implements ports.ItemSource.
func (s *Source) SourceID() string {
	return s.id
}

// ListItems returns a copy of the current items.
func (s *Source) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MenuItem(nil), s.items...), nil
}

// Set replaces the items. Callers reload the source to publish them.
func (s *Source) Set(items ...domain.MenuItem) {
	s.mu.Lock()
	s.items = append([]domain.MenuItem(nil), items...)
	s.mu.Unlock()
}
