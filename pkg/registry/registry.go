package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
)

// Registry manages the available menu items.
// Mutations are atomic to readers: a concurrent Search sees a source's
// old item set or its new one, never a mix.
type Registry struct {
	mu       sync.RWMutex
	items    map[string]domain.MenuItem
	bySource map[string]map[string]struct{}
	recent   []string

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int

	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		items:    make(map[string]domain.MenuItem),
		bySource: make(map[string]map[string]struct{}),
		subs:     make(map[int]func()),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an item to the registry.
// If an item with the same ID exists, it is overwritten.
func (r *Registry) Register(item domain.MenuItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.put(item)
	r.mu.Unlock()

	r.notify()
	return nil
}

// Unregister removes every item loaded from sourceID and returns how many were removed.
func (r *Registry) Unregister(sourceID string) int {
	r.mu.Lock()
	n := r.dropSource(sourceID)
	r.mu.Unlock()

	if n > 0 {
		r.notify()
	}
	return n
}

// ReplaceSource swaps the full item set of sourceID in one step.
// Every item is validated first; on error the registry is left untouched.
func (r *Registry) ReplaceSource(sourceID string, items []domain.MenuItem) error {
	staged := make([]domain.MenuItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("source %s: %w", sourceID, err)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("source %s: %w: duplicate id %s", sourceID, domain.ErrInvalidItem, item.ID)
		}
		seen[item.ID] = struct{}{}
		item.SourceID = sourceID
		staged = append(staged, item)
	}

	r.mu.Lock()
	r.dropSource(sourceID)
	for _, item := range staged {
		r.put(item)
	}
	r.mu.Unlock()

	r.logger.Debug("Source replaced", "source", sourceID, "items", len(staged))
	r.notify()
	return nil
}

// Get returns the item registered under id.
func (r *Registry) Get(id string) (domain.MenuItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	return item, ok
}

// FindByTrigger returns the item whose trigger equals trigger.
// When several sources register the same trigger, the lowest ID wins.
func (r *Registry) FindByTrigger(trigger string) (domain.MenuItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found domain.MenuItem
		ok    bool
	)
	for _, item := range r.items {
		if item.Trigger != trigger {
			continue
		}
		if !ok || item.ID < found.ID {
			found, ok = item, true
		}
	}
	return found, ok
}

// List returns every item sorted by ID.
func (r *Registry) List() []domain.MenuItem {
	r.mu.RLock()
	out := make([]domain.MenuItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sources returns the IDs of the sources that currently contribute items.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.bySource))
	for id := range r.bySource {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// SetRecent sets the recency order used when the query is empty.
func (r *Registry) SetRecent(ids []string) {
	r.mu.Lock()
	r.recent = append([]string(nil), ids...)
	r.mu.Unlock()

	r.notify()
}

// Subscribe registers fn to be called after every change.
// The returned function removes the subscription.
func (r *Registry) Subscribe(fn func()) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify() {
	r.subMu.Lock()
	fns := make([]func(), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// put must be called with mu held.
func (r *Registry) put(item domain.MenuItem) {
	if prev, ok := r.items[item.ID]; ok && prev.SourceID != item.SourceID {
		if ids := r.bySource[prev.SourceID]; ids != nil {
			delete(ids, item.ID)
			if len(ids) == 0 {
				delete(r.bySource, prev.SourceID)
			}
		}
		r.logger.Debug("Item overridden", "id", item.ID, "from", prev.SourceID, "to", item.SourceID)
	}
	r.items[item.ID] = item

	ids := r.bySource[item.SourceID]
	if ids == nil {
		ids = make(map[string]struct{})
		r.bySource[item.SourceID] = ids
	}
	ids[item.ID] = struct{}{}
}

// dropSource must be called with mu held.
func (r *Registry) dropSource(sourceID string) int {
	ids := r.bySource[sourceID]
	for id := range ids {
		delete(r.items, id)
	}
	delete(r.bySource, sourceID)
	return len(ids)
}

func lower(s string) string {
	return strings.ToLower(s)
}
