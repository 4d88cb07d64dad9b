package recency

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
)

// DefaultLockKey is the distributed lock key guarding the shared list.
const DefaultLockKey = "recency"

// Tracker keeps the most-recently-used list and persists it on every use.
type Tracker struct {
	store ports.RecencyStore

	mu      sync.Mutex
	entries []domain.RecentUsage

	locker   ports.DistributedLocker
	lockKey  string
	lockTTL  time.Duration
	now      func() time.Time
	onChange func(ids []string)
	logger   *slog.Logger
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLocker enables distributed locking. Every update then re-reads the
// store under the lock and merges, so trackers sharing one store keep each
// other's entries.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(t *Tracker) {
		t.locker = locker
	}
}

// WithLockKey overrides DefaultLockKey.
func WithLockKey(key string) Option {
	return func(t *Tracker) {
		t.lockKey = key
	}
}

// WithLogger configures a logger for the Tracker.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithOnChange registers a callback receiving the ordered IDs after every change,
// typically Registry.SetRecent.
func WithOnChange(fn func(ids []string)) Option {
	return func(t *Tracker) {
		t.onChange = fn
	}
}

// NewTracker creates a tracker persisting through store.
func NewTracker(store ports.RecencyStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		lockKey: DefaultLockKey,
		lockTTL: 30 * time.Second,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load reads the persisted list. It is called once at start-up.
// A failing store leaves the tracker empty and usable.
func (t *Tracker) Load(ctx context.Context) error {
	entries, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("Failed to load recency list", "error", err)
		return fmt.Errorf("failed to load recency list: %w", err)
	}

	t.mu.Lock()
	t.entries = entries
	ids := idsOf(entries)
	t.mu.Unlock()

	t.changed(ids)
	return nil
}

// MarkUsed moves id to the front with a fresh timestamp and persists the list.
// The in-memory list is updated even when persisting fails.
func (t *Tracker) MarkUsed(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	t.mu.Lock()
	ts := t.now().UnixMilli()
	t.entries = touch(t.entries, id, ts)
	err := t.withLock(ctx, func(ctx context.Context) error {
		if t.locker != nil {
			shared, err := t.store.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to re-read recency list: %w", err)
			}
			merged := merge(t.entries, shared)
			if len(merged) == 0 || merged[0].ID != id {
				merged = touch(merged, id, ts)
			}
			t.entries = merged
		}
		return t.store.Save(ctx, t.entries)
	})
	ids := idsOf(t.entries)
	t.mu.Unlock()

	t.changed(ids)
	if err != nil {
		t.logger.Warn("Failed to persist recency list", "id", id, "error", err)
	}
	return err
}

// IDs returns the item IDs, most recent first.
func (t *Tracker) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return idsOf(t.entries)
}

// Entries returns a copy of the list.
func (t *Tracker) Entries() []domain.RecentUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.RecentUsage(nil), t.entries...)
}

// withLock must be called with mu held.
func (t *Tracker) withLock(ctx context.Context, fn func(context.Context) error) error {
	if t.locker != nil {
		unlock, err := t.locker.Lock(ctx, t.lockKey, t.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				t.logger.Warn("Failed to release distributed lock (will expire via TTL)", "key", t.lockKey, "err", err)
			}
		}()
	}
	return fn(ctx)
}

func (t *Tracker) changed(ids []string) {
	if t.onChange != nil {
		t.onChange(ids)
	}
}

// touch returns a new list with id at the front, capped at domain.MaxRecent.
// The timestamp never goes backwards relative to the current front.
func touch(entries []domain.RecentUsage, id string, ts int64) []domain.RecentUsage {
	if len(entries) > 0 && entries[0].Timestamp >= ts {
		ts = entries[0].Timestamp + 1
	}
	out := make([]domain.RecentUsage, 0, domain.MaxRecent)
	out = append(out, domain.RecentUsage{ID: id, Timestamp: ts})
	for _, e := range entries {
		if e.ID == id {
			continue
		}
		if len(out) == domain.MaxRecent {
			break
		}
		out = append(out, e)
	}
	return out
}

// merge unions two lists keeping the newest timestamp per id, newest first.
func merge(local, shared []domain.RecentUsage) []domain.RecentUsage {
	byID := make(map[string]domain.RecentUsage, len(local)+len(shared))
	for _, list := range [][]domain.RecentUsage{shared, local} {
		for _, e := range list {
			if cur, ok := byID[e.ID]; !ok || e.Timestamp > cur.Timestamp {
				byID[e.ID] = e
			}
		}
	}
	out := make([]domain.RecentUsage, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > domain.MaxRecent {
		out = out[:domain.MaxRecent]
	}
	return out
}

func idsOf(entries []domain.RecentUsage) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
