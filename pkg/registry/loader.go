package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// Loader fills a Registry from item sources.
// Sources load in parallel and fail independently: a failing source keeps
// whatever items it registered before and does not affect the others.
type Loader struct {
	registry *Registry
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	limit    int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger used by the loader.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithLoaderHooks sets lifecycle hooks fired after each source load.
func WithLoaderHooks(hooks domain.LifecycleHooks) LoaderOption {
	return func(l *Loader) {
		l.hooks = hooks
	}
}

// WithConcurrency caps how many sources load at once. Zero or less means unlimited.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		l.limit = n
	}
}

// NewLoader creates a loader that writes into reg.
func NewLoader(reg *Registry, opts ...LoaderOption) *Loader {
	l := &Loader{
		registry: reg,
		logger:   logging.NewNop(),
		limit:    8,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAll loads every source and returns the failures, one per failing source.
func (l *Loader) LoadAll(ctx context.Context, sources ...ports.ItemSource) []*domain.SourceError {
	var (
		mu       sync.Mutex
		failures []*domain.SourceError
		g        errgroup.Group
	)
	if l.limit > 0 {
		g.SetLimit(l.limit)
	}

	for _, src := range sources {
		g.Go(func() error {
			if err := l.Load(ctx, src); err != nil {
				mu.Lock()
				failures = append(failures, &domain.SourceError{SourceID: src.SourceID(), Err: err})
				mu.Unlock()
			}
			// Failures are collected, never propagated, so the group never cancels siblings.
			return nil
		})
	}
	_ = g.Wait()

	return failures
}

// Load lists one source and atomically replaces its item set.
func (l *Loader) Load(ctx context.Context, src ports.ItemSource) error {
	id := src.SourceID()
	items, err := src.ListItems(ctx)
	if err == nil {
		err = l.registry.ReplaceSource(id, items)
	}

	if l.hooks.OnSourceLoaded != nil {
		l.hooks.OnSourceLoaded(ctx, &domain.SourceEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSourceLoaded},
			SourceID:  id,
			Items:     len(items),
			Err:       err,
		})
	}

	if err != nil {
		l.logger.Warn("Source failed to load", "source", id, "error", err)
		return err
	}
	l.logger.Debug("Source loaded", "source", id, "items", len(items))
	return nil
}

// Watch reloads src every time it signals a change, until ctx is done.
// Reload failures are reported through onError and the previous items stay registered.
func (l *Loader) Watch(ctx context.Context, src ports.ItemSource, onError func(error)) error {
	w, ok := src.(ports.Watchable)
	if !ok {
		return nil
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if err := l.Load(ctx, src); err != nil && onError != nil {
					onError(&domain.SourceError{SourceID: src.SourceID(), Err: err})
				}
			}
		}
	}()
	return nil
}
