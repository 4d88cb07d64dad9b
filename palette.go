package palette

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/adapters/memory"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
	"github.com/aretw0/palette/pkg/recency"
	"github.com/aretw0/palette/pkg/registry"
	"github.com/aretw0/palette/pkg/runner"
)

// Version is the release of the palette engine.
const Version = "0.4.0"

// usageQueue bounds how many recency updates may wait for the store.
const usageQueue = 32

// Engine owns the registry, the recency tracker and the executor shared by
// every composer of one session. Create it with New and release it with Close.
type Engine struct {
	registry *registry.Registry
	loader   *registry.Loader
	tracker  *recency.Tracker
	executor *runner.Executor

	transcript ports.Transcript
	transport  ports.PromptTransport
	remote     ports.RemoteExecutor
	notifier   ports.Notifier
	store      ports.RecencyStore
	locker     ports.DistributedLocker
	hooks      domain.LifecycleHooks
	debounce   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	sources map[string]ports.ItemSource
	watches map[string]context.CancelFunc

	usage     chan string
	usageDone chan struct{}
	closed    bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithPromptTransport connects remote prompt providers.
// Without it, remote prompts can be listed from other sources but not resolved.
func WithPromptTransport(t ports.PromptTransport) Option {
	return func(e *Engine) {
		e.transport = t
	}
}

// WithRemoteExecutor sets the execution endpoint for commands without a local implementation.
func WithRemoteExecutor(r ports.RemoteExecutor) Option {
	return func(e *Engine) {
		e.remote = r
	}
}

// WithNotifier sets where transient notifications go. The default logs them.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithRecencyStore sets where the recently used list persists. The default is in memory.
func WithRecencyStore(s ports.RecencyStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker coordinates recency updates with other engines sharing the store.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithDebounce overrides the delay before argument suggestions are looked up.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// New creates an engine writing execution output into transcript.
func New(transcript ports.Transcript, opts ...Option) *Engine {
	e := &Engine{
		transcript: transcript,
		sources:    make(map[string]ports.ItemSource),
		watches:    make(map[string]context.CancelFunc),
		usage:      make(chan string, usageQueue),
		usageDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.notifier == nil {
		e.notifier = logNotifier{logger: e.logger}
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}

	e.registry = registry.NewRegistry(registry.WithLogger(e.logger))
	e.loader = registry.NewLoader(e.registry,
		registry.WithLoaderLogger(e.logger),
		registry.WithLoaderHooks(e.hooks),
	)

	trackerOpts := []recency.Option{
		recency.WithLogger(e.logger),
		recency.WithOnChange(e.registry.SetRecent),
	}
	if e.locker != nil {
		trackerOpts = append(trackerOpts, recency.WithLocker(e.locker))
	}
	e.tracker = recency.NewTracker(e.store, trackerOpts...)

	pipelineOpts := []runner.PipelineOption{runner.WithPipelineLogger(e.logger)}
	if e.remote != nil {
		pipelineOpts = append(pipelineOpts, runner.WithRemoteExecutor(e.remote))
	}
	e.executor = runner.NewExecutor(runner.NewPipeline(pipelineOpts...), transcript,
		runner.WithLogger(e.logger),
		runner.WithNotifier(e.notifier),
		runner.WithHooks(e.hooks),
	)

	go e.recordUsage()
	return e
}

// Start reads the persisted recency list. A failing store is reported and
// the engine starts with an empty list.
func (e *Engine) Start(ctx context.Context) {
	if err := e.tracker.Load(ctx); err != nil {
		e.notifier.Notify(ctx, domain.Notification{
			Level:   domain.NotifyWarn,
			Title:   "Recent commands unavailable",
			Message: err.Error(),
		})
	}
}

// AddSource loads src into the registry and keeps it for Refresh.
// Sources implementing ports.Watchable are reloaded on change until the source is removed.
// A failing load is reported as a notification and returned.
func (e *Engine) AddSource(ctx context.Context, src ports.ItemSource) error {
	id := src.SourceID()

	e.mu.Lock()
	if cancel, ok := e.watches[id]; ok {
		cancel()
		delete(e.watches, id)
	}
	e.sources[id] = src
	e.mu.Unlock()

	err := e.loader.Load(ctx, src)
	if err != nil {
		e.reportSource(ctx, id, err)
	}

	if _, ok := src.(ports.Watchable); ok {
		watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		onError := func(err error) { e.reportSource(watchCtx, id, err) }
		if werr := e.loader.Watch(watchCtx, src, onError); werr != nil {
			cancel()
			e.logger.Warn("Source does not support watching", "source", id, "error", werr)
		} else {
			e.mu.Lock()
			e.watches[id] = cancel
			e.mu.Unlock()
		}
	}
	return err
}

// RemoveSource drops a source and its items. It returns how many items were removed.
func (e *Engine) RemoveSource(id string) int {
	e.mu.Lock()
	delete(e.sources, id)
	if cancel, ok := e.watches[id]; ok {
		cancel()
		delete(e.watches, id)
	}
	e.mu.Unlock()
	return e.registry.Unregister(id)
}

// Refresh reloads every source in parallel. Failures are isolated per source,
// reported as notifications and returned.
func (e *Engine) Refresh(ctx context.Context) []*domain.SourceError {
	e.mu.Lock()
	sources := make([]ports.ItemSource, 0, len(e.sources))
	for _, src := range e.sources {
		sources = append(sources, src)
	}
	e.mu.Unlock()

	errs := e.loader.LoadAll(ctx, sources...)
	for _, serr := range errs {
		e.reportSource(ctx, serr.SourceID, serr.Err)
	}
	return errs
}

// Registry returns the item catalog.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Recent returns the recently used item IDs, most recent first.
func (e *Engine) Recent() []string {
	return e.tracker.IDs()
}

// Search ranks the registered items against query.
func (e *Engine) Search(query string) []registry.Match {
	return e.registry.Search(query)
}

// Executor returns the executor shared by all composers.
func (e *Engine) Executor() *runner.Executor {
	return e.executor
}

// MarkUsed records a use of id. The store is written in the background so
// callers on the keystroke path never wait on it.
func (e *Engine) MarkUsed(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.usage <- id:
	default:
		e.logger.Warn("Recency queue full, dropping update", "id", id)
	}
}

// Close aborts running executions, stops source watches and flushes pending
// recency updates.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for id, cancel := range e.watches {
		cancel()
		delete(e.watches, id)
	}
	close(e.usage)
	e.mu.Unlock()

	e.executor.AbortAll()
	<-e.usageDone
}

func (e *Engine) recordUsage() {
	defer close(e.usageDone)
	for id := range e.usage {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.tracker.MarkUsed(ctx, id); err != nil {
			e.logger.Debug("Recency update not persisted", "id", id, "error", err)
		}
		cancel()
	}
}

func (e *Engine) reportSource(ctx context.Context, id string, err error) {
	var serr *domain.SourceError
	msg := err.Error()
	if errors.As(err, &serr) {
		msg = serr.Err.Error()
	}
	e.notifier.Notify(ctx, domain.Notification{
		Level:   domain.NotifyWarn,
		Title:   fmt.Sprintf("Source %s failed to load", id),
		Message: msg,
	})
}

func (e *Engine) suggester(item domain.MenuItem) func(ctx context.Context, argument, partial string, values domain.ArgumentValues) ([]string, error) {
	payload, ok := item.Payload.(domain.RemotePayload)
	if !ok || e.transport == nil {
		return nil
	}
	return func(ctx context.Context, argument, partial string, values domain.ArgumentValues) ([]string, error) {
		return e.transport.CompleteArgument(ctx, domain.CompletionRequest{
			ServerID:     payload.ServerID,
			PromptName:   payload.Name,
			ArgumentName: argument,
			Value:        partial,
			ContextArgs:  values,
		})
	}
}

type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Notify(ctx context.Context, note domain.Notification) {
	level := slog.LevelInfo
	switch note.Level {
	case domain.NotifyWarn:
		level = slog.LevelWarn
	case domain.NotifyError:
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, note.Title, "message", note.Message)
}
