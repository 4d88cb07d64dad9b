package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
	"github.com/google/uuid"
)

// Executor runs items and streams their output into the transcript.
// Executions into distinct target messages run concurrently; a target
// message never has more than one execution in flight.
type Executor struct {
	pipeline   *Pipeline
	transcript ports.Transcript
	notifier   ports.Notifier
	hooks      domain.LifecycleHooks
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[string]*Handle
}

// NewExecutor creates an executor.
func NewExecutor(pipeline *Pipeline, transcript ports.Transcript, opts ...Option) *Executor {
	e := &Executor{
		pipeline:   pipeline,
		transcript: transcript,
		logger:     logging.NewNop(),
		inflight:   make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute allocates a new assistant message and streams item's output into it.
// It returns once the execution is registered; the stream is piped in the background.
func (e *Executor) Execute(ctx context.Context, item domain.MenuItem, args domain.ArgumentValues) (*Handle, error) {
	if err := e.pipeline.Check(item); err != nil {
		return nil, err
	}
	clean, err := SanitizeArguments(args)
	if err != nil {
		return nil, err
	}

	targetID, err := e.transcript.CreateMessage(ctx, domain.RoleAssistant)
	if err != nil {
		return nil, fmt.Errorf("failed to create target message: %w", err)
	}
	return e.start(ctx, targetID, item, clean)
}

// ExecuteInto streams item's output into an existing message, e.g. to re-run a command in place.
// It fails with domain.ErrTargetBusy while another execution writes to targetID.
func (e *Executor) ExecuteInto(ctx context.Context, targetID string, item domain.MenuItem, args domain.ArgumentValues) (*Handle, error) {
	if err := e.pipeline.Check(item); err != nil {
		return nil, err
	}
	clean, err := SanitizeArguments(args)
	if err != nil {
		return nil, err
	}
	return e.start(ctx, targetID, item, clean)
}

// InFlight returns the target IDs with a running execution.
func (e *Executor) InFlight() []string {
	e.mu.Lock()
	out := make([]string, 0, len(e.inflight))
	for id := range e.inflight {
		out = append(out, id)
	}
	e.mu.Unlock()

	sort.Strings(out)
	return out
}

// AbortAll cancels every running execution.
func (e *Executor) AbortAll() {
	e.mu.Lock()
	handles := make([]*Handle, 0, len(e.inflight))
	for _, h := range e.inflight {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		h.Abort()
	}
}

func (e *Executor) start(ctx context.Context, targetID string, item domain.MenuItem, args domain.ArgumentValues) (*Handle, error) {
	execCtx, cancel := context.WithCancel(ctx)
	h := newHandle(uuid.NewString(), targetID, item.ID, cancel)

	e.mu.Lock()
	if _, busy := e.inflight[targetID]; busy {
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: %s", domain.ErrTargetBusy, targetID)
	}
	e.inflight[targetID] = h
	e.mu.Unlock()

	e.fire(ctx, e.hooks.OnExecutionStart, h, item, domain.EventExecutionStart, Outcome{Status: domain.StatusStreaming})
	e.logger.Debug("Execution started", "execution", h.ID, "item", item.ID, "target", targetID)

	go e.run(execCtx, h, item, args)
	return h, nil
}

func (e *Executor) run(ctx context.Context, h *Handle, item domain.MenuItem, args domain.ArgumentValues) {
	piper := NewPiper(e.transcript, e.notifier, e.logger)
	if e.hooks.OnExecutionChunk != nil {
		piper.onChunk = func(ctx context.Context, n int) {
			e.hooks.OnExecutionChunk(ctx, &domain.ExecutionEvent{
				EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventExecutionChunk},
				ExecutionID: h.ID,
				TargetID:    h.TargetID,
				ItemID:      item.ID,
				Origin:      item.Origin,
				Bytes:       n,
			})
		}
	}

	label := "/" + item.Trigger
	var outcome Outcome
	stream, err := e.pipeline.Open(ctx, item, args)
	switch {
	case err == nil:
		outcome = piper.Pipe(ctx, h.TargetID, label, stream)
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		outcome = piper.Abort(context.WithoutCancel(ctx), h.TargetID)
	default:
		outcome = piper.Fail(context.WithoutCancel(ctx), h.TargetID, label, err)
	}

	e.mu.Lock()
	delete(e.inflight, h.TargetID)
	e.mu.Unlock()

	e.fire(context.WithoutCancel(ctx), e.hooks.OnExecutionEnd, h, item, domain.EventExecutionEnd, outcome)
	e.logger.Debug("Execution ended", "execution", h.ID, "status", outcome.Status, "bytes", outcome.Bytes)
	h.finish(outcome)
}

func (e *Executor) fire(ctx context.Context, hook func(context.Context, *domain.ExecutionEvent), h *Handle, item domain.MenuItem, typ domain.EventType, o Outcome) {
	if hook == nil {
		return
	}
	ev := &domain.ExecutionEvent{
		EventBase:   domain.EventBase{Timestamp: time.Now(), Type: typ},
		ExecutionID: h.ID,
		TargetID:    h.TargetID,
		ItemID:      item.ID,
		Origin:      item.Origin,
		Bytes:       o.Bytes,
		Status:      o.Status,
		Err:         o.Err,
	}
	if typ == domain.EventExecutionEnd {
		ev.Duration = time.Since(h.Started)
	}
	hook(ctx, ev)
}
