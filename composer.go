package palette

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/palette/internal/runtime"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/registry"
	"github.com/aretw0/palette/pkg/resolver"
	"github.com/aretw0/palette/pkg/runner"
	"github.com/aretw0/palette/pkg/trigger"
)

// ErrNoSelection is returned by Select when the overlay is closed or empty.
var ErrNoSelection = errors.New("no item selected")

// ErrNoSession is returned by argument operations when no item is collecting arguments.
var ErrNoSession = errors.New("no argument collection in progress")

// ErrComposerClosed is returned by operations on a closed composer.
var ErrComposerClosed = errors.New("composer closed")

// eventBuffer is the capacity of channels returned by Events.
const eventBuffer = 64

// Composer is one input box. It owns the overlay, at most one resolution
// session and its own abort domain: every new action cancels whatever the
// previous action of this composer was still running.
type Composer struct {
	engine *Engine
	aborts *runner.AbortManager
	logger *slog.Logger

	mu      sync.Mutex
	text    string
	caret   int
	overlay trigger.Overlay[registry.Match]
	session *resolver.Session
	phase   Phase
	preview *Preview
	handle  *runner.Handle
	closed  bool

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	unsubscribe func()
}

// NewComposer creates a composer whose actions are bound to ctx.
// Cancelling ctx aborts its running execution.
func (e *Engine) NewComposer(ctx context.Context) *Composer {
	c := &Composer{
		engine: e,
		aborts: runner.NewAbortManager(ctx),
		logger: e.logger,
		phase:  PhaseIdle,
		subs:   make(map[int]func(Event)),
	}
	c.unsubscribe = e.registry.Subscribe(c.refreshResults)
	return c
}

// Phase returns the current step of the resolution and execution cycle.
func (c *Composer) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Text returns the buffer and the caret.
func (c *Composer) Text() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.caret
}

// Input updates the buffer and the caret after a keystroke.
// It opens, refreshes or closes the overlay synchronously and never blocks on I/O.
func (c *Composer) Input(text string, caret int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.text = text
	c.caret = caret

	var events []Event
	if c.session == nil {
		tok, active := trigger.Detect(text, caret)
		switch {
		case active:
			c.overlay.Activate(tok, c.engine.registry.Search(tok.Query))
			if !c.phase.Busy() {
				events = c.setPhase(PhaseTokenActive, Event{})
			}
		case c.overlay.Open():
			c.overlay.Close()
			if c.phase == PhaseTokenActive {
				events = c.setPhase(PhaseIdle, Event{})
			}
		}
	}
	c.mu.Unlock()
	c.publish(events)
}

// Results returns the overlay entries, best first. It is empty while the overlay is closed.
func (c *Composer) Results() []registry.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.overlay.Open() {
		return nil
	}
	return append([]registry.Match(nil), c.overlay.Results()...)
}

// Selected returns the highlighted overlay entry.
func (c *Composer) Selected() (registry.Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlay.Selected()
}

// Move shifts the overlay selection by delta, wrapping around the results.
func (c *Composer) Move(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlay.Move(delta)
}

// CloseOverlay dismisses the overlay without changing the buffer.
func (c *Composer) CloseOverlay() {
	c.mu.Lock()
	var events []Event
	if c.overlay.Open() {
		c.overlay.Close()
		if c.phase == PhaseTokenActive {
			events = c.setPhase(PhaseIdle, Event{})
		}
	}
	c.mu.Unlock()
	c.publish(events)
}

// Select commits the highlighted overlay entry.
//
// An item without arguments resolves at once: a command starts executing and
// its token is removed from the buffer, a template renders into the preview,
// a remote prompt is fetched in the background. An item with arguments is
// replaced by its canonical token and starts argument collection.
func (c *Composer) Select(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrComposerClosed
	}
	match, ok := c.overlay.Selected()
	if !ok || !c.overlay.Open() {
		c.mu.Unlock()
		return ErrNoSelection
	}
	item := match.Item
	tok := c.overlay.Token()
	c.overlay.Close()

	actx := c.next()
	insert := ""
	if item.NeedsArguments() {
		insert = trigger.Canonical(item.ID)
	}
	c.text, c.caret = trigger.Replace(c.text, tok, insert)
	c.mu.Unlock()

	c.engine.MarkUsed(item.ID)
	c.fireSelected(ctx, item)

	if item.NeedsArguments() {
		return c.collect(item, nil)
	}
	return c.resolve(ctx, actx, item, domain.ArgumentValues{}, true)
}

// Session returns the live resolution session, or nil.
func (c *Composer) Session() *resolver.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetArgument sets the value of the current argument and schedules a
// debounced suggestion lookup for it.
func (c *Composer) SetArgument(ctx context.Context, value string) error {
	s := c.Session()
	if s == nil {
		return ErrNoSession
	}
	s.SetValue(value)
	s.RequestSuggestions(ctx)
	return nil
}

// Submit validates the collected arguments and resolves the item.
// Missing required arguments reject the submission without side effects and
// collection continues. Commands start executing, templates render into the
// preview and remote prompts are fetched before Submit returns.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	events := c.setPhase(PhaseValidating, Event{ItemID: s.Item().ID})
	c.mu.Unlock()
	c.publish(events)

	values, err := s.Submit()
	if err != nil {
		var missing *domain.MissingArgumentsError
		c.mu.Lock()
		if errors.As(err, &missing) {
			events = c.setPhase(PhaseRejected, Event{ItemID: s.Item().ID, Err: err})
			events = append(events, c.setPhase(PhaseArgsCollecting, Event{ItemID: s.Item().ID})...)
		} else {
			events = c.setPhase(PhaseArgsCollecting, Event{ItemID: s.Item().ID, Err: err})
		}
		c.mu.Unlock()
		c.publish(events)
		return err
	}

	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	actx := c.next()
	c.mu.Unlock()
	return c.resolve(ctx, actx, s.Item(), values, false)
}

// CancelSession discards the live resolution session. The buffer is left as it is.
func (c *Composer) CancelSession() {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return
	}
	s.Cancel()
	c.session = nil
	events := c.setPhase(PhaseIdle, Event{ItemID: s.Item().ID})
	c.mu.Unlock()
	c.publish(events)
}

// Execute runs item with args, cancelling this composer's previous action.
// Output streams into a new assistant message in the background.
func (c *Composer) Execute(ctx context.Context, item domain.MenuItem, args domain.ArgumentValues) (*runner.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrComposerClosed
	}
	actx := c.next()
	c.mu.Unlock()
	return c.execute(ctx, actx, item, args)
}

// Abort cancels the running action of this composer. An aborted execution
// finalizes its message as aborted and reports no error.
func (c *Composer) Abort() {
	c.aborts.Abort()
}

// Handle returns the execution started by the latest action, or nil.
func (c *Composer) Handle() *runner.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Preview returns the latest resolved prompt.
func (c *Composer) Preview() (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return Preview{}, false
	}
	return *c.preview, true
}

// Expansion is a canonical token found in a buffer together with its item.
type Expansion struct {
	trigger.CanonicalSpan
	Item domain.MenuItem
}

// Expand finds the canonical tokens in text and resolves them against the
// registry. Tokens naming unknown items are skipped.
func (c *Composer) Expand(text string) []Expansion {
	spans := trigger.FindCanonical(text)
	out := make([]Expansion, 0, len(spans))
	for _, span := range spans {
		item, ok := c.engine.registry.Get(span.ID)
		if !ok {
			continue
		}
		out = append(out, Expansion{CanonicalSpan: span, Item: item})
	}
	return out
}

// Resume starts argument collection for an expanded token, pre-filled with values.
func (c *Composer) Resume(x Expansion, values domain.ArgumentValues) error {
	if !x.Item.NeedsArguments() {
		return fmt.Errorf("%w: %s takes no arguments", domain.ErrInvalidItem, x.Item.ID)
	}
	c.mu.Lock()
	c.next()
	c.mu.Unlock()
	return c.collect(x.Item, values)
}

// Subscribe registers fn for every phase change. Callbacks run without
// composer locks held. The returned function unregisters fn.
func (c *Composer) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Events streams phase changes until ctx is done. Slow readers lose events
// once the buffer is full.
func (c *Composer) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event, eventBuffer)
	var mu sync.Mutex
	done := false

	unsubscribe := c.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if done {
			return
		}
		select {
		case ch <- ev:
		default:
			c.logger.Warn("Dropping composer event", "phase", ev.Phase)
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		done = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}

// Close cancels the session and the running action and detaches from the registry.
func (c *Composer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.session != nil {
		c.session.Cancel()
		c.session = nil
	}
	c.overlay.Close()
	c.mu.Unlock()

	c.unsubscribe()
	c.aborts.Stop()
}

func (c *Composer) collect(item domain.MenuItem, values domain.ArgumentValues) error {
	opts := []resolver.Option{
		resolver.WithLogger(c.logger),
		resolver.WithValues(values),
	}
	if c.engine.debounce > 0 {
		opts = append(opts, resolver.WithDebounce(c.engine.debounce))
	}
	if suggest := c.engine.suggester(item); suggest != nil {
		opts = append(opts, resolver.WithSuggest(suggest))
	}

	s, err := resolver.NewSession(item, opts...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.Cancel()
	}
	c.session = s
	c.preview = nil
	events := c.setPhase(PhaseArgsCollecting, Event{ItemID: item.ID})
	c.mu.Unlock()
	c.publish(events)
	return nil
}

// resolve dispatches a fully resolved item on its origin.
// async moves remote fetches off the caller's goroutine.
func (c *Composer) resolve(ctx, actx context.Context, item domain.MenuItem, values domain.ArgumentValues, async bool) error {
	switch p := item.Payload.(type) {
	case domain.CommandPayload:
		_, err := c.execute(ctx, actx, item, values)
		return err
	case domain.TemplatePayload:
		c.setPreview(actx, &Preview{
			ItemID:      item.ID,
			Origin:      item.Origin,
			Description: item.Description,
			Values:      values,
			Messages:    runtime.Render(p.Messages, values),
		}, PhaseResolvedTemplate)
		return nil
	case domain.RemotePayload:
		c.mu.Lock()
		events := c.setPhase(PhaseValidating, Event{ItemID: item.ID})
		c.mu.Unlock()
		c.publish(events)

		if async {
			go func() { _ = c.fetch(actx, item, p, values) }()
			return nil
		}
		fctx, cancel := context.WithCancel(actx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return c.fetch(fctx, item, p, values)
	}
	return fmt.Errorf("%w: %s has no payload", domain.ErrInvalidItem, item.ID)
}

func (c *Composer) fetch(ctx context.Context, item domain.MenuItem, p domain.RemotePayload, values domain.ArgumentValues) error {
	if c.engine.transport == nil {
		err := fmt.Errorf("%w: %s", domain.ErrServerNotFound, p.ServerID)
		c.fail(ctx, item, err)
		return err
	}

	res, err := c.engine.transport.FetchPromptMessages(ctx, p.ServerID, p.Name, values)
	if err != nil {
		if ctx.Err() != nil {
			c.toIdle(item.ID)
			return err
		}
		err = fmt.Errorf("failed to fetch prompt %s: %w", item.Trigger, err)
		c.fail(ctx, item, err)
		return err
	}

	description := res.Description
	if description == "" {
		description = item.Description
	}
	if !c.setPreview(ctx, &Preview{
		ItemID:      item.ID,
		Origin:      item.Origin,
		Description: description,
		Values:      values,
		Messages:    res.Messages,
	}, PhaseResolvedRemote) {
		c.toIdle(item.ID)
		return ctx.Err()
	}
	return nil
}

func (c *Composer) execute(ctx, actx context.Context, item domain.MenuItem, args domain.ArgumentValues) (*runner.Handle, error) {
	c.mu.Lock()
	events := c.setPhase(PhaseExecuting, Event{ItemID: item.ID})
	c.mu.Unlock()
	c.publish(events)

	h, err := c.engine.executor.Execute(actx, item, args)
	if err != nil {
		c.fail(ctx, item, err)
		return nil, err
	}

	c.mu.Lock()
	c.handle = h
	events = c.setPhase(PhaseStreaming, Event{ItemID: item.ID, TargetID: h.TargetID})
	c.mu.Unlock()
	c.publish(events)

	go c.await(h)
	return h, nil
}

// await moves the composer to the terminal phase of h unless a newer action took over.
func (c *Composer) await(h *runner.Handle) {
	<-h.Done()
	out := h.Outcome()

	c.mu.Lock()
	if c.handle != h {
		c.mu.Unlock()
		return
	}
	base := Event{ItemID: h.ItemID, TargetID: h.TargetID, Err: out.Err}
	events := c.setPhase(phaseFor(out.Status), base)
	events = append(events, c.setPhase(PhaseIdle, Event{ItemID: h.ItemID, TargetID: h.TargetID})...)
	c.mu.Unlock()
	c.publish(events)
}

// fail reports an action that never reached the transcript.
func (c *Composer) fail(ctx context.Context, item domain.MenuItem, err error) {
	c.engine.notifier.Notify(context.WithoutCancel(ctx), domain.Notification{
		Level:   domain.NotifyError,
		Title:   "/" + item.Trigger + " failed",
		Message: err.Error(),
	})

	c.mu.Lock()
	events := c.setPhase(PhaseErrored, Event{ItemID: item.ID, Err: err})
	events = append(events, c.setPhase(PhaseIdle, Event{ItemID: item.ID})...)
	c.mu.Unlock()
	c.publish(events)
}

// toIdle ends a cancelled prompt fetch unless a newer action moved on.
func (c *Composer) toIdle(itemID string) {
	c.mu.Lock()
	var events []Event
	if c.phase == PhaseValidating {
		events = c.setPhase(PhaseIdle, Event{ItemID: itemID})
	}
	c.mu.Unlock()
	c.publish(events)
}

// setPreview reports false, leaving the composer untouched, when the action
// behind ctx was aborted or replaced.
func (c *Composer) setPreview(ctx context.Context, p *Preview, phase Phase) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	c.preview = p
	events := c.setPhase(phase, Event{ItemID: p.ItemID})
	c.mu.Unlock()
	c.publish(events)
	return true
}

// next arms the abort domain for a new action and forgets the results of the previous one.
// mu must be held.
func (c *Composer) next() context.Context {
	c.handle = nil
	c.preview = nil
	return c.aborts.Next()
}

// setPhase records a transition and returns the event to publish once mu is released.
// mu must be held.
func (c *Composer) setPhase(p Phase, ev Event) []Event {
	if c.phase == p {
		return nil
	}
	ev.Previous = c.phase
	ev.Phase = p
	c.phase = p
	return []Event{ev}
}

func (c *Composer) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	c.subMu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, ev := range events {
		c.logger.Debug("Composer phase changed", "from", ev.Previous, "to", ev.Phase, "item", ev.ItemID)
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func (c *Composer) fireSelected(ctx context.Context, item domain.MenuItem) {
	if c.engine.hooks.OnItemSelected == nil {
		return
	}
	c.engine.hooks.OnItemSelected(ctx, &domain.SelectionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventItemSelected},
		ItemID:    item.ID,
		Origin:    item.Origin,
	})
}

// refreshResults re-runs the overlay query after the registry changed.
func (c *Composer) refreshResults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.overlay.Open() {
		return
	}
	tok := c.overlay.Token()
	c.overlay.Activate(tok, c.engine.registry.Search(tok.Query))
}
