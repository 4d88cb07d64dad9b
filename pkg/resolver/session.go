package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
)

// DefaultDebounce is the delay between the last suggestion request and the lookup.
const DefaultDebounce = 150 * time.Millisecond

// ErrNotFinalStep is returned by Submit before the last argument is reached.
var ErrNotFinalStep = errors.New("submit is only allowed on the final argument")

// SuggestFunc looks up candidate values for argument given the partial value
// typed so far and the values already collected for the other arguments.
type SuggestFunc func(ctx context.Context, argument, partial string, values domain.ArgumentValues) ([]string, error)

// Session collects the arguments of one item, step by step.
// It is safe for concurrent use: suggestion lookups complete on their own goroutines.
type Session struct {
	mu sync.Mutex

	item   domain.MenuItem
	index  int
	values domain.ArgumentValues
	closed bool

	suggestions []string
	cursor      int
	generations map[string]uint64
	timer       *time.Timer
	stopLookup  context.CancelFunc

	suggest  SuggestFunc
	debounce time.Duration
	onChange func()
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithSuggest enables asynchronous suggestion lookups.
func WithSuggest(fn SuggestFunc) Option {
	return func(s *Session) {
		s.suggest = fn
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.debounce = d
	}
}

// WithOnChange sets a callback fired when suggestions arrive asynchronously.
// It is called without the session lock held.
func WithOnChange(fn func()) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// WithLogger sets the logger used for lookup diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithValues pre-fills argument values, e.g. when re-expanding a canonical token.
func WithValues(values domain.ArgumentValues) Option {
	return func(s *Session) {
		for k, v := range values {
			s.values[k] = v
		}
	}
}

// NewSession starts collecting the arguments of item.
// Items without arguments never need a session and are rejected.
func NewSession(item domain.MenuItem, opts ...Option) (*Session, error) {
	if !item.NeedsArguments() {
		return nil, fmt.Errorf("%w: %s takes no arguments", domain.ErrInvalidItem, item.ID)
	}
	s := &Session{
		item:        item,
		values:      make(domain.ArgumentValues, len(item.Arguments)),
		generations: make(map[string]uint64, len(item.Arguments)),
		debounce:    DefaultDebounce,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Item returns the item being resolved.
func (s *Session) Item() domain.MenuItem {
	return s.item
}

// Index returns the position of the current argument.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Current returns the argument being edited.
func (s *Session) Current() domain.Argument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.item.Arguments[s.index]
}

// IsLast reports whether the current argument is the final one.
func (s *Session) IsLast() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLast()
}

// Closed reports whether the session was submitted or cancelled.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Values returns a copy of the values collected so far.
func (s *Session) Values() domain.ArgumentValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Clone()
}

// Value returns the current argument's value.
func (s *Session) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[s.item.Arguments[s.index].Name]
}

// SetValue replaces the current argument's value.
// Pending suggestions for the field become stale.
func (s *Session) SetValue(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.values[s.field()] = v
	s.invalidate()
}

// Next moves to the following argument. It only advances when the current
// argument is optional or non-empty and the session is not on its last step.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.isLast() {
		return false
	}
	arg := s.item.Arguments[s.index]
	if arg.Required && !s.values.IsSet(arg.Name) {
		return false
	}
	s.invalidate()
	s.index++
	return true
}

// Back returns to the previous argument. It is not allowed on the first step.
func (s *Session) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.index == 0 {
		return false
	}
	s.invalidate()
	s.index--
	return true
}

// Submit validates every required argument and closes the session.
// On failure it returns *domain.MissingArgumentsError and changes nothing.
// The returned map holds every declared argument, unset optional ones as "".
func (s *Session) Submit() (domain.ArgumentValues, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrSessionClosed
	}
	if !s.isLast() {
		return nil, ErrNotFinalStep
	}
	if missing := s.values.Missing(s.item.Arguments); len(missing) > 0 {
		return nil, &domain.MissingArgumentsError{ItemID: s.item.ID, Names: missing}
	}

	out := make(domain.ArgumentValues, len(s.item.Arguments))
	for _, arg := range s.item.Arguments {
		out[arg.Name] = s.values[arg.Name]
	}
	s.close()
	return out, nil
}

// Cancel discards the session.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.close()
	}
}

// must be called with mu held.
func (s *Session) field() string {
	return s.item.Arguments[s.index].Name
}

// must be called with mu held.
func (s *Session) isLast() bool {
	return s.index == len(s.item.Arguments)-1
}

// invalidate drops current suggestions and makes pending lookups stale.
// must be called with mu held.
func (s *Session) invalidate() {
	s.generations[s.field()]++
	s.suggestions = nil
	s.cursor = 0
	s.stopPending()
}

// must be called with mu held.
func (s *Session) close() {
	s.closed = true
	s.suggestions = nil
	s.cursor = 0
	s.stopPending()
}

// must be called with mu held.
func (s *Session) stopPending() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.stopLookup != nil {
		s.stopLookup()
		s.stopLookup = nil
	}
}
