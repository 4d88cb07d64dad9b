package resolver

import (
	"context"
	"time"

	"github.com/aretw0/palette/pkg/domain"
)

// RequestSuggestions schedules a debounced lookup for the current argument,
// keyed by its name, its current value and the values collected so far.
// A newer request, an edit, a step change or closing the session makes the
// lookup stale and its result is dropped. Lookup errors count as no suggestions.
func (s *Session) RequestSuggestions(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.suggest == nil {
		return
	}

	s.stopPending()
	field := s.field()
	s.generations[field]++
	gen := s.generations[field]
	partial := s.values[field]
	values := s.values.Clone()

	lookupCtx, cancel := context.WithCancel(ctx)
	s.stopLookup = cancel
	s.timer = time.AfterFunc(s.debounce, func() {
		s.lookup(lookupCtx, field, partial, values, gen)
	})
}

func (s *Session) lookup(ctx context.Context, field, partial string, values domain.ArgumentValues, gen uint64) {
	results, err := s.suggest(ctx, field, partial, values)
	if err != nil {
		s.logger.Debug("Suggestion lookup failed", "argument", field, "error", err)
		results = nil
	}

	s.mu.Lock()
	if s.closed || s.field() != field || s.generations[field] != gen {
		s.mu.Unlock()
		return
	}
	s.suggestions = results
	s.cursor = 0
	s.timer = nil
	if s.stopLookup != nil {
		s.stopLookup()
		s.stopLookup = nil
	}
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange()
	}
}

// Suggestions returns the current suggestion list.
func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suggestions...)
}

// SuggestionIndex returns the highlighted suggestion.
func (s *Session) SuggestionIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// MoveSuggestion shifts the suggestion cursor by delta, wrapping around.
func (s *Session) MoveSuggestion(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.suggestions)
	if n == 0 {
		return
	}
	s.cursor = ((s.cursor+delta)%n + n) % n
}

// AcceptSuggestion copies the highlighted suggestion into the current argument.
// Suggestions are advisory: nothing else depends on them.
func (s *Session) AcceptSuggestion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.suggestions) == 0 {
		return false
	}
	s.values[s.field()] = s.suggestions[s.cursor]
	s.invalidate()
	return true
}
