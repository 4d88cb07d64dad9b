package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSuggester struct {
	mu    sync.Mutex
	calls []string
	block chan struct{}
	err   error
}

func (r *recordingSuggester) suggest(_ context.Context, argument, partial string, values domain.ArgumentValues) ([]string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, argument+"="+partial)
	block := r.block
	r.mu.Unlock()

	if block != nil {
		// Ignores ctx on purpose so late results reach the session.
		<-block
	}
	if r.err != nil {
		return nil, r.err
	}
	return []string{partial + "-1", partial + "-2"}, nil
}

func (r *recordingSuggester) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestSuggestions_Debounced(t *testing.T) {
	rec := &recordingSuggester{}
	var changes atomic.Int32
	s, err := NewSession(searchItem(),
		WithSuggest(rec.suggest),
		WithDebounce(30*time.Millisecond),
		WithOnChange(func() { changes.Add(1) }),
	)
	require.NoError(t, err)

	for _, partial := range []string{"t", "tr", "tra"} {
		s.SetValue(partial)
		s.RequestSuggestions(context.Background())
	}

	require.Eventually(t, func() bool { return len(s.Suggestions()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"topic=tra"}, rec.Calls(), "only the last request survives the debounce")
	assert.Equal(t, []string{"tra-1", "tra-2"}, s.Suggestions())
	assert.EqualValues(t, 1, changes.Load())

	s.MoveSuggestion(1)
	assert.Equal(t, 1, s.SuggestionIndex())
	s.MoveSuggestion(1)
	assert.Equal(t, 0, s.SuggestionIndex())
	s.MoveSuggestion(-1)

	require.True(t, s.AcceptSuggestion())
	assert.Equal(t, "tra-2", s.Value())
	assert.Empty(t, s.Suggestions())
	assert.False(t, s.AcceptSuggestion())
}

func TestSuggestions_StaleResultsDropped(t *testing.T) {
	rec := &recordingSuggester{block: make(chan struct{})}
	s, err := NewSession(searchItem(), WithSuggest(rec.suggest), WithDebounce(0))
	require.NoError(t, err)

	s.SetValue("old")
	s.RequestSuggestions(context.Background())
	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, time.Millisecond)

	// The user keeps typing while the first lookup is in flight.
	s.SetValue("newer")
	close(rec.block)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Suggestions(), "result for an outdated partial must not apply")
}

func TestSuggestions_DroppedAfterCancel(t *testing.T) {
	release := make(chan struct{})
	rec := &recordingSuggester{block: release}
	s, err := NewSession(searchItem(), WithSuggest(rec.suggest), WithDebounce(0))
	require.NoError(t, err)

	s.SetValue("x")
	s.RequestSuggestions(context.Background())
	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, time.Millisecond)

	s.Cancel()
	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Suggestions())
}

func TestSuggestions_ErrorsSwallowed(t *testing.T) {
	rec := &recordingSuggester{err: errors.New("completion not supported")}
	var changed atomic.Bool
	s, err := NewSession(searchItem(), WithSuggest(rec.suggest), WithDebounce(0), WithOnChange(func() { changed.Store(true) }))
	require.NoError(t, err)

	s.SetValue("x")
	s.RequestSuggestions(context.Background())

	require.Eventually(t, changed.Load, time.Second, time.Millisecond)
	assert.Empty(t, s.Suggestions())
}

func TestSuggestions_KeyedByValuesSoFar(t *testing.T) {
	var got domain.ArgumentValues
	var mu sync.Mutex
	s, err := NewSession(searchItem(), WithDebounce(0), WithSuggest(func(_ context.Context, arg, partial string, values domain.ArgumentValues) ([]string, error) {
		mu.Lock()
		got = values
		mu.Unlock()
		return []string{"2019"}, nil
	}))
	require.NoError(t, err)

	s.SetValue("bert")
	require.True(t, s.Next())
	s.SetValue("20")
	s.RequestSuggestions(context.Background())

	require.Eventually(t, func() bool { return len(s.Suggestions()) == 1 }, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.ArgumentValues{"topic": "bert", "year": "20"}, got)
}

func TestSuggestions_NoSuggestFuncIsNoop(t *testing.T) {
	s, err := NewSession(searchItem())
	require.NoError(t, err)
	s.RequestSuggestions(context.Background())
	assert.Empty(t, s.Suggestions())
}
