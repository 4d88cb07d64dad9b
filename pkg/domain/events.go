package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventExecutionStart EventType = "execution_start"
	EventExecutionChunk EventType = "execution_chunk"
	EventExecutionEnd   EventType = "execution_end"
	EventItemSelected   EventType = "item_selected"
	EventSourceLoaded   EventType = "source_loaded"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// ExecutionEvent describes one step of a streamed execution.
type ExecutionEvent struct {
	EventBase
	ExecutionID string        `json:"execution_id"`
	TargetID    string        `json:"target_id"`
	ItemID      string        `json:"item_id"`
	Origin      Origin        `json:"origin"`
	Bytes       int           `json:"bytes,omitempty"`
	Status      MessageStatus `json:"status,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Err         error         `json:"-"`
}

// SelectionEvent is emitted when an item is chosen from the overlay.
type SelectionEvent struct {
	EventBase
	ItemID string `json:"item_id"`
	Origin Origin `json:"origin"`
}

// SourceEvent is emitted after an item source is (re)loaded.
type SourceEvent struct {
	EventBase
	SourceID string `json:"source_id"`
	Items    int    `json:"items"`
	Err      error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnExecutionStart func(context.Context, *ExecutionEvent)
	OnExecutionChunk func(context.Context, *ExecutionEvent)
	OnExecutionEnd   func(context.Context, *ExecutionEvent)
	OnItemSelected   func(context.Context, *SelectionEvent)
	OnSourceLoaded   func(context.Context, *SourceEvent)
}

// Merge combines two hook sets, calling h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnExecutionStart: chain(h.OnExecutionStart, other.OnExecutionStart),
		OnExecutionChunk: chain(h.OnExecutionChunk, other.OnExecutionChunk),
		OnExecutionEnd:   chain(h.OnExecutionEnd, other.OnExecutionEnd),
		OnItemSelected:   chain(h.OnItemSelected, other.OnItemSelected),
		OnSourceLoaded:   chain(h.OnSourceLoaded, other.OnSourceLoaded),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
