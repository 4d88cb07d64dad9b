package runner

import (
	"context"
	"sync"
	"time"
)

// Handle tracks one in-flight execution.
type Handle struct {
	ID       string
	TargetID string
	ItemID   string
	Started  time.Time

	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newHandle(id, targetID, itemID string, cancel context.CancelFunc) *Handle {
	return &Handle{
		ID:       id,
		TargetID: targetID,
		ItemID:   itemID,
		Started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Abort cancels the execution. It is a no-op once the execution has ended.
func (h *Handle) Abort() {
	h.cancel()
}

// Done is closed when the execution reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the terminal result. It is only meaningful after Done is closed.
func (h *Handle) Outcome() Outcome {
	<-h.done
	return h.outcome
}

// Wait blocks until the execution ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (h *Handle) finish(o Outcome) {
	h.once.Do(func() {
		h.outcome = o
		h.cancel()
		close(h.done)
	})
}
