package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/google/uuid"
)

var (
	ErrMessageNotFound  = errors.New("message not found")
	ErrMessageFinalized = errors.New("message already finalized")
)

// Message is a transcript entry.
type Message struct {
	ID      string
	Role    domain.Role
	Content string
	Status  domain.MessageStatus
	// History holds every content snapshot written to the message, in order.
	History []string
}

// Transcript implements ports.Transcript in memory.
// Safe for concurrent use.
type Transcript struct {
	mu       sync.RWMutex
	messages map[string]*Message
	order    []string
	onChange func(Message)
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{messages: make(map[string]*Message)}
}

// OnChange registers a callback fired (without locks held) after every mutation.
func (t *Transcript) OnChange(fn func(Message)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// CreateMessage allocates a streaming message.
func (t *Transcript) CreateMessage(ctx context.Context, role domain.Role) (string, error) {
	id := uuid.NewString()
	return id, t.insert(&Message{ID: id, Role: role, Status: domain.StatusStreaming})
}

// Append adds a finished message, e.g. a rendered prompt.
func (t *Transcript) Append(ctx context.Context, role domain.Role, content string) (string, error) {
	id := uuid.NewString()
	return id, t.insert(&Message{ID: id, Role: role, Content: content, Status: domain.StatusCompleted, History: []string{content}})
}

// SetContent overwrites the content of a streaming message.
func (t *Transcript) SetContent(ctx context.Context, id, content string) error {
	return t.update(id, func(m *Message) error {
		if m.Status != domain.StatusStreaming {
			return fmt.Errorf("%w: %s", ErrMessageFinalized, id)
		}
		m.Content = content
		m.History = append(m.History, content)
		return nil
	})
}

// Finalize records the terminal status of a message.
func (t *Transcript) Finalize(ctx context.Context, id string, status domain.MessageStatus) error {
	return t.update(id, func(m *Message) error {
		if m.Status != domain.StatusStreaming {
			return fmt.Errorf("%w: %s", ErrMessageFinalized, id)
		}
		m.Status = status
		return nil
	})
}

// Reopen puts a finalized message back into streaming state so it can be re-run in place.
func (t *Transcript) Reopen(id string) error {
	return t.update(id, func(m *Message) error {
		m.Status = domain.StatusStreaming
		return nil
	})
}

// Get returns a copy of the message.
func (t *Transcript) Get(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.messages[id]
	if !ok {
		return Message{}, false
	}
	return copyMessage(m), true
}

// Messages returns copies of all messages in creation order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, copyMessage(t.messages[id]))
	}
	return out
}

func (t *Transcript) insert(m *Message) error {
	t.mu.Lock()
	t.messages[m.ID] = m
	t.order = append(t.order, m.ID)
	fn, snapshot := t.onChange, copyMessage(m)
	t.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return nil
}

func (t *Transcript) update(id string, mutate func(*Message) error) error {
	t.mu.Lock()
	m, ok := t.messages[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if err := mutate(m); err != nil {
		t.mu.Unlock()
		return err
	}
	fn, snapshot := t.onChange, copyMessage(m)
	t.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return nil
}

func copyMessage(m *Message) Message {
	c := *m
	c.History = append([]string(nil), m.History...)
	return c
}
