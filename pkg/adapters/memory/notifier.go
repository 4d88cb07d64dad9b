package memory

import (
	"context"
	"sync"

	"github.com/aretw0/palette/pkg/domain"
)

// Notifier implements ports.Notifier by recording notifications.
type Notifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify records n.
func (n *Notifier) Notify(ctx context.Context, note domain.Notification) {
	n.mu.Lock()
	n.items = append(n.items, note)
	n.mu.Unlock()
}

// All returns the recorded notifications in order.
func (n *Notifier) All() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.items...)
}
