package ports

import (
	"context"

	"github.com/aretw0/palette/pkg/domain"
)

// Transcript is the conversation the engine writes execution output into.
// Persistence and rendering belong to the host.
type Transcript interface {
	// CreateMessage allocates a new message and returns its ID.
	CreateMessage(ctx context.Context, role domain.Role) (string, error)

	// SetContent overwrites the full content of a message.
	SetContent(ctx context.Context, id, content string) error

	// Finalize marks a message as no longer streaming.
	Finalize(ctx context.Context, id string, status domain.MessageStatus) error
}

// Notifier surfaces transient notifications (toasts) to the user.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
