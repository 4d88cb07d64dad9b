package ports

import (
	"context"

	"github.com/aretw0/palette/pkg/domain"
)

// ItemSource supplies one coherent set of menu items (local commands, a template
// directory, the prompts of one remote server). The registry swaps a source's set
// atomically on every load.
type ItemSource interface {
	// SourceID names the source. Items loaded from it carry this ID.
	SourceID() string

	// ListItems returns the full current item set of the source.
	ListItems(ctx context.Context) ([]domain.MenuItem, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload of template directories.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying items change.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
