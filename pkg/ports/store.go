package ports

import (
	"context"

	"github.com/aretw0/palette/pkg/domain"
)

// RecencyStore persists the most-recently-used list.
// A store that was never written loads as an empty list without error.
type RecencyStore interface {
	// Load retrieves the persisted list, most recent first.
	Load(ctx context.Context) ([]domain.RecentUsage, error)

	// Save replaces the persisted list.
	Save(ctx context.Context, entries []domain.RecentUsage) error
}
