package registry

import (
	"context"
	"fmt"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
)

// maxPages bounds a listing against providers that never exhaust their cursor.
const maxPages = 100

// RemoteSource imports the prompts of one remote server as menu items.
type RemoteSource struct {
	transport ports.PromptTransport
	serverID  string
}

// NewRemoteSource creates a source listing the prompts of serverID through transport.
func NewRemoteSource(transport ports.PromptTransport, serverID string) *RemoteSource {
	return &RemoteSource{transport: transport, serverID: serverID}
}

// SourceID implements ports.ItemSource.
func (s *RemoteSource) SourceID() string {
	return "mcp:" + s.serverID
}

// ListItems pages through the server's prompt listing until the cursor is exhausted.
func (s *RemoteSource) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	var (
		items  []domain.MenuItem
		cursor string
		seen   = make(map[string]struct{})
	)
	for page := 0; page < maxPages; page++ {
		res, err := s.transport.ListPrompts(ctx, s.serverID, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list prompts of %s: %w", s.serverID, err)
		}
		for _, p := range res.Prompts {
			if p.Name == "" {
				continue
			}
			item := domain.NewRemotePrompt(s.serverID, p.Name, p.Description, p.Arguments...)
			if p.Title != "" {
				item.Title = p.Title
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			items = append(items, item)
		}
		if res.NextCursor == "" || res.NextCursor == cursor {
			return items, nil
		}
		cursor = res.NextCursor
	}
	return items, nil
}
