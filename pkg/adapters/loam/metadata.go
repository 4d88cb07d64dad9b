package loam

import (
	"github.com/aretw0/palette/pkg/domain"
)

// PromptMetadata is the frontmatter of a template prompt document.
// The document body, when present, becomes a final message with Role.
type PromptMetadata struct {
	Name        string                 `json:"name" mapstructure:"name"`
	Title       string                 `json:"title" mapstructure:"title"`
	Description string                 `json:"description" mapstructure:"description"`
	Role        string                 `json:"role" mapstructure:"role"`
	Arguments   []domain.Argument      `json:"arguments" mapstructure:"arguments"`
	Messages    []domain.PromptMessage `json:"messages" mapstructure:"messages"`
}
