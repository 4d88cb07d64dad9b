package loam

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/internal/runtime"
	"github.com/aretw0/palette/pkg/domain"
)

// watchPattern selects the documents that can hold prompts.
const watchPattern = "**/*.{md,json,yaml,yml}"

// Source adapts a Loam repository of prompt documents to ports.ItemSource.
type Source struct {
	Repo   *loam.TypedRepository[PromptMetadata]
	id     string
	logger *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithID overrides the source ID, "templates" by default.
func WithID(id string) Option {
	return func(s *Source) {
		s.id = id
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// New creates a source over an existing typed repository.
func New(repo *loam.TypedRepository[PromptMetadata], opts ...Option) *Source {
	s := &Source{
		Repo:   repo,
		id:     "templates",
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open initializes a read-only, strict Loam repository at dir.
func Open(dir string, opts ...Option) (*Source, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[PromptMetadata](repo), opts...), nil
}

// SourceID implements ports.ItemSource.
func (s *Source) SourceID() string {
	return s.id
}

// ListItems implements ports.ItemSource. Two documents resolving to the same
// prompt name fail the whole listing, so the previous item set stays in place.
func (s *Source) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	items := make([]domain.MenuItem, 0, len(docs))
	for _, doc := range docs {
		item, ok := buildItem(doc.ID, doc.Data, doc.Content)
		if !ok {
			s.logger.Debug("Skipping document without messages", "doc", doc.ID)
			continue
		}
		if existing, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("collision detected: prompt '%s' is defined in both '%s' and '%s'", item.Trigger, existing, doc.ID)
		}
		seen[item.ID] = doc.ID
		items = append(items, item)
	}
	return items, nil
}

// Watch implements ports.Watchable.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := s.Repo.Watch(ctx, watchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				s.logger.Debug("Template changed", "doc", evt.ID)
				select {
				case ch <- struct{}{}:
				default:
					// A reload is already pending.
				}
			}
		}
	}()
	return ch, nil
}

func buildItem(docID string, meta PromptMetadata, body string) (domain.MenuItem, bool) {
	messages := append([]domain.PromptMessage(nil), meta.Messages...)
	if text := strings.TrimSpace(body); text != "" {
		role := domain.Role(meta.Role)
		if role == "" {
			role = domain.RoleUser
		}
		messages = append(messages, domain.PromptMessage{Role: role, Text: text})
	}
	if len(messages) == 0 {
		return domain.MenuItem{}, false
	}

	name := meta.Name
	if name == "" {
		name = strings.ReplaceAll(trimExtension(docID), "/", ".")
	}

	args := meta.Arguments
	if len(args) == 0 {
		for _, p := range runtime.Placeholders(messages) {
			args = append(args, domain.Argument{Name: p, Required: true})
		}
	}

	item := domain.NewTemplatePrompt(name, meta.Description, messages, args...)
	if meta.Title != "" {
		item.Title = meta.Title
	}
	return item, true
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
