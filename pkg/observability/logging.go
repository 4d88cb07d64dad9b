package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/palette/pkg/domain"
)

// LogHooks returns hooks that write lifecycle events to logger.
// Chunks are logged at debug level only.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExecutionStart: func(ctx context.Context, e *domain.ExecutionEvent) {
			logger.InfoContext(ctx, "execution started",
				"execution_id", e.ExecutionID, "item_id", e.ItemID, "origin", e.Origin, "target_id", e.TargetID)
		},
		OnExecutionChunk: func(ctx context.Context, e *domain.ExecutionEvent) {
			logger.DebugContext(ctx, "execution chunk", "execution_id", e.ExecutionID, "bytes", e.Bytes)
		},
		OnExecutionEnd: func(ctx context.Context, e *domain.ExecutionEvent) {
			attrs := []any{
				"execution_id", e.ExecutionID,
				"item_id", e.ItemID,
				"status", e.Status,
				"bytes", e.Bytes,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "execution ended", append(attrs, "error", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "execution ended", attrs...)
		},
		OnItemSelected: func(ctx context.Context, e *domain.SelectionEvent) {
			logger.DebugContext(ctx, "item selected", "item_id", e.ItemID, "origin", e.Origin)
		},
		OnSourceLoaded: func(ctx context.Context, e *domain.SourceEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "source load failed", "source_id", e.SourceID, "error", e.Err)
				return
			}
			logger.InfoContext(ctx, "source loaded", "source_id", e.SourceID, "items", e.Items)
		},
	}
}
