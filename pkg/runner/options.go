package runner

import (
	"log/slog"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
)

// Option defines a functional option for configuring the Executor.
type Option func(*Executor)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithNotifier configures where execution failures are reported.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Executor) {
		e.notifier = n
	}
}

// WithHooks configures lifecycle hooks for observability.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = hooks
	}
}
