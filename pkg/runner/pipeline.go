package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
)

// Pipeline is the single place where items turn into byte streams.
type Pipeline struct {
	remote ports.RemoteExecutor
	logger *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRemoteExecutor sets the endpoint used for commands without a local implementation.
func WithRemoteExecutor(remote ports.RemoteExecutor) PipelineOption {
	return func(p *Pipeline) {
		p.remote = remote
	}
}

// WithPipelineLogger sets the logger used by the pipeline.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates an execution pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check reports whether item can be opened at all, without running it.
func (p *Pipeline) Check(item domain.MenuItem) error {
	payload, ok := item.Payload.(domain.CommandPayload)
	if !ok {
		return fmt.Errorf("%w: %s is a %s", domain.ErrNotExecutable, item.ID, item.Origin)
	}
	if payload.Run == nil && p.remote == nil {
		return fmt.Errorf("%w: %s", domain.ErrNoRemoteExecutor, item.ID)
	}
	return nil
}

// Open starts item and returns its output stream.
// A command with a Run function executes locally and its result is normalized;
// one without executes on the remote endpoint by name. Cancelling ctx aborts it.
func (p *Pipeline) Open(ctx context.Context, item domain.MenuItem, args domain.ArgumentValues) (io.ReadCloser, error) {
	if err := p.Check(item); err != nil {
		return nil, err
	}
	payload := item.Payload.(domain.CommandPayload)

	if payload.Run == nil {
		p.logger.Debug("Executing remotely", "item", item.ID, "name", item.Name)
		stream, err := p.remote.Execute(ctx, item.Name, args)
		if err != nil {
			return nil, err
		}
		if stream == nil {
			return nil, domain.ErrEmptyBody
		}
		return stream, nil
	}

	p.logger.Debug("Executing locally", "item", item.ID)
	result, err := p.runLocal(ctx, payload.Run, args)
	if err != nil {
		return nil, err
	}
	return Normalize(result), nil
}

func (p *Pipeline) runLocal(ctx context.Context, run domain.RunFunc, args domain.ArgumentValues) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Command panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("command panicked: %v", r)
		}
	}()
	return run(ctx, domain.RunRequest{Args: args})
}
