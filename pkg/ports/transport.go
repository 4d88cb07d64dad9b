package ports

import (
	"context"
	"io"

	"github.com/aretw0/palette/pkg/domain"
)

// PromptTransport is the thin client surface the engine needs from remote prompt providers.
type PromptTransport interface {
	// ListPrompts returns one page of the prompts served by serverID.
	// An empty cursor requests the first page; an empty NextCursor marks the last one.
	ListPrompts(ctx context.Context, serverID, cursor string) (domain.PromptPage, error)

	// FetchPromptMessages resolves a prompt with the given argument values.
	FetchPromptMessages(ctx context.Context, serverID, name string, args domain.ArgumentValues) (domain.PromptResult, error)

	// CompleteArgument asks the provider for candidate values of one argument.
	CompleteArgument(ctx context.Context, req domain.CompletionRequest) ([]string, error)
}

// RemoteExecutor executes a named command on the remote execution endpoint.
// Non-success answers surface as *domain.ExecutionError and a missing body as domain.ErrEmptyBody.
type RemoteExecutor interface {
	Execute(ctx context.Context, name string, args domain.ArgumentValues) (io.ReadCloser, error)
}
