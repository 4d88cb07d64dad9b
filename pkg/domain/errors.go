package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidItem is returned when a MenuItem violates its variant invariants.
var ErrInvalidItem = errors.New("invalid menu item")

// ErrItemNotFound is returned when an item ID or trigger is not registered.
var ErrItemNotFound = errors.New("item not found")

// ErrNotExecutable is returned when a prompt item is sent to the execution pipeline.
var ErrNotExecutable = errors.New("item is not executable")

// ErrEmptyBody is returned when the execution endpoint answers without a body.
var ErrEmptyBody = errors.New("execution endpoint returned no body")

// ErrTargetBusy is returned when a second execution targets a message that is still streaming.
var ErrTargetBusy = errors.New("target message already has an execution in flight")

// ErrSourceFailed wraps failures of a single item source.
var ErrSourceFailed = errors.New("item source failed")

// ErrSessionClosed is returned when a resolution session is used after submit or cancel.
var ErrSessionClosed = errors.New("resolution session closed")

// ErrServerNotFound is returned when a prompt transport has no connection for a server ID.
var ErrServerNotFound = errors.New("prompt server not found")

// ErrNoRemoteExecutor is returned when a command has no local implementation and no endpoint is configured.
var ErrNoRemoteExecutor = errors.New("no remote executor configured")

// MissingArgumentsError lists the required arguments left unset on submit.
type MissingArgumentsError struct {
	ItemID string
	Names  []string
}

func (e *MissingArgumentsError) Error() string {
	return fmt.Sprintf("missing required arguments for %s: %s", e.ItemID, strings.Join(e.Names, ", "))
}

// ExecutionError is a non-success answer from the remote execution endpoint.
type ExecutionError struct {
	Status  int
	Message string
}

func (e *ExecutionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("execution failed with status %d", e.Status)
	}
	return e.Message
}

// SourceError reports the failure of one item source during loading.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceFailed, e.Err}
}
