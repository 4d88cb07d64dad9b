package palette

import (
	"github.com/aretw0/palette/pkg/domain"
)

// Phase is the step of the resolution and execution cycle a composer is in.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseTokenActive      Phase = "token-active"
	PhaseArgsCollecting   Phase = "args-collecting"
	PhaseValidating       Phase = "validating"
	PhaseRejected         Phase = "rejected"
	PhaseResolvedTemplate Phase = "resolved-template"
	PhaseResolvedRemote   Phase = "resolved-remote"
	PhaseExecuting        Phase = "executing"
	PhaseStreaming        Phase = "streaming"
	PhaseCompleted        Phase = "completed"
	PhaseErrored          Phase = "errored"
	PhaseAborted          Phase = "aborted"
)

// Terminal reports whether p ends an execution.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseErrored || p == PhaseAborted
}

// Busy reports whether the composer is collecting arguments or running an item.
func (p Phase) Busy() bool {
	switch p {
	case PhaseArgsCollecting, PhaseValidating, PhaseRejected, PhaseExecuting, PhaseStreaming:
		return true
	}
	return false
}

func phaseFor(status domain.MessageStatus) Phase {
	switch status {
	case domain.StatusCompleted:
		return PhaseCompleted
	case domain.StatusAborted:
		return PhaseAborted
	}
	return PhaseErrored
}

// Event is published to composer subscribers on every phase change.
type Event struct {
	Phase    Phase
	Previous Phase
	ItemID   string
	// TargetID is the transcript message written by the execution, if any.
	TargetID string
	Err      error
}

// Preview is a resolved prompt ready to be inserted into the conversation.
// Prompts never execute on their own; the host decides what to do with it.
type Preview struct {
	ItemID      string
	Origin      domain.Origin
	Description string
	Values      domain.ArgumentValues
	Messages    []domain.PromptMessage
}

// Transition is one edge of the nominal composer cycle.
type Transition struct {
	From, To Phase
	On       string
}

// Transitions lists the cycle a composer follows when nothing interrupts it.
// Any new action may also leave a phase early; those edges are not listed.
func Transitions() []Transition {
	return []Transition{
		{PhaseIdle, PhaseTokenActive, "type /"},
		{PhaseTokenActive, PhaseIdle, "caret leaves token"},
		{PhaseTokenActive, PhaseExecuting, "select command"},
		{PhaseTokenActive, PhaseArgsCollecting, "select with arguments"},
		{PhaseTokenActive, PhaseResolvedTemplate, "select template"},
		{PhaseTokenActive, PhaseValidating, "select remote prompt"},
		{PhaseArgsCollecting, PhaseValidating, "submit"},
		{PhaseArgsCollecting, PhaseIdle, "cancel"},
		{PhaseValidating, PhaseRejected, "missing arguments"},
		{PhaseRejected, PhaseArgsCollecting, ""},
		{PhaseValidating, PhaseResolvedTemplate, "render"},
		{PhaseValidating, PhaseResolvedRemote, "fetch"},
		{PhaseValidating, PhaseExecuting, "run"},
		{PhaseValidating, PhaseErrored, "fetch failed"},
		{PhaseExecuting, PhaseStreaming, "started"},
		{PhaseExecuting, PhaseErrored, "rejected"},
		{PhaseStreaming, PhaseCompleted, "end of stream"},
		{PhaseStreaming, PhaseErrored, "failure"},
		{PhaseStreaming, PhaseAborted, "abort"},
		{PhaseResolvedTemplate, PhaseTokenActive, "type /"},
		{PhaseResolvedRemote, PhaseTokenActive, "type /"},
		{PhaseCompleted, PhaseIdle, ""},
		{PhaseErrored, PhaseIdle, ""},
		{PhaseAborted, PhaseIdle, ""},
	}
}
