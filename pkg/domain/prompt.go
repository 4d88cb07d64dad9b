package domain

// Role is the speaker of a prompt or transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PromptMessage is one message of a template or of a fetched remote prompt.
type PromptMessage struct {
	Role Role   `json:"role" yaml:"role" mapstructure:"role"`
	Text string `json:"text" yaml:"text" mapstructure:"text"`
}

// PromptPage is one page of a remote prompt listing.
type PromptPage struct {
	Prompts    []RemotePrompt
	NextCursor string
}

// RemotePrompt is a prompt definition as listed by a remote provider.
type RemotePrompt struct {
	Name        string
	Title       string
	Description string
	Arguments   []Argument
}

// PromptResult is the resolved content of a remote prompt.
type PromptResult struct {
	Description string
	Messages    []PromptMessage
}

// CompletionRequest asks a provider for values of one argument.
type CompletionRequest struct {
	ServerID     string
	PromptName   string
	ArgumentName string
	Value        string
	ContextArgs  ArgumentValues
}

// MessageStatus is the terminal state of a transcript message written by an execution.
type MessageStatus string

const (
	StatusStreaming MessageStatus = "streaming"
	StatusCompleted MessageStatus = "completed"
	StatusErrored   MessageStatus = "errored"
	StatusAborted   MessageStatus = "aborted"
)

// NotificationLevel grades a transient notification.
type NotificationLevel string

const (
	NotifyInfo  NotificationLevel = "info"
	NotifyWarn  NotificationLevel = "warn"
	NotifyError NotificationLevel = "error"
)

// Notification is a transient, non-fatal message surfaced to the user (a toast).
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
}
