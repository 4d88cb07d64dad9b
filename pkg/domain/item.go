package domain

import (
	"context"
	"fmt"
	"strings"
)

// Origin is the discriminant of the MenuItem tagged variant.
type Origin string

const (
	OriginLocalCommand   Origin = "local-command"
	OriginTemplatePrompt Origin = "client-template-prompt"
	OriginRemotePrompt   Origin = "remote-imported-prompt"
)

// Namespace roots used when building item IDs.
const (
	NamespaceCommand = "cmd"
	NamespacePrompt  = "prompt"
	NamespaceMCP     = "mcp"
)

// Argument describes one parameter an item collects before it can run.
type Argument struct {
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty" mapstructure:"placeholder"`
}

// RunRequest is what a local command receives when invoked.
// Cancellation of the context is the abort signal.
type RunRequest struct {
	Args ArgumentValues
}

// RunFunc is the executable reference of a local command.
// The returned value is normalized into a byte stream by the runner.
type RunFunc func(ctx context.Context, req RunRequest) (any, error)

// Payload is the variant part of a MenuItem. Its kind is fully determined by the item Origin.
type Payload interface {
	Origin() Origin
}

// CommandPayload backs a local command.
// A nil Run means the command executes on the remote execution endpoint by name.
type CommandPayload struct {
	Run RunFunc
}

func (CommandPayload) Origin() Origin { return OriginLocalCommand }

// TemplatePayload backs a prompt rendered client-side.
type TemplatePayload struct {
	Messages []PromptMessage
}

func (TemplatePayload) Origin() Origin { return OriginTemplatePrompt }

// RemotePayload identifies a prompt served by a connected provider.
type RemotePayload struct {
	ServerID string
	Name     string
}

func (RemotePayload) Origin() Origin { return OriginRemotePrompt }

// MenuItem is one entry of the slash-command catalog.
type MenuItem struct {
	ID          string     `json:"id"`
	Trigger     string     `json:"trigger"`
	Name        string     `json:"name"`
	Namespace   []string   `json:"namespace,omitempty"`
	Origin      Origin     `json:"origin"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Arguments   []Argument `json:"arguments,omitempty"`
	SourceID    string     `json:"source_id,omitempty"`
	Payload     Payload    `json:"-"`
}

// ItemID joins namespace segments and a name into the dotted item ID.
func ItemID(namespace []string, name string) string {
	parts := make([]string, 0, len(namespace)+1)
	parts = append(parts, namespace...)
	parts = append(parts, name)
	return strings.Join(parts, ".")
}

// NewCommand builds a local command item.
// The trigger is the bare name and the ID lives under the "cmd" namespace.
func NewCommand(name, description string, run RunFunc, args ...Argument) MenuItem {
	ns := []string{NamespaceCommand}
	return MenuItem{
		ID:          ItemID(ns, name),
		Trigger:     name,
		Name:        name,
		Namespace:   ns,
		Origin:      OriginLocalCommand,
		Title:       name,
		Description: description,
		Arguments:   args,
		Payload:     CommandPayload{Run: run},
	}
}

// NewTemplatePrompt builds a client-side template prompt item.
func NewTemplatePrompt(name, description string, messages []PromptMessage, args ...Argument) MenuItem {
	ns := []string{NamespacePrompt}
	return MenuItem{
		ID:          ItemID(ns, name),
		Trigger:     name,
		Name:        name,
		Namespace:   ns,
		Origin:      OriginTemplatePrompt,
		Title:       name,
		Description: description,
		Arguments:   args,
		Payload:     TemplatePayload{Messages: messages},
	}
}

// NewRemotePrompt builds an item for a prompt served by serverID.
// The trigger is "<serverID>.<name>", e.g. "lit.search".
func NewRemotePrompt(serverID, name, description string, args ...Argument) MenuItem {
	ns := []string{NamespaceMCP, serverID}
	return MenuItem{
		ID:          ItemID(ns, name),
		Trigger:     serverID + "." + name,
		Name:        name,
		Namespace:   ns,
		Origin:      OriginRemotePrompt,
		Title:       name,
		Description: description,
		Arguments:   args,
		Payload:     RemotePayload{ServerID: serverID, Name: name},
	}
}

// Validate checks the invariants of the tagged variant.
func (m MenuItem) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	if m.Trigger == "" {
		return fmt.Errorf("%w: item %s has no trigger", ErrInvalidItem, m.ID)
	}
	if strings.ContainsFunc(m.Trigger, isSpace) {
		return fmt.Errorf("%w: trigger %q contains whitespace", ErrInvalidItem, m.Trigger)
	}
	if m.Payload == nil {
		return fmt.Errorf("%w: item %s has no payload", ErrInvalidItem, m.ID)
	}
	if m.Payload.Origin() != m.Origin {
		return fmt.Errorf("%w: item %s has origin %s but %s payload", ErrInvalidItem, m.ID, m.Origin, m.Payload.Origin())
	}
	seen := make(map[string]struct{}, len(m.Arguments))
	for _, arg := range m.Arguments {
		if arg.Name == "" {
			return fmt.Errorf("%w: item %s has an unnamed argument", ErrInvalidItem, m.ID)
		}
		if _, dup := seen[arg.Name]; dup {
			return fmt.Errorf("%w: item %s declares argument %q twice", ErrInvalidItem, m.ID, arg.Name)
		}
		seen[arg.Name] = struct{}{}
	}
	return nil
}

// NeedsArguments reports whether selecting the item starts a resolution session.
func (m MenuItem) NeedsArguments() bool {
	return len(m.Arguments) > 0
}

// Label is the text shown in the overlay for the item.
func (m MenuItem) Label() string {
	if m.Title != "" && m.Title != m.Trigger {
		return "/" + m.Trigger + " (" + m.Title + ")"
	}
	return "/" + m.Trigger
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
