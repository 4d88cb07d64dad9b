package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRemotePrompt_IDMatchesCanonicalPath(t *testing.T) {
	item := NewRemotePrompt("lit", "search", "Search literature", Argument{Name: "topic", Required: true})

	assert.Equal(t, "mcp.lit.search", item.ID)
	assert.Equal(t, "lit.search", item.Trigger)
	assert.Equal(t, []string{"mcp", "lit"}, item.Namespace)
	assert.Equal(t, OriginRemotePrompt, item.Origin)
	require.NoError(t, item.Validate())
	assert.True(t, item.NeedsArguments())
}

func TestMenuItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    MenuItem
		wantErr bool
	}{
		{
			name: "valid command",
			item: NewCommand("clear", "Clear chat", nil),
		},
		{
			name: "valid template",
			item: NewTemplatePrompt("summarize", "", []PromptMessage{{Role: RoleUser, Text: "Summarize {{text}}"}}, Argument{Name: "text"}),
		},
		{
			name:    "mismatched payload",
			item:    MenuItem{ID: "cmd.x", Trigger: "x", Origin: OriginLocalCommand, Payload: TemplatePayload{}},
			wantErr: true,
		},
		{
			name:    "missing payload",
			item:    MenuItem{ID: "cmd.x", Trigger: "x", Origin: OriginLocalCommand},
			wantErr: true,
		},
		{
			name:    "whitespace trigger",
			item:    MenuItem{ID: "cmd.x", Trigger: "a b", Origin: OriginLocalCommand, Payload: CommandPayload{}},
			wantErr: true,
		},
		{
			name:    "duplicate argument",
			item:    NewCommand("x", "", nil, Argument{Name: "a"}, Argument{Name: "a"}),
			wantErr: true,
		},
		{
			name:    "empty id",
			item:    MenuItem{Trigger: "x", Origin: OriginLocalCommand, Payload: CommandPayload{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidItem)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestArgumentValues_Missing(t *testing.T) {
	args := []Argument{
		{Name: "topic", Required: true},
		{Name: "limit"},
		{Name: "year", Required: true},
	}
	values := ArgumentValues{"topic": "", "limit": "5"}

	assert.Equal(t, []string{"topic", "year"}, values.Missing(args))

	values["topic"] = "go"
	values["year"] = "2024"
	assert.Empty(t, values.Missing(args))
}

func TestSourceError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&SourceError{SourceID: "mcp:lit", Err: cause})

	assert.ErrorIs(t, err, ErrSourceFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "mcp:lit")
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := LifecycleHooks{OnItemSelected: func(_ context.Context, e *SelectionEvent) { calls = append(calls, "a:"+e.ItemID) }}
	b := LifecycleHooks{OnItemSelected: func(_ context.Context, e *SelectionEvent) { calls = append(calls, "b:"+e.ItemID) }}

	merged := a.Merge(b)
	merged.OnItemSelected(context.Background(), &SelectionEvent{ItemID: "cmd.clear"})

	assert.Equal(t, []string{"a:cmd.clear", "b:cmd.clear"}, calls)
	assert.Nil(t, merged.OnExecutionEnd)
}
