package loam

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/palette/internal/testutils"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byTrigger(items []domain.MenuItem) map[string]domain.MenuItem {
	out := make(map[string]domain.MenuItem, len(items))
	for _, item := range items {
		out[item.Trigger] = item
	}
	return out
}

func TestSource_ListItems(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"review.md": `---
name: review
title: Code review
description: Review a snippet
arguments:
  - name: lang
    description: Language
    required: true
  - name: focus
messages:
  - role: system
    text: You are a strict reviewer.
---
Review this {{lang}} code. Focus: {{focus}}`,
		"git/commit.md": `---
description: Write a commit message
---
Summarize {{diff}}`,
		"notes.md": `---
description: frontmatter only
---
`,
	})

	src, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, "templates", src.SourceID())

	items, err := src.ListItems(context.Background())
	require.NoError(t, err)
	got := byTrigger(items)
	require.Len(t, got, 2, "documents without messages are skipped")

	review := got["review"]
	require.NoError(t, review.Validate())
	assert.Equal(t, "prompt.review", review.ID)
	assert.Equal(t, "Code review", review.Title)
	require.Len(t, review.Arguments, 2)
	assert.True(t, review.Arguments[0].Required)
	assert.False(t, review.Arguments[1].Required)

	tpl := review.Payload.(domain.TemplatePayload)
	require.Len(t, tpl.Messages, 2)
	assert.Equal(t, domain.RoleSystem, tpl.Messages[0].Role)
	assert.Equal(t, domain.RoleUser, tpl.Messages[1].Role)
	assert.Equal(t, "Review this {{lang}} code. Focus: {{focus}}", tpl.Messages[1].Text)

	commit, ok := got["git.commit"]
	require.True(t, ok, "name derives from the document path")
	assert.Equal(t, []domain.Argument{{Name: "diff", Required: true}}, commit.Arguments,
		"undeclared placeholders become required arguments")
}

func TestSource_Collision(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"a.md": "---\nname: same\n---\nA",
		"b.md": "---\nname: same\n---\nB",
	})

	src, err := Open(dir, WithID("lib"))
	require.NoError(t, err)

	_, err = src.ListItems(context.Background())
	assert.ErrorContains(t, err, "collision detected")
}

func TestSource_HotReload(t *testing.T) {
	if testing.Short() {
		t.Skip("watcher test")
	}
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{"hello.md": "Hello {{name}}"})

	src, err := Open(dir)
	require.NoError(t, err)

	reg := registry.NewRegistry()
	loader := registry.NewLoader(reg)
	require.Empty(t, loader.LoadAll(context.Background(), src))
	_, ok := reg.FindByTrigger("hello")
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, loader.Watch(ctx, src, nil))

	// Give the watcher time to arm before touching the directory.
	time.Sleep(200 * time.Millisecond)
	testutils.WriteFiles(t, dir, map[string]string{"bye.md": "Bye {{name}}"})

	assert.Eventually(t, func() bool {
		_, ok := reg.FindByTrigger("bye")
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}
