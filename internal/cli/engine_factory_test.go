package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/palette/internal/testutils"
	"github.com/aretw0/palette/pkg/adapters/memory"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectCommands = `commands:
  - name: greet
    command: sh
    args: ["-c", "printf hello"]
    description: Say hello
`

const projectPrompt = `---
description: Review a snippet
---
Review this {{code}}`

func TestFactory_WiresSourcesFromConfig(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"palette.yaml": `
recency:
  backend: memory
mcp:
  servers:
    - id: lit
      command: palette-test-missing-binary
`,
		"commands.yaml":     projectCommands,
		"prompts/review.md": projectPrompt,
	})
	notifier := memory.NewNotifier()

	app, err := factory{opts: RunOptions{Dir: dir}, interactive: true, notifier: notifier}.build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	reg := app.Engine.Registry()
	for _, id := range []string{"cmd.help", "cmd.sources", "cmd.greet", "prompt.review"} {
		_, ok := reg.Get(id)
		assert.True(t, ok, "missing %s", id)
	}

	var warned bool
	for _, n := range notifier.All() {
		if n.Level == domain.NotifyWarn && n.Title == "Prompt server lit unavailable" {
			warned = true
		}
	}
	assert.True(t, warned, "an unreachable server is reported, not fatal")
}

func TestFactory_BuiltinCommands(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"palette.yaml":  "recency:\n  backend: memory\n",
		"commands.yaml": projectCommands,
	})
	app, err := factory{opts: RunOptions{Dir: dir}, interactive: true, notifier: memory.NewNotifier()}.build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	help, ok := app.Engine.Registry().Get("cmd.help")
	require.True(t, ok)
	h, err := app.Engine.Executor().Execute(context.Background(), help, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	assert.Contains(t, out.Content, "`/greet` Say hello")
	assert.Contains(t, out.Content, "`/sources`")
}

func TestFactory_RedisRecency(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := testutils.SetupProject(t, map[string]string{
		"palette.yaml": `
recency:
  backend: redis
  options:
    addr: ` + mr.Addr() + `
    prefix: "test:"
    name: alice
    lock: true
`,
	})
	app, err := factory{opts: RunOptions{Dir: dir}, interactive: true, notifier: memory.NewNotifier()}.build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	app.Engine.MarkUsed("cmd.help")
	assert.Eventually(t, func() bool {
		return mr.Exists("test:recent:alice")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFactory_InvalidConfig(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"palette.yaml": "recency:\n  backend: etcd\n",
	})
	_, err := factory{opts: RunOptions{Dir: dir}, interactive: true}.build(context.Background())
	assert.ErrorContains(t, err, "unknown recency backend")
}

func TestServeHandler(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"palette.yaml": `
recency:
  backend: memory
execution:
  endpoint: http://127.0.0.1:1
`,
		"commands.yaml": projectCommands,
	})
	app, err := newServingApp(context.Background(), RunOptions{Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	handler, err := NewServeHandler(context.Background(), app)
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	body := func(path string) string {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}

	assert.Contains(t, body("/commands"), `"name":"greet"`)
	assert.Contains(t, body("/metrics"), `palette_source_items{source="builtin"} 2`)
}

func TestSearch(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"palette.yaml":  "recency:\n  backend: memory\n",
		"commands.yaml": projectCommands,
	})
	var out bytes.Buffer
	require.NoError(t, Search(context.Background(), RunOptions{Dir: dir}, "gre", &out))
	assert.Contains(t, out.String(), "/greet")
	assert.NotContains(t, out.String(), "/sources")
}

func TestTerminalNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf)
	n.Notify(context.Background(), domain.Notification{Level: domain.NotifyError, Title: "/greet failed", Message: "exit status 1"})
	n.Notify(context.Background(), domain.Notification{Level: domain.NotifyInfo, Title: "ready"})

	assert.Equal(t, ">>> [error] /greet failed: exit status 1\n>>> [info] ready\n", buf.String())
}
