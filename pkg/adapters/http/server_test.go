package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	adapter "github.com/aretw0/palette/pkg/adapters/http"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/registry"
	"github.com/aretw0/palette/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.NewRegistry()
	items := []domain.MenuItem{
		domain.NewCommand("shout", "Upper-cases text", func(ctx context.Context, req domain.RunRequest) (any, error) {
			return strings.ToUpper(req.Args["text"]), nil
		}, domain.Argument{Name: "text", Required: true}),
		domain.NewCommand("count", "Streams chunks", func(ctx context.Context, req domain.RunRequest) (any, error) {
			ch := make(chan []byte, 3)
			ch <- []byte("one ")
			ch <- []byte("two ")
			ch <- []byte("three")
			close(ch)
			return (<-chan []byte)(ch), nil
		}),
		domain.NewCommand("fail", "Fails before output", func(ctx context.Context, req domain.RunRequest) (any, error) {
			return nil, errors.New("database unavailable")
		}),
		domain.NewCommand("flaky", "Fails mid-stream", func(ctx context.Context, req domain.RunRequest) (any, error) {
			return io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("boom"))), nil
		}),
		domain.NewCommand("elsewhere", "No local implementation", nil),
		domain.NewTemplatePrompt("review", "Review", []domain.PromptMessage{{Role: domain.RoleUser, Text: "hi"}}),
	}
	for _, item := range items {
		require.NoError(t, reg.Register(item))
	}
	return reg
}

func newServer(t *testing.T, reg *registry.Registry) *httptest.Server {
	t.Helper()
	spec, err := adapter.LoadSpec(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(adapter.NewHandler(reg, runner.NewPipeline(), spec, adapter.WithVersion("1.2.3\n")))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestLoadSpec_DocumentsEveryRoute(t *testing.T) {
	spec, err := adapter.LoadSpec(context.Background())
	require.NoError(t, err)

	for _, path := range []string{"/health", "/info", "/openapi.yaml", "/swagger", "/commands", "/execute", "/events", "/metrics"} {
		assert.NotNil(t, spec.Paths.Value(path), "route %s is not documented", path)
	}
}

func TestServer_HealthAndInfo(t *testing.T) {
	srv := newServer(t, newCatalog(t))

	var health map[string]string
	getJSON(t, srv.URL+"/health", &health)
	assert.Equal(t, "ok", health["status"])

	var info map[string]string
	getJSON(t, srv.URL+"/info", &info)
	assert.Equal(t, "palette-http", info["app"])
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	resp, err := http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "Palette Execution API")
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := newServer(t, newCatalog(t))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/execute", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_ListCommands(t *testing.T) {
	srv := newServer(t, newCatalog(t))

	var cmds []adapter.Command
	getJSON(t, srv.URL+"/commands", &cmds)

	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"shout", "count", "fail", "flaky"}, names,
		"prompts and commands without an implementation are not served")
}

func TestClient_Execute(t *testing.T) {
	srv := newServer(t, newCatalog(t))
	client := adapter.NewClient(srv.URL + "/")
	ctx := context.Background()

	t.Run("Streams output", func(t *testing.T) {
		rc, err := client.Execute(ctx, "count", nil)
		require.NoError(t, err)
		defer rc.Close()
		out, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "one two three", string(out))
	})

	t.Run("Arguments", func(t *testing.T) {
		rc, err := client.Execute(ctx, "shout", domain.ArgumentValues{"text": "hey"})
		require.NoError(t, err)
		defer rc.Close()
		out, _ := io.ReadAll(rc)
		assert.Equal(t, "HEY", string(out))
	})

	cases := []struct {
		name   string
		cmd    string
		args   domain.ArgumentValues
		status int
		msg    string
	}{
		{"Unknown command", "nope", nil, http.StatusNotFound, "Unknown command: nope"},
		{"Missing argument", "shout", nil, http.StatusBadRequest, "missing required arguments"},
		{"Command error", "fail", nil, http.StatusInternalServerError, "database unavailable"},
		{"Not servable", "elsewhere", nil, http.StatusNotFound, "Unknown command"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Execute(ctx, tc.cmd, tc.args)
			var execErr *domain.ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, tc.status, execErr.Status)
			assert.Contains(t, execErr.Message, tc.msg)
		})
	}

	t.Run("Mid-stream failure", func(t *testing.T) {
		rc, err := client.Execute(ctx, "flaky", nil)
		require.NoError(t, err)
		defer rc.Close()
		_, err = io.ReadAll(rc)
		assert.Error(t, err, "an aborted stream must not look complete")
	})
}

func TestClient_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := adapter.NewClient(srv.URL).Execute(context.Background(), "anything", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyBody)
}

func TestCommandSource(t *testing.T) {
	srv := newServer(t, newCatalog(t))
	src := adapter.NewCommandSource(adapter.NewClient(srv.URL))

	assert.True(t, strings.HasPrefix(src.SourceID(), "http:127.0.0.1:"))

	items, err := src.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 4)
	for _, item := range items {
		require.NoError(t, item.Validate())
		p := item.Payload.(domain.CommandPayload)
		assert.Nil(t, p.Run, "imported commands execute remotely")
	}
}

func TestServer_SubscribeEvents(t *testing.T) {
	reg := newCatalog(t)
	srv := newServer(t, reg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan())
		return lines.Text()
	}
	assert.Equal(t, "event: ping", next())
	assert.Equal(t, "data: connected", next())
	assert.Equal(t, "", next())

	require.NoError(t, reg.Register(domain.NewCommand("late", "", func(context.Context, domain.RunRequest) (any, error) { return nil, nil })))

	assert.Equal(t, "event: catalog", next())
	assert.Equal(t, "data: reload", next())
}
