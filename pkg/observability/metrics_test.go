package observability_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	ev := &domain.ExecutionEvent{ExecutionID: "e1", ItemID: "cmd.echo", Origin: domain.OriginLocalCommand}
	hooks.OnExecutionStart(ctx, ev)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))

	hooks.OnExecutionChunk(ctx, &domain.ExecutionEvent{Origin: domain.OriginLocalCommand, Bytes: 5})
	hooks.OnExecutionChunk(ctx, &domain.ExecutionEvent{Origin: domain.OriginLocalCommand, Bytes: 7})

	end := *ev
	end.Status = domain.StatusCompleted
	end.Duration = 20 * time.Millisecond
	hooks.OnExecutionEnd(ctx, &end)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.StreamBytes.WithLabelValues(string(domain.OriginLocalCommand))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues(string(domain.OriginLocalCommand), string(domain.StatusCompleted))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))

	hooks.OnItemSelected(ctx, &domain.SelectionEvent{ItemID: "t.summarize", Origin: domain.OriginTemplatePrompt})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Selections.WithLabelValues(string(domain.OriginTemplatePrompt))))

	hooks.OnSourceLoaded(ctx, &domain.SourceEvent{SourceID: "templates", Items: 3})
	hooks.OnSourceLoaded(ctx, &domain.SourceEvent{SourceID: "mcp", Err: errors.New("unreachable")})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SourceItems.WithLabelValues("templates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceLoads.WithLabelValues("templates", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceLoads.WithLabelValues("mcp", "error")))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	m.Hooks().OnSourceLoaded(context.Background(), &domain.SourceEvent{SourceID: "templates", Items: 2})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `palette_source_items{source="templates"} 2`)
	assert.Contains(t, string(body), "palette_executions_in_flight 0")
}

func TestHooks_MergeLogsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug)
	m := observability.NewMetrics(prometheus.NewRegistry())

	hooks := m.Hooks().Merge(observability.LogHooks(logger))
	hooks.OnExecutionEnd(context.Background(), &domain.ExecutionEvent{
		ExecutionID: "e2",
		ItemID:      "cmd.fail",
		Origin:      domain.OriginLocalCommand,
		Status:      domain.StatusErrored,
		Err:         errors.New("boom"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues(string(domain.OriginLocalCommand), string(domain.StatusErrored))))
	out := buf.String()
	assert.True(t, strings.Contains(out, "execution ended"), out)
	assert.Contains(t, out, "boom")
}
