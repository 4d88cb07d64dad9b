package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/palette"
	httpAdapter "github.com/aretw0/palette/pkg/adapters/http"
	"github.com/aretw0/palette/pkg/adapters/mcp"
	"github.com/aretw0/palette/pkg/runner"
)

const shutdownTimeout = 5 * time.Second

// localPipeline runs the catalog's own commands only.
func localPipeline(app *App) *runner.Pipeline {
	return runner.NewPipeline(runner.WithPipelineLogger(app.Logger))
}

// NewServeHandler builds the execution endpoint for app, with /metrics.
func NewServeHandler(ctx context.Context, app *App) (http.Handler, error) {
	spec, err := httpAdapter.LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	return httpAdapter.NewHandler(app.Engine.Registry(), localPipeline(app), spec,
		httpAdapter.WithVersion(palette.Version),
		httpAdapter.WithMetrics(app.Metrics.Handler()),
		httpAdapter.WithLogger(app.Logger),
	), nil
}

// RunServe serves the execution endpoint on port until SIGINT or SIGTERM.
func RunServe(opts RunOptions, port int) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := newServingApp(sigCtx, opts)
	if err != nil {
		return fmt.Errorf("error initializing palette: %w", err)
	}
	defer app.Close()

	if port == 0 {
		port = app.Config.Server.Port
	}
	handler, err := NewServeHandler(sigCtx, app)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		printSystemMessage(os.Stdout, "Starting Palette Server on %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-sigCtx.Done():
		printSystemMessage(os.Stdout, "Start shutdown... Signal: %v", sigCtx.Signal())

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			app.Logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		printSystemMessage(os.Stdout, "Palette Server stopped gracefully")
		return nil
	}
}

// RunMCP exposes template prompts and local commands to MCP clients.
// With stdio, stdout belongs to JSON-RPC, so nothing else is printed there.
func RunMCP(opts RunOptions, transport string, port int) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := newServingApp(sigCtx, opts)
	if err != nil {
		return fmt.Errorf("error initializing palette: %w", err)
	}
	defer app.Close()

	srv := mcp.NewServer(app.Engine.Registry(), localPipeline(app), palette.Version,
		mcp.WithServerLogger(app.Logger))
	srv.Sync()
	defer srv.Watch()()

	switch transport {
	case "stdio":
		app.Logger.Info("Starting Palette MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		if port == 0 {
			port = app.Config.Server.Port
		}
		app.Logger.Info("Starting Palette MCP Server (SSE)", "port", port)
		if err := srv.ServeSSE(sigCtx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		app.Logger.Info("MCP Server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}

// Search prints the items matching query, best first.
func Search(ctx context.Context, opts RunOptions, query string, w io.Writer) error {
	app, err := factory{opts: opts, interactive: true}.build(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	for _, m := range app.Engine.Search(query) {
		recent := ""
		if m.Recent {
			recent = " (recent)"
		}
		fmt.Fprintf(w, "%-32s %-24s %s%s\n", "/"+m.Item.Trigger, m.Item.Origin, m.Item.Description, recent)
	}
	return nil
}
