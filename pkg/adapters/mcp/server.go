package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/internal/runtime"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Catalog is the part of the registry the server publishes.
type Catalog interface {
	List() []domain.MenuItem
	Get(id string) (domain.MenuItem, bool)
	Subscribe(fn func()) func()
}

// Server exposes template prompts as MCP prompts and local commands as MCP tools,
// so external agents reach the same catalog a composer does.
type Server struct {
	catalog   Catalog
	pipeline  *runner.Pipeline
	mcpServer *server.MCPServer
	logger    *slog.Logger

	mu    sync.Mutex
	names map[string]string // published name -> item ID
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger configures the structured logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance publishing catalog.
// Remote prompts are not re-exported.
func NewServer(catalog Catalog, pipeline *runner.Pipeline, version string, opts ...ServerOption) *Server {
	s := &Server{
		catalog:  catalog,
		pipeline: pipeline,
		mcpServer: server.NewMCPServer("palette-mcp", version,
			server.WithPromptCapabilities(true),
			server.WithToolCapabilities(true),
		),
		logger: logging.NewNop(),
		names:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Sync()
	return s
}

// MCPServer exposes the underlying server, e.g. for an in-process client.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Watch republishes the catalog on every registry change until the returned func is called.
func (s *Server) Watch() func() {
	return s.catalog.Subscribe(s.Sync)
}

// Sync publishes every template prompt and command of the catalog.
// Handlers resolve items at call time, so a removed item fails cleanly.
func (s *Server) Sync() {
	for _, item := range s.catalog.List() {
		switch p := item.Payload.(type) {
		case domain.TemplatePayload:
			s.publishPrompt(item, p)
		case domain.CommandPayload:
			s.publishTool(item)
		}
	}
}

func (s *Server) remember(name, id string) {
	s.mu.Lock()
	s.names[name] = id
	s.mu.Unlock()
}

func (s *Server) lookup(name string) (domain.MenuItem, error) {
	s.mu.Lock()
	id, ok := s.names[name]
	s.mu.Unlock()
	if ok {
		if item, found := s.catalog.Get(id); found {
			return item, nil
		}
	}
	return domain.MenuItem{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, name)
}

func (s *Server) publishPrompt(item domain.MenuItem, _ domain.TemplatePayload) {
	opts := []mcp.PromptOption{mcp.WithPromptDescription(item.Description)}
	for _, a := range item.Arguments {
		argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(a.Description)}
		if a.Required {
			argOpts = append(argOpts, mcp.RequiredArgument())
		}
		opts = append(opts, mcp.WithArgument(a.Name, argOpts...))
	}

	s.remember(item.Trigger, item.ID)
	s.mcpServer.AddPrompt(mcp.NewPrompt(item.Trigger, opts...), s.handlePrompt)
}

func (s *Server) handlePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	item, err := s.lookup(req.Params.Name)
	if err != nil {
		return nil, err
	}
	tpl, ok := item.Payload.(domain.TemplatePayload)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, req.Params.Name)
	}

	values := domain.ArgumentValues(req.Params.Arguments)
	if missing := values.Missing(item.Arguments); len(missing) > 0 {
		return nil, &domain.MissingArgumentsError{ItemID: item.ID, Names: missing}
	}

	rendered := runtime.Render(tpl.Messages, values)
	messages := make([]mcp.PromptMessage, 0, len(rendered))
	for _, m := range rendered {
		messages = append(messages, mcp.NewPromptMessage(toRole(m.Role), mcp.NewTextContent(m.Text)))
	}
	return mcp.NewGetPromptResult(item.Description, messages), nil
}

func (s *Server) publishTool(item domain.MenuItem) {
	opts := []mcp.ToolOption{mcp.WithDescription(item.Description)}
	for _, a := range item.Arguments {
		propOpts := []mcp.PropertyOption{mcp.Description(a.Description)}
		if a.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		opts = append(opts, mcp.WithString(a.Name, propOpts...))
	}

	s.remember(item.Trigger, item.ID)
	s.mcpServer.AddTool(mcp.NewTool(item.Trigger, opts...), s.handleTool)
}

func (s *Server) handleTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, err := s.lookup(req.Params.Name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values := make(domain.ArgumentValues)
	for k, v := range req.GetArguments() {
		if str, ok := v.(string); ok {
			values[k] = str
		} else if v != nil {
			values[k] = fmt.Sprint(v)
		}
	}
	if missing := values.Missing(item.Arguments); len(missing) > 0 {
		return mcp.NewToolResultError((&domain.MissingArgumentsError{ItemID: item.ID, Names: missing}).Error()), nil
	}

	clean, err := runner.SanitizeArguments(values)
	if err != nil {
		s.logger.Warn("MCP tool call: input rejected", "tool", item.Trigger, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("input rejected: %v", err)), nil
	}

	stream, err := s.pipeline.Open(ctx, item, clean)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer stream.Close()

	out, err := io.ReadAll(stream)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// MCP has no system role; system messages are sent as user messages.
func toRole(r domain.Role) mcp.Role {
	if r == domain.RoleAssistant {
		return mcp.RoleAssistant
	}
	return mcp.RoleUser
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
