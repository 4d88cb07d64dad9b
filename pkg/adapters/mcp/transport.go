package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ClientName is announced to providers during the initialize handshake.
const ClientName = "palette"

// Transport implements ports.PromptTransport over a set of connected MCP servers.
// Connection lifecycle beyond connect and close is the host's concern.
type Transport struct {
	mu      sync.RWMutex
	clients map[string]*client.Client
	version string
	logger  *slog.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithTransportLogger configures the structured logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithClientVersion sets the version announced to providers.
func WithClientVersion(v string) TransportOption {
	return func(t *Transport) {
		t.version = v
	}
}

// NewTransport creates a transport with no servers.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		clients: make(map[string]*client.Client),
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect starts and initializes c, then serves it as serverID.
// Use it for in-process and SSE clients.
func (t *Transport) Connect(ctx context.Context, serverID string, c *client.Client) error {
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mcp client %s: %w", serverID, err)
	}
	return t.add(ctx, serverID, c)
}

// ConnectStdio spawns command and serves it as serverID.
func (t *Transport) ConnectStdio(ctx context.Context, serverID, command string, env []string, args ...string) error {
	// The stdio client starts its subprocess on construction.
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return fmt.Errorf("failed to spawn mcp server %s: %w", serverID, err)
	}
	return t.add(ctx, serverID, c)
}

// ConnectSSE connects to an SSE endpoint and serves it as serverID.
func (t *Transport) ConnectSSE(ctx context.Context, serverID, url string) error {
	c, err := client.NewSSEMCPClient(url)
	if err != nil {
		return fmt.Errorf("failed to create sse client %s: %w", serverID, err)
	}
	return t.Connect(ctx, serverID, c)
}

func (t *Transport) add(ctx context.Context, serverID string, c *client.Client) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: t.version}
	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize mcp server %s: %w", serverID, err)
	}

	t.mu.Lock()
	old := t.clients[serverID]
	t.clients[serverID] = c
	t.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	t.logger.Info("MCP server connected", "server", serverID)
	return nil
}

// Servers returns the connected server IDs, sorted.
func (t *Transport) Servers() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.clients))
	for id := range t.clients {
		out = append(out, id)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Disconnect closes and forgets serverID.
func (t *Transport) Disconnect(serverID string) error {
	t.mu.Lock()
	c, ok := t.clients[serverID]
	delete(t.clients, serverID)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrServerNotFound, serverID)
	}
	return c.Close()
}

// Close disconnects every server.
func (t *Transport) Close() error {
	var first error
	for _, id := range t.Servers() {
		if err := t.Disconnect(id); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *Transport) client(serverID string) (*client.Client, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.clients[serverID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrServerNotFound, serverID)
	}
	return c, nil
}

// ListPrompts implements ports.PromptTransport.
func (t *Transport) ListPrompts(ctx context.Context, serverID, cursor string) (domain.PromptPage, error) {
	c, err := t.client(serverID)
	if err != nil {
		return domain.PromptPage{}, err
	}

	req := mcp.ListPromptsRequest{}
	req.Params.Cursor = mcp.Cursor(cursor)
	res, err := c.ListPromptsByPage(ctx, req)
	if err != nil {
		return domain.PromptPage{}, fmt.Errorf("failed to list prompts on %s: %w", serverID, err)
	}

	page := domain.PromptPage{
		Prompts:    make([]domain.RemotePrompt, 0, len(res.Prompts)),
		NextCursor: string(res.NextCursor),
	}
	for _, p := range res.Prompts {
		args := make([]domain.Argument, 0, len(p.Arguments))
		for _, a := range p.Arguments {
			args = append(args, domain.Argument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		page.Prompts = append(page.Prompts, domain.RemotePrompt{
			Name:        p.Name,
			Description: p.Description,
			Arguments:   args,
		})
	}
	return page, nil
}

// FetchPromptMessages implements ports.PromptTransport.
// Non-text content is skipped.
func (t *Transport) FetchPromptMessages(ctx context.Context, serverID, name string, args domain.ArgumentValues) (domain.PromptResult, error) {
	c, err := t.client(serverID)
	if err != nil {
		return domain.PromptResult{}, err
	}

	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = map[string]string(args.Clone())
	res, err := c.GetPrompt(ctx, req)
	if err != nil {
		return domain.PromptResult{}, fmt.Errorf("failed to get prompt %s on %s: %w", name, serverID, err)
	}

	out := domain.PromptResult{Description: res.Description}
	for _, m := range res.Messages {
		text, ok := mcp.AsTextContent(m.Content)
		if !ok {
			t.logger.Debug("Skipping non-text prompt content", "server", serverID, "prompt", name)
			continue
		}
		out.Messages = append(out.Messages, domain.PromptMessage{
			Role: domain.Role(m.Role),
			Text: text.Text,
		})
	}
	return out, nil
}

// CompleteArgument implements ports.PromptTransport.
// The protocol revision in use carries no context arguments, so ContextArgs is not sent.
func (t *Transport) CompleteArgument(ctx context.Context, r domain.CompletionRequest) ([]string, error) {
	c, err := t.client(r.ServerID)
	if err != nil {
		return nil, err
	}

	req := mcp.CompleteRequest{}
	req.Params.Ref = mcp.PromptReference{Type: "ref/prompt", Name: r.PromptName}
	req.Params.Argument.Name = r.ArgumentName
	req.Params.Argument.Value = r.Value
	res, err := c.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to complete %s.%s: %w", r.PromptName, r.ArgumentName, err)
	}
	return res.Completion.Values, nil
}
