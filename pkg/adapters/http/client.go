package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
)

// maxErrorBody caps how much of a failed response becomes the error message.
const maxErrorBody = 64 << 10

// Client implements ports.RemoteExecutor against an execution endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides http.DefaultClient. Its Timeout must leave room for long streams.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithClientLogger configures the structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client for the endpoint at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute posts {name, arguments} and returns the response body as the output stream.
// A non-2xx answer becomes a *domain.ExecutionError carrying the body text;
// a response without a body is domain.ErrEmptyBody.
func (c *Client) Execute(ctx context.Context, name string, args domain.ArgumentValues) (io.ReadCloser, error) {
	payload, err := json.Marshal(ExecuteRequest{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("Remote execution rejected", "name", name, "status", resp.StatusCode)
		return nil, &domain.ExecutionError{Status: resp.StatusCode, Message: strings.TrimSpace(string(text))}
	}
	if resp.Body == nil || resp.Body == http.NoBody || resp.StatusCode == http.StatusNoContent {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, domain.ErrEmptyBody
	}
	return resp.Body, nil
}

// Commands lists the commands the endpoint can execute.
func (c *Client) Commands(ctx context.Context) ([]Command, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/commands", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build commands request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.ExecutionError{Status: resp.StatusCode, Message: strings.TrimSpace(string(text))}
	}

	var out []Command
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode command listing: %w", err)
	}
	return out, nil
}

// CommandSource implements ports.ItemSource over the endpoint's command listing.
// Its items have no local implementation, so executing them goes back through the Client.
type CommandSource struct {
	client *Client
	id     string
}

// NewCommandSource creates a source for the commands served by client.
func NewCommandSource(client *Client) *CommandSource {
	id := client.baseURL
	if u, err := url.Parse(client.baseURL); err == nil && u.Host != "" {
		id = u.Host
	}
	return &CommandSource{client: client, id: "http:" + id}
}

// SourceID implements ports.ItemSource.
func (s *CommandSource) SourceID() string {
	return s.id
}

// ListItems implements ports.ItemSource.
func (s *CommandSource) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	cmds, err := s.client.Commands(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]domain.MenuItem, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd.Name == "" {
			continue
		}
		item := domain.NewCommand(cmd.Name, cmd.Description, nil, cmd.Arguments...)
		if cmd.Title != "" {
			item.Title = cmd.Title
		}
		items = append(items, item)
	}
	return items, nil
}
