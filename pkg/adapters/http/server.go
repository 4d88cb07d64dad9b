package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/runner"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

// Catalog is the part of the registry the endpoint serves.
type Catalog interface {
	List() []domain.MenuItem
	FindByTrigger(trigger string) (domain.MenuItem, bool)
	Subscribe(fn func()) func()
}

// Server is the remote execution endpoint: it runs the catalog's local commands
// on behalf of composers that only know them by name.
type Server struct {
	catalog  Catalog
	pipeline *runner.Pipeline
	spec     *openapi3.T
	version  string
	metrics  http.Handler
	logger   *slog.Logger
}

// HandlerOption configures the Server.
type HandlerOption func(*Server)

// WithVersion sets the version reported by /info.
func WithVersion(v string) HandlerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) HandlerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler. spec is the document from LoadSpec; /info reports its version.
func NewHandler(catalog Catalog, pipeline *runner.Pipeline, spec *openapi3.T, opts ...HandlerOption) http.Handler {
	s := &Server{
		catalog:  catalog,
		pipeline: pipeline,
		spec:     spec,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Get("/commands", s.ListCommands)
	r.Post("/execute", s.Execute)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Palette API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec != nil && s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, map[string]string{
		"app":         "palette-http",
		"version":     strings.TrimSpace(s.version),
		"api_version": apiVersion,
	})
}

// ListCommands handles the GET /commands request.
func (s *Server) ListCommands(w http.ResponseWriter, r *http.Request) {
	out := []Command{}
	for _, item := range s.catalog.List() {
		if !servable(item) {
			continue
		}
		out = append(out, Command{
			Name:        item.Trigger,
			Title:       item.Title,
			Description: item.Description,
			Arguments:   item.Arguments,
		})
	}
	writeJSON(w, out)
}

// Execute handles the POST /execute request, streaming the command output as it is produced.
// Failures before the first byte map to a status code; later failures abort the connection
// so the client observes a read error instead of a silently truncated body.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	var body ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("Execute: Invalid request body", "error", err)
		return
	}

	item, ok := s.catalog.FindByTrigger(body.Name)
	if !ok || !servable(item) {
		http.Error(w, fmt.Sprintf("Unknown command: %s", body.Name), http.StatusNotFound)
		return
	}

	args := domain.ArgumentValues(body.Arguments)
	if missing := args.Missing(item.Arguments); len(missing) > 0 {
		http.Error(w, (&domain.MissingArgumentsError{ItemID: item.ID, Names: missing}).Error(), http.StatusBadRequest)
		return
	}
	clean, err := runner.SanitizeArguments(args)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
		s.logger.Warn("Execute: Input rejected", "command", body.Name, "error", err)
		return
	}

	stream, err := s.pipeline.Open(r.Context(), item, clean)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		s.logger.Error("Execute failed", "command", body.Name, "error", err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.logger.Error("Execute: stream failed", "command", body.Name, "error", err)
			panic(http.ErrAbortHandler)
		}
	}
}

// SubscribeEvents handles the GET /events request (SSE): one "catalog" event per registry change.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	changes := make(chan struct{}, 1)
	unsubscribe := s.catalog.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
			// A pending signal already covers this change.
		}
	})
	defer unsubscribe()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changes:
			fmt.Fprintf(w, "event: catalog\ndata: reload\n\n")
			flusher.Flush()
		}
	}
}

// servable reports whether the endpoint can run item itself. Commands without a
// local implementation would only bounce back to another endpoint.
func servable(item domain.MenuItem) bool {
	p, ok := item.Payload.(domain.CommandPayload)
	return ok && p.Run != nil
}

func statusFor(err error) int {
	var missing *domain.MissingArgumentsError
	switch {
	case errors.As(err, &missing), errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrNotExecutable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "error", err)
	}
}
