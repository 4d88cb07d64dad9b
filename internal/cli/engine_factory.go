package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/palette"
	"github.com/aretw0/palette/internal/config"
	"github.com/aretw0/palette/pkg/adapters/file"
	httpAdapter "github.com/aretw0/palette/pkg/adapters/http"
	loamAdapter "github.com/aretw0/palette/pkg/adapters/loam"
	"github.com/aretw0/palette/pkg/adapters/mcp"
	"github.com/aretw0/palette/pkg/adapters/memory"
	"github.com/aretw0/palette/pkg/adapters/process"
	redisAdapter "github.com/aretw0/palette/pkg/adapters/redis"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/observability"
	"github.com/aretw0/palette/pkg/ports"
	"github.com/aretw0/palette/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
)

// BuiltinSourceID is the source of the commands every palette session has.
const BuiltinSourceID = "builtin"

// App is an Engine wired from configuration, with everything that must be
// released when the command ends.
type App struct {
	Config     config.Config
	Engine     *palette.Engine
	Transcript *memory.Transcript
	Metrics    *observability.Metrics
	Logger     *slog.Logger

	closers []io.Closer
}

type factory struct {
	opts        RunOptions
	interactive bool
	// serving leaves out the execution endpoint so a server never calls itself.
	serving  bool
	notifier ports.Notifier
}

// NewApp builds the engine for an interactive session.
func NewApp(ctx context.Context, opts RunOptions) (*App, error) {
	return factory{opts: opts, interactive: true, notifier: NewTerminalNotifier(os.Stderr)}.build(ctx)
}

// newServingApp builds the engine behind `palette serve` and `palette mcp`.
func newServingApp(ctx context.Context, opts RunOptions) (*App, error) {
	return factory{opts: opts, serving: true}.build(ctx)
}

func (f factory) build(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig(f.opts)
	if err != nil {
		return nil, err
	}
	logger, err := createLogger(f.opts.Debug, f.interactive, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Transcript: memory.NewTranscript(),
		Metrics:    observability.NewMetrics(prometheus.NewRegistry()),
		Logger:     logger,
	}

	hooks := app.Metrics.Hooks()
	if f.opts.Debug || !f.interactive {
		hooks = observability.LogHooks(logger).Merge(hooks)
	}
	engineOpts := []palette.Option{
		palette.WithLogger(logger),
		palette.WithLifecycleHooks(hooks),
	}
	if f.notifier != nil {
		engineOpts = append(engineOpts, palette.WithNotifier(f.notifier))
	}

	store, locker, err := app.recencyStore(cfg.Recency)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	engineOpts = append(engineOpts, palette.WithRecencyStore(store))
	if locker != nil {
		engineOpts = append(engineOpts, palette.WithLocker(locker))
	}

	transport, servers := app.connect(ctx, cfg.MCP.Servers, f.notifier)
	if transport != nil {
		engineOpts = append(engineOpts, palette.WithPromptTransport(transport))
	}

	var client *httpAdapter.Client
	if cfg.Execution.Endpoint != "" && !f.serving {
		client = httpAdapter.NewClient(cfg.Execution.Endpoint, httpAdapter.WithClientLogger(logger))
		engineOpts = append(engineOpts, palette.WithRemoteExecutor(client))
	}

	app.Engine = palette.New(app.Transcript, engineOpts...)
	app.Engine.Start(ctx)

	// Source failures are notified by the engine and never abort startup.
	_ = app.Engine.AddSource(ctx, builtins(app.Engine))
	if src, err := commandSource(cfg.Commands); err != nil {
		logger.Warn("Failed to load commands", "path", cfg.Commands, "err", err)
	} else if src != nil {
		_ = app.Engine.AddSource(ctx, src)
	}
	if src, err := templateSource(cfg.Templates, logger); err != nil {
		logger.Warn("Failed to open templates", "dir", cfg.Templates, "err", err)
	} else if src != nil {
		_ = app.Engine.AddSource(ctx, src)
	}
	for _, id := range servers {
		_ = app.Engine.AddSource(ctx, registry.NewRemoteSource(transport, id))
	}
	if client != nil && cfg.Execution.ListCommands {
		_ = app.Engine.AddSource(ctx, httpAdapter.NewCommandSource(client))
	}

	return app, nil
}

// Close stops the engine and releases every connection.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) recencyStore(cfg config.RecencyConfig) (ports.RecencyStore, ports.DistributedLocker, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil
	case config.BackendRedis:
		opts, err := cfg.RedisOptions()
		if err != nil {
			return nil, nil, err
		}
		storeOpts := []redisAdapter.Option{}
		prefix := redisAdapter.DefaultPrefix
		if opts.Prefix != "" {
			prefix = opts.Prefix
			storeOpts = append(storeOpts, redisAdapter.WithPrefix(prefix))
		}
		if opts.Name != "" {
			storeOpts = append(storeOpts, redisAdapter.WithName(opts.Name))
		}
		if opts.TTL > 0 {
			storeOpts = append(storeOpts, redisAdapter.WithTTL(opts.TTL))
		}
		store := redisAdapter.New(opts.Addr, opts.Password, opts.DB, storeOpts...)
		a.closers = append(a.closers, store)

		var locker ports.DistributedLocker
		if opts.Lock {
			locker = redisAdapter.NewLocker(store.Client(), prefix)
		}
		return store, locker, nil
	default:
		opts, err := cfg.FileOptions()
		if err != nil {
			return nil, nil, err
		}
		return file.New(opts.Path), nil, nil
	}
}

// connect dials every configured prompt server. A server that cannot be
// reached is logged and left out; the others still serve prompts.
func (a *App) connect(ctx context.Context, servers []config.MCPServer, notifier ports.Notifier) (*mcp.Transport, []string) {
	if len(servers) == 0 {
		return nil, nil
	}
	t := mcp.NewTransport(
		mcp.WithTransportLogger(a.Logger),
		mcp.WithClientVersion(palette.Version),
	)
	a.closers = append(a.closers, t)

	var connected []string
	for _, s := range servers {
		var err error
		if s.URL != "" {
			err = t.ConnectSSE(ctx, s.ID, s.URL)
		} else {
			err = t.ConnectStdio(ctx, s.ID, s.Command, s.Env, s.Args...)
		}
		if err != nil {
			a.Logger.Warn("Failed to connect prompt server", "server", s.ID, "err", err)
			if notifier != nil {
				notifier.Notify(ctx, domain.Notification{
					Level:   domain.NotifyWarn,
					Title:   "Prompt server " + s.ID + " unavailable",
					Message: err.Error(),
				})
			}
			continue
		}
		connected = append(connected, s.ID)
	}
	return t, connected
}

func commandSource(path string) (ports.ItemSource, error) {
	if path == "" {
		return nil, nil
	}
	cmds, err := process.LoadCommands(path)
	if err != nil || len(cmds) == 0 {
		return nil, err
	}
	return process.NewRunner(
		process.WithCommands(cmds),
		process.WithBaseDir(filepath.Dir(path)),
	), nil
}

func templateSource(dir string, logger *slog.Logger) (ports.ItemSource, error) {
	if dir == "" {
		return nil, nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, nil
	}
	src, err := loamAdapter.Open(dir, loamAdapter.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return src, nil
}

// builtins are the commands available even without configuration.
func builtins(e *palette.Engine) ports.ItemSource {
	help := domain.NewCommand("help", "List every command and prompt", func(ctx context.Context, req domain.RunRequest) (any, error) {
		var b strings.Builder
		for _, m := range e.Search("") {
			fmt.Fprintf(&b, "- `/%s` %s\n", m.Item.Trigger, m.Item.Description)
		}
		return b.String(), nil
	})
	sources := domain.NewCommand("sources", "List loaded item sources", func(ctx context.Context, req domain.RunRequest) (any, error) {
		counts := make(map[string]int)
		for _, item := range e.Registry().List() {
			counts[item.SourceID]++
		}
		ids := e.Registry().Sources()
		sort.Strings(ids)
		var b strings.Builder
		for _, id := range ids {
			fmt.Fprintf(&b, "- %s: %d items\n", id, counts[id])
		}
		return b.String(), nil
	})
	return memory.NewSource(BuiltinSourceID, help, sources)
}
