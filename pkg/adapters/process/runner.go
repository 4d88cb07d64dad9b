package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/aretw0/palette/pkg/domain"
)

// EnvPrefix prefixes the environment variables carrying argument values.
const EnvPrefix = "PALETTE_ARG_"

// ErrNotRegistered is returned for names outside the allow-list.
var ErrNotRegistered = errors.New("process command not registered")

// Runner executes allow-listed local processes and streams their stdout.
// Argument values never reach the command line; they travel as environment
// variables so they cannot inject flags.
type Runner struct {
	mu       sync.RWMutex
	registry map[string]CommandConfig
	baseDir  string
	sourceID string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithCommands populates the allow-list from a loaded config.
func WithCommands(cmds []CommandConfig) RunnerOption {
	return func(r *Runner) {
		for _, c := range cmds {
			r.registry[c.Name] = c
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithSourceID overrides the source ID, "process" by default.
func WithSourceID(id string) RunnerOption {
	return func(r *Runner) {
		r.sourceID = id
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]CommandConfig),
		sourceID: "process",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(cfg CommandConfig) {
	r.mu.Lock()
	r.registry[cfg.Name] = cfg
	r.mu.Unlock()
}

// SourceID implements ports.ItemSource.
func (r *Runner) SourceID() string {
	return r.sourceID
}

// ListItems implements ports.ItemSource: one local command per allow-listed process.
func (r *Runner) ListItems(ctx context.Context) ([]domain.MenuItem, error) {
	r.mu.RLock()
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	items := make([]domain.MenuItem, 0, len(names))
	for _, name := range names {
		r.mu.RLock()
		cfg := r.registry[name]
		r.mu.RUnlock()

		item := domain.NewCommand(name, cfg.Description, r.runFunc(name), cfg.Arguments...)
		if cfg.Title != "" {
			item.Title = cfg.Title
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Runner) runFunc(name string) domain.RunFunc {
	return func(ctx context.Context, req domain.RunRequest) (any, error) {
		return r.Start(ctx, name, req.Args)
	}
}

// Start launches the named process and returns its stdout as a stream.
// A non-zero exit surfaces as a read error carrying stderr. Cancelling ctx kills the process.
func (r *Runner) Start(ctx context.Context, name string, args domain.ArgumentValues) (io.ReadCloser, error) {
	r.mu.RLock()
	cfg, ok := r.registry[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = r.baseDir
	cmd.Env = append(cmd.Environ(), environment(cfg.Environment, args)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach stdout: %w", err)
	}
	stream := &processStream{cmd: cmd, stdout: stdout}
	cmd.Stderr = &stream.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	return stream, nil
}

func environment(static map[string]string, args domain.ArgumentValues) []string {
	env := make([]string, 0, len(static)+len(args))
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for _, k := range args.Keys() {
		env = append(env, EnvPrefix+envKey(k)+"="+args[k])
	}
	return env
}

// envKey upper-cases name and replaces anything but letters and digits with '_'.
func envKey(name string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)
}

// processStream reads stdout and reaps the process at EOF.
type processStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	once sync.Once
	err  error
}

func (p *processStream) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if errors.Is(err, io.EOF) {
		if werr := p.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (p *processStream) Close() error {
	_ = p.stdout.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.wait()
	return nil
}

func (p *processStream) wait() error {
	p.once.Do(func() {
		if err := p.cmd.Wait(); err != nil {
			p.err = fmt.Errorf("execution failed: %v. Stderr: %s", err, strings.TrimSpace(p.stderr.String()))
		}
	})
	return p.err
}
