package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/palette"
	"github.com/aretw0/palette/internal/presentation/tui"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/muesli/termenv"
)

// RunSession executes an interactive palette session on stdin and stdout.
func RunSession(opts RunOptions) error {
	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	app, err := NewApp(sigCtx, opts)
	if err != nil {
		return fmt.Errorf("error initializing palette: %w", err)
	}
	defer app.Close()

	if !opts.Headless {
		tui.PrintBanner(os.Stdout, palette.Version)
	}

	c := app.Engine.NewComposer(sigCtx)
	defer c.Close()

	r := palette.NewRunner()
	r.Input = os.Stdin
	r.Output = os.Stdout
	r.Headless = opts.Headless
	if !opts.Headless {
		r.Renderer = tui.NewRenderer()
		r.Format = tui.MatchFormatter(termenv.NewOutput(os.Stdout).ColorProfile())
	}

	runErr := r.Run(sigCtx, c)
	if sig := sigCtx.Signal(); sig != nil && !opts.Headless {
		fmt.Println()
		printSystemMessage(os.Stdout, "Interrupted (%v).", sig)
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// TerminalNotifier prints notifications as system messages.
type TerminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalNotifier writes notifications to w.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{w: w}
}

// Notify implements ports.Notifier.
func (n *TerminalNotifier) Notify(ctx context.Context, note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if note.Message == "" {
		printSystemMessage(n.w, "[%s] %s", note.Level, note.Title)
		return
	}
	printSystemMessage(n.w, "[%s] %s: %s", note.Level, note.Title, note.Message)
}
