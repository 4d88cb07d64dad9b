package palette

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/registry"
)

// maxListed caps how many overlay entries the runner prints.
const maxListed = 8

// Runner drives a Composer from line-based IO.
// This allows for easy testing and integration with different frontends (CLI, pipes, scripts).
//
// A line starting with '/' is typed into the composer and the best match is
// selected. Arguments are then asked one by one. Other lines are scanned for
// canonical tokens, which resume argument collection for their items.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
	// Format renders one overlay entry. The default prints its label.
	Format func(registry.Match) string
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run reads lines until EOF, "exit" or "quit", or until ctx is done.
func (r *Runner) Run(ctx context.Context, c *Composer) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)

	if !r.Headless {
		fmt.Fprintln(r.Output, "--- Palette (type /command, exit to quit) ---")
	}

	for {
		r.prompt("> ")
		line, err := r.readLine(ctx, lines)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch line {
		case "":
			continue
		case "exit", "quit":
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		}

		if err := r.handle(ctx, c, lines, line); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(r.Output, "error: %v\n", err)
		}
	}
}

func (r *Runner) handle(ctx context.Context, c *Composer, lines *bufio.Reader, line string) error {
	ectx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := c.Events(ectx)

	if !strings.HasPrefix(line, "/") {
		expansions := c.Expand(line)
		if len(expansions) == 0 {
			fmt.Fprintln(r.Output, line)
			return nil
		}
		for _, x := range expansions {
			if !x.Item.NeedsArguments() {
				continue
			}
			if err := c.Resume(x, nil); err != nil {
				return err
			}
			if err := r.collect(ctx, c, lines); err != nil {
				return err
			}
			if err := r.settle(ctx, c, events); err != nil {
				return err
			}
		}
		return nil
	}

	c.Input(line, len(line))
	results := c.Results()
	if len(results) == 0 {
		c.CloseOverlay()
		fmt.Fprintf(r.Output, "no command matches %s\n", line)
		return nil
	}
	if !r.Headless {
		r.list(results)
	}
	if err := c.Select(ctx); err != nil {
		return err
	}

	if c.Session() != nil {
		if err := r.collect(ctx, c, lines); err != nil {
			return err
		}
	}
	return r.settle(ctx, c, events)
}

// collect asks for every argument of the live session and submits it.
func (r *Runner) collect(ctx context.Context, c *Composer, lines *bufio.Reader) error {
	for {
		s := c.Session()
		if s == nil {
			return nil
		}
		arg := s.Current()
		r.prompt(argPrompt(arg))

		value, err := r.readLine(ctx, lines)
		if err != nil {
			c.CancelSession()
			return err
		}
		if value == "!cancel" {
			c.CancelSession()
			fmt.Fprintln(r.Output, "cancelled")
			return nil
		}
		if err := c.SetArgument(ctx, value); err != nil {
			return err
		}

		if !s.IsLast() {
			if !s.Next() {
				fmt.Fprintf(r.Output, "%s is required\n", arg.Name)
			}
			continue
		}

		err = c.Submit(ctx)
		var missing *domain.MissingArgumentsError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &missing):
			fmt.Fprintln(r.Output, err)
		default:
			return err
		}
	}
}

// settle waits for the action started by the latest selection and prints its result.
func (r *Runner) settle(ctx context.Context, c *Composer, events <-chan Event) error {
	for phase := c.Phase(); phase == PhaseValidating; phase = c.Phase() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return ctx.Err()
			}
		}
	}

	if h := c.Handle(); h != nil {
		out, err := h.Wait(ctx)
		if err != nil {
			return err
		}
		if out.Status == domain.StatusAborted {
			fmt.Fprintln(r.Output, "(aborted)")
			return nil
		}
		r.print(out.Content)
		return nil
	}

	if p, ok := c.Preview(); ok {
		var b strings.Builder
		for _, m := range p.Messages {
			fmt.Fprintf(&b, "**%s**: %s\n\n", m.Role, m.Text)
		}
		r.print(b.String())
	}
	return nil
}

func (r *Runner) list(results []registry.Match) {
	for i, m := range results {
		if i == maxListed {
			fmt.Fprintf(r.Output, "  … %d more\n", len(results)-maxListed)
			break
		}
		label := m.Item.Label()
		if r.Format != nil {
			label = r.Format(m)
		}
		fmt.Fprintf(r.Output, "  %s\n", label)
	}
}

func (r *Runner) print(content string) {
	output := content
	if r.Renderer != nil {
		if rendered, err := r.Renderer(content); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(output))
}

func (r *Runner) prompt(p string) {
	if !r.Headless {
		fmt.Fprint(r.Output, p)
	}
}

// readLine returns the next trimmed line. A final line without a newline is still returned.
func (r *Runner) readLine(ctx context.Context, lines *bufio.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || text == "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func argPrompt(arg domain.Argument) string {
	var b strings.Builder
	b.WriteString(arg.Name)
	if arg.Required {
		b.WriteString("*")
	}
	if arg.Placeholder != "" {
		fmt.Fprintf(&b, " [%s]", arg.Placeholder)
	}
	b.WriteString("> ")
	return b.String()
}
