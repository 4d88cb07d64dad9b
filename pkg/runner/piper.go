package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode"

	"github.com/aretw0/palette/internal/logging"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
)

const readBufferSize = 32 * 1024

// Outcome is the terminal result of piping one stream.
type Outcome struct {
	Status  domain.MessageStatus
	Content string
	Bytes   int
	Err     error
}

// Piper copies a stream into one transcript message, chunk by chunk.
type Piper struct {
	transcript ports.Transcript
	notifier   ports.Notifier
	logger     *slog.Logger
	onChunk    func(ctx context.Context, n int)
}

// NewPiper creates a piper writing into transcript. notifier may be nil.
func NewPiper(transcript ports.Transcript, notifier ports.Notifier, logger *slog.Logger) *Piper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Piper{transcript: transcript, notifier: notifier, logger: logger}
}

type chunk struct {
	data []byte
	err  error
}

// Pipe reads stream until it ends, fails or ctx is cancelled.
//
// After every chunk the message is overwritten with the full text decoded so
// far. On end of stream the trailing whitespace is trimmed and the message is
// finalized as completed. On failure the content becomes "Error: <message>",
// the message is finalized as errored and a notification is sent. On abort the
// message keeps what was applied before the abort, no chunk read afterwards is
// applied, and no notification is sent. The stream is always closed.
func (p *Piper) Pipe(ctx context.Context, targetID, label string, stream io.ReadCloser) Outcome {
	// Finalization must survive the abort that ended the stream.
	finalCtx := context.WithoutCancel(ctx)

	done := make(chan struct{})
	chunks := make(chan chunk)
	go p.read(ctx, stream, chunks, done)
	defer func() {
		close(done)
		_ = stream.Close()
	}()

	dec := newStreamDecoder()
	var (
		text  strings.Builder
		total int
	)
	for {
		select {
		case <-ctx.Done():
			return p.abort(finalCtx, targetID, text.String(), total)
		case c := <-chunks:
			if ctx.Err() != nil {
				return p.abort(finalCtx, targetID, text.String(), total)
			}
			if len(c.data) > 0 {
				total += len(c.data)
				text.WriteString(dec.Write(c.data))
				if err := p.transcript.SetContent(ctx, targetID, text.String()); err != nil {
					p.logger.Warn("Failed to update message", "target", targetID, "error", err)
				}
				if p.onChunk != nil {
					p.onChunk(ctx, len(c.data))
				}
			}
			switch {
			case c.err == nil:
				continue
			case errors.Is(c.err, io.EOF):
				text.WriteString(dec.Flush())
				return p.complete(finalCtx, targetID, text.String(), total)
			case ctx.Err() != nil:
				return p.abort(finalCtx, targetID, text.String(), total)
			default:
				return p.Fail(finalCtx, targetID, label, c.err)
			}
		}
	}
}

// Fail writes err into the target message, finalizes it as errored and notifies.
func (p *Piper) Fail(ctx context.Context, targetID, label string, err error) Outcome {
	content := "Error: " + err.Error()
	if setErr := p.transcript.SetContent(ctx, targetID, content); setErr != nil {
		p.logger.Warn("Failed to write error", "target", targetID, "error", setErr)
	}
	p.finalize(ctx, targetID, domain.StatusErrored)

	if p.notifier != nil {
		title := "Command failed"
		if label != "" {
			title = label + " failed"
		}
		p.notifier.Notify(ctx, domain.Notification{Level: domain.NotifyError, Title: title, Message: err.Error()})
	}
	p.logger.Warn("Execution failed", "target", targetID, "error", err)
	return Outcome{Status: domain.StatusErrored, Content: content, Err: err}
}

// Abort finalizes the target message as aborted without touching its content.
func (p *Piper) Abort(ctx context.Context, targetID string) Outcome {
	return p.abort(ctx, targetID, "", 0)
}

// read stops before the next Read once ctx is done or Pipe has returned.
func (p *Piper) read(ctx context.Context, stream io.Reader, out chan<- chunk, done <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Stream panicked", "panic", r, "stack", string(debug.Stack()))
			select {
			case out <- chunk{err: fmt.Errorf("stream panicked: %v", r)}:
			case <-done:
			}
		}
	}()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		default:
		}
		buf := make([]byte, readBufferSize)
		n, err := stream.Read(buf)
		select {
		case out <- chunk{data: buf[:n], err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *Piper) complete(ctx context.Context, targetID, text string, total int) Outcome {
	content := strings.TrimRightFunc(text, unicode.IsSpace)
	if err := p.transcript.SetContent(ctx, targetID, content); err != nil {
		p.logger.Warn("Failed to update message", "target", targetID, "error", err)
	}
	p.finalize(ctx, targetID, domain.StatusCompleted)
	return Outcome{Status: domain.StatusCompleted, Content: content, Bytes: total}
}

func (p *Piper) abort(ctx context.Context, targetID, text string, total int) Outcome {
	p.finalize(ctx, targetID, domain.StatusAborted)
	p.logger.Debug("Execution aborted", "target", targetID, "bytes", total)
	return Outcome{Status: domain.StatusAborted, Content: text, Bytes: total, Err: context.Canceled}
}

func (p *Piper) finalize(ctx context.Context, targetID string, status domain.MessageStatus) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.transcript.Finalize(ctx, targetID, status); err != nil {
		p.logger.Warn("Failed to finalize message", "target", targetID, "status", status, "error", err)
	}
}
