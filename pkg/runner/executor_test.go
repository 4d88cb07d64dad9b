package runner

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/palette/pkg/adapters/memory"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls []string
	body  string
	err   error
	nilRC bool
}

func (f *fakeRemote) Execute(ctx context.Context, name string, args domain.ArgumentValues) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.nilRC {
		return nil, nil
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func newExecutor(remote *fakeRemote, opts ...Option) (*Executor, *memory.Transcript, *memory.Notifier) {
	tr := memory.NewTranscript()
	notes := memory.NewNotifier()
	var popts []PipelineOption
	if remote != nil {
		popts = append(popts, WithRemoteExecutor(remote))
	}
	opts = append([]Option{WithNotifier(notes)}, opts...)
	return NewExecutor(NewPipeline(popts...), tr, opts...), tr, notes
}

func TestExecutor_LocalObject(t *testing.T) {
	exec, tr, _ := newExecutor(nil)
	item := domain.NewCommand("stats", "", func(_ context.Context, req domain.RunRequest) (any, error) {
		return map[string]int{"open": 3}, nil
	})

	h, err := exec.Execute(context.Background(), item, nil)
	require.NoError(t, err)
	out := h.Outcome()

	assert.Equal(t, domain.StatusCompleted, out.Status)
	msg, ok := tr.Get(h.TargetID)
	require.True(t, ok)
	assert.Equal(t, "{\n  \"open\": 3\n}", msg.Content)
	assert.Empty(t, exec.InFlight())
}

func TestExecutor_ArgumentsAreSanitized(t *testing.T) {
	exec, _, _ := newExecutor(nil)
	var got domain.ArgumentValues
	item := domain.NewCommand("echo", "", func(_ context.Context, req domain.RunRequest) (any, error) {
		got = req.Args
		return req.Args["text"], nil
	}, domain.Argument{Name: "text"})

	h, err := exec.Execute(context.Background(), item, domain.ArgumentValues{"text": "hi\x1b[0m\x00"})
	require.NoError(t, err)
	assert.Equal(t, "hi[0m", h.Outcome().Content)
	assert.Equal(t, "hi[0m", got["text"])

	_, err = exec.Execute(context.Background(), item, domain.ArgumentValues{"text": "\xff"})
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestExecutor_LocalErrorAndPanic(t *testing.T) {
	exec, tr, notes := newExecutor(nil)

	failing := domain.NewCommand("fail", "", func(context.Context, domain.RunRequest) (any, error) {
		return nil, errors.New("quota exceeded")
	})
	h, err := exec.Execute(context.Background(), failing, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusErrored, h.Outcome().Status)
	msg, _ := tr.Get(h.TargetID)
	assert.Equal(t, "Error: quota exceeded", msg.Content)

	panicking := domain.NewCommand("boom", "", func(context.Context, domain.RunRequest) (any, error) {
		panic("nil map")
	})
	h, err = exec.Execute(context.Background(), panicking, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusErrored, h.Outcome().Status)
	msg, _ = tr.Get(h.TargetID)
	assert.Contains(t, msg.Content, "command panicked: nil map")

	assert.Len(t, notes.All(), 2)
}

type explodingReader struct{}

func (explodingReader) Read([]byte) (int, error) { panic("reader exploded") }

func TestExecutor_StreamPanic(t *testing.T) {
	exec, tr, notes := newExecutor(nil)
	item := domain.NewCommand("tail", "", func(context.Context, domain.RunRequest) (any, error) {
		return explodingReader{}, nil
	})

	h, err := exec.Execute(context.Background(), item, nil)
	require.NoError(t, err)
	out := h.Outcome()

	assert.Equal(t, domain.StatusErrored, out.Status)
	msg, ok := tr.Get(h.TargetID)
	require.True(t, ok)
	assert.Equal(t, "Error: stream panicked: reader exploded", msg.Content)
	assert.Equal(t, domain.StatusErrored, msg.Status)
	require.Len(t, notes.All(), 1)
	assert.Equal(t, domain.NotifyError, notes.All()[0].Level)
}

func TestExecutor_Remote(t *testing.T) {
	remote := &fakeRemote{body: "deployed\n"}
	exec, tr, _ := newExecutor(remote)
	item := domain.NewCommand("deploy", "", nil)

	h, err := exec.Execute(context.Background(), item, nil)
	require.NoError(t, err)
	assert.Equal(t, "deployed", h.Outcome().Content)
	assert.Equal(t, []string{"deploy"}, remote.calls)

	msg, _ := tr.Get(h.TargetID)
	assert.Equal(t, domain.StatusCompleted, msg.Status)
}

func TestExecutor_RemoteFailures(t *testing.T) {
	tests := []struct {
		name   string
		remote *fakeRemote
		want   string
	}{
		{name: "non-2xx", remote: &fakeRemote{err: &domain.ExecutionError{Status: 500, Message: "db down"}}, want: "Error: db down"},
		{name: "empty body", remote: &fakeRemote{nilRC: true}, want: "Error: " + domain.ErrEmptyBody.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, tr, notes := newExecutor(tt.remote)
			h, err := exec.Execute(context.Background(), domain.NewCommand("deploy", "", nil), nil)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusErrored, h.Outcome().Status)

			msg, _ := tr.Get(h.TargetID)
			assert.Equal(t, tt.want, msg.Content)
			assert.Len(t, notes.All(), 1)
		})
	}
}

func TestExecutor_RejectsSynchronously(t *testing.T) {
	exec, tr, _ := newExecutor(nil)

	_, err := exec.Execute(context.Background(), domain.NewTemplatePrompt("p", "", nil), nil)
	assert.ErrorIs(t, err, domain.ErrNotExecutable)

	_, err = exec.Execute(context.Background(), domain.NewCommand("deploy", "", nil), nil)
	assert.ErrorIs(t, err, domain.ErrNoRemoteExecutor)

	assert.Empty(t, tr.Messages(), "rejected executions never allocate a message")
}

func TestExecutor_TargetBusy(t *testing.T) {
	exec, tr, _ := newExecutor(nil)
	release := make(chan []byte)
	slow := domain.NewCommand("slow", "", func(context.Context, domain.RunRequest) (any, error) {
		return (<-chan []byte)(release), nil
	})

	h, err := exec.Execute(context.Background(), slow, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{h.TargetID}, exec.InFlight())

	_, err = exec.ExecuteInto(context.Background(), h.TargetID, slow, nil)
	assert.ErrorIs(t, err, domain.ErrTargetBusy)

	fast := domain.NewCommand("fast", "", func(context.Context, domain.RunRequest) (any, error) {
		return "done", nil
	})
	other, err := exec.Execute(context.Background(), fast, nil)
	require.NoError(t, err, "distinct targets run concurrently")
	assert.Equal(t, "done", other.Outcome().Content)

	close(release)
	assert.Equal(t, domain.StatusCompleted, h.Outcome().Status)

	require.NoError(t, tr.Reopen(h.TargetID))
	again, err := exec.ExecuteInto(context.Background(), h.TargetID, fast, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, again.Outcome().Status)
}

func TestExecutor_AbortRace(t *testing.T) {
	exec, tr, notes := newExecutor(nil)
	chunks := make(chan []byte)
	item := domain.NewCommand("tail", "", func(context.Context, domain.RunRequest) (any, error) {
		return (<-chan []byte)(chunks), nil
	})

	aborts := NewAbortManager(context.Background())
	defer aborts.Stop()

	h, err := exec.Execute(aborts.Context(), item, nil)
	require.NoError(t, err)

	chunks <- []byte("line 1\n")
	require.Eventually(t, func() bool {
		msg, _ := tr.Get(h.TargetID)
		return msg.Content == "line 1\n"
	}, time.Second, time.Millisecond)

	// A new composer action aborts the pending execution.
	aborts.Next()

	out, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, out.Status)

	select {
	case chunks <- []byte("line 2\n"):
	case <-time.After(20 * time.Millisecond):
	}

	msg, _ := tr.Get(h.TargetID)
	assert.Equal(t, "line 1\n", msg.Content)
	assert.Equal(t, domain.StatusAborted, msg.Status)
	assert.Empty(t, notes.All())
}

func TestExecutor_AbortBeforeOpen(t *testing.T) {
	started := make(chan struct{})
	exec, tr, notes := newExecutor(nil)
	item := domain.NewCommand("wait", "", func(ctx context.Context, _ domain.RunRequest) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	h, err := exec.Execute(context.Background(), item, nil)
	require.NoError(t, err)
	<-started
	h.Abort()

	assert.Equal(t, domain.StatusAborted, h.Outcome().Status)
	msg, _ := tr.Get(h.TargetID)
	assert.Equal(t, domain.StatusAborted, msg.Status)
	assert.Empty(t, notes.All())
}

func TestExecutor_Hooks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []domain.EventType
		end    *domain.ExecutionEvent
	)
	record := func(_ context.Context, e *domain.ExecutionEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
		if e.Type == domain.EventExecutionEnd {
			end = e
		}
	}
	exec, _, _ := newExecutor(nil, WithHooks(domain.LifecycleHooks{
		OnExecutionStart: record,
		OnExecutionChunk: record,
		OnExecutionEnd:   record,
	}))

	h, err := exec.Execute(context.Background(), domain.NewCommand("hi", "", func(context.Context, domain.RunRequest) (any, error) {
		return "hello", nil
	}), nil)
	require.NoError(t, err)
	h.Outcome()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{domain.EventExecutionStart, domain.EventExecutionChunk, domain.EventExecutionEnd}, events)
	require.NotNil(t, end)
	assert.Equal(t, domain.StatusCompleted, end.Status)
	assert.Equal(t, 5, end.Bytes)
	assert.Equal(t, domain.OriginLocalCommand, end.Origin)
}
