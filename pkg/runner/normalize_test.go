package runner

import (
	"encoding/json"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return string(data)
}

func TestNormalize(t *testing.T) {
	ch := make(chan []byte, 3)
	ch <- []byte("a")
	ch <- []byte("bc")
	close(ch)
	var recv <-chan []byte = ch

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "hello", want: "hello"},
		{name: "bytes", in: []byte("raw"), want: "raw"},
		{name: "reader", in: strings.NewReader("streamed"), want: "streamed"},
		{name: "channel", in: recv, want: "abc"},
		{name: "struct", in: struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		}{"x", 2}, want: "{\n  \"name\": \"x\",\n  \"count\": 2\n}"},
		{name: "unmarshalable", in: math.Inf(1), want: "+Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readAll(t, Normalize(tt.in)))
		})
	}
}

func TestNormalize_ObjectRoundTrip(t *testing.T) {
	in := map[string]any{"ids": []any{"a", "b"}, "nested": map[string]any{"ok": true}}

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(readAll(t, Normalize(in))), &out))
	assert.Equal(t, in, out)
}

func TestNormalize_ReadCloserIsClosed(t *testing.T) {
	tracker := &closeTracker{Reader: strings.NewReader("x")}
	assert.Equal(t, "x", readAll(t, Normalize(tracker)))
	assert.True(t, tracker.closed)
}

func TestChanReader_SplitsLargeChunks(t *testing.T) {
	ch := make(chan []byte, 1)
	ch <- []byte("abcdef")
	close(ch)
	r := newChanReader(ch)

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(buf[:n]))
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestChanReader_CloseUnblocks(t *testing.T) {
	r := newChanReader(make(chan []byte))
	done := make(chan error)
	go func() {
		_, err := r.Read(make([]byte, 8))
		done <- err
	}()
	require.NoError(t, r.Close())
	assert.ErrorIs(t, <-done, io.ErrClosedPipe)
	require.NoError(t, r.Close())
}
