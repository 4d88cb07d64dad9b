package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Normalize turns whatever a local command returned into a byte stream.
//
//	io.Reader       passed through (closed on Close if it is an io.Closer)
//	<-chan []byte   one chunk per received slice, until the channel closes
//	[]byte, string  a single chunk
//	nil             an empty stream
//	anything else   2-space indented JSON, or fmt.Sprint if it does not marshal
func Normalize(v any) io.ReadCloser {
	switch val := v.(type) {
	case nil:
		return io.NopCloser(strings.NewReader(""))
	case io.ReadCloser:
		return val
	case io.Reader:
		return io.NopCloser(val)
	case <-chan []byte:
		return newChanReader(val)
	case chan []byte:
		return newChanReader(val)
	case []byte:
		return io.NopCloser(bytes.NewReader(val))
	case string:
		return io.NopCloser(strings.NewReader(val))
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return io.NopCloser(strings.NewReader(fmt.Sprint(v)))
	}
	return io.NopCloser(bytes.NewReader(data))
}

// chanReader adapts a channel of chunks to io.Reader.
// A chunk larger than the caller's buffer is delivered over several reads.
type chanReader struct {
	ch      <-chan []byte
	pending []byte
	closed  chan struct{}
}

func newChanReader(ch <-chan []byte) *chanReader {
	return &chanReader{ch: ch, closed: make(chan struct{})}
}

func (r *chanReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		select {
		case <-r.closed:
			return 0, io.ErrClosedPipe
		case chunk, ok := <-r.ch:
			if !ok {
				return 0, io.EOF
			}
			r.pending = chunk
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Close unblocks pending reads. The producer still owns the channel.
func (r *chanReader) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	return nil
}
