package runner

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// streamDecoder decodes UTF-8 incrementally. A multi-byte rune split across
// chunks is held back until its remaining bytes arrive; invalid bytes become U+FFFD.
type streamDecoder struct {
	t       transform.Transformer
	pending []byte
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{t: unicode.UTF8.NewDecoder()}
}

// Write decodes chunk and returns the text that is complete so far.
func (d *streamDecoder) Write(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush decodes whatever is still held back.
func (d *streamDecoder) Flush() string {
	return d.decode(nil, true)
}

func (d *streamDecoder) decode(chunk []byte, atEOF bool) string {
	src := append(d.pending, chunk...)
	if len(src) == 0 {
		return ""
	}
	// Each invalid byte can expand to the 3-byte replacement rune.
	dst := make([]byte, len(src)*3+4)
	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		// The UTF-8 decoder only fails on short buffers; dst is sized to never be short.
		nSrc = len(src)
	}
	d.pending = append([]byte(nil), src[nSrc:]...)
	return string(dst[:nDst])
}
