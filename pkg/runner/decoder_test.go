package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamDecoder_SplitRunes(t *testing.T) {
	input := []byte("héllo → 世界")

	for split := 1; split < len(input); split++ {
		dec := newStreamDecoder()
		got := dec.Write(input[:split])
		got += dec.Write(input[split:])
		got += dec.Flush()
		assert.Equal(t, string(input), got, "split at %d", split)
	}
}

func TestStreamDecoder_ByteByByte(t *testing.T) {
	input := []byte("€uro")
	dec := newStreamDecoder()

	var got string
	for i := range input {
		got += dec.Write(input[i : i+1])
	}
	assert.Equal(t, "€uro", got)
	assert.Empty(t, dec.Flush())
}

func TestStreamDecoder_InvalidBytes(t *testing.T) {
	dec := newStreamDecoder()
	got := dec.Write([]byte{'a', 0xff, 'b'})
	assert.Equal(t, "a�b", got)

	got = dec.Write([]byte{0xe2, 0x82})
	assert.Empty(t, got, "incomplete rune is held back")
	assert.Equal(t, "�", dec.Flush())
}
