package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalRoundTrip(t *testing.T) {
	tok := Canonical("mcp.lit.search")
	assert.Equal(t, "§mcp.lit.search", tok)

	id, ok := ParseCanonical(tok)
	assert.True(t, ok)
	assert.Equal(t, "mcp.lit.search", id)

	for _, bad := range []string{"", "§", "mcp.lit", "§.x", "§x.", "§a b"} {
		_, ok := ParseCanonical(bad)
		assert.False(t, ok, bad)
	}
}

func TestFindCanonical(t *testing.T) {
	text := "run §cmd.clear, then §mcp.lit.search. Also § alone and §§x"
	spans := FindCanonical(text)

	if assert.Len(t, spans, 2) {
		assert.Equal(t, "cmd.clear", spans[0].ID)
		assert.Equal(t, "§cmd.clear", text[spans[0].Start:spans[0].End])
		assert.Equal(t, "mcp.lit.search", spans[1].ID)
		assert.Equal(t, "§mcp.lit.search", text[spans[1].Start:spans[1].End])
	}
}
