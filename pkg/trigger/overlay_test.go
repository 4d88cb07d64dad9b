package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlay(t *testing.T) {
	var o Overlay[string]
	_, ok := o.Selected()
	assert.False(t, ok)

	tok := Token{Start: 0, End: 2, Query: "c"}
	o.Activate(tok, []string{"clear", "clean", "cite"})
	assert.True(t, o.Open())
	assert.Equal(t, 0, o.Index())

	o.Move(1)
	o.Move(1)
	sel, _ := o.Selected()
	assert.Equal(t, "cite", sel)

	o.Move(1)
	assert.Equal(t, 0, o.Index(), "moving past the end wraps")
	o.Move(-1)
	assert.Equal(t, 2, o.Index())

	// Same token, fewer results: clamp instead of reset.
	o.Activate(tok, []string{"clear", "clean"})
	assert.Equal(t, 1, o.Index())

	// Query changed: reset.
	o.Activate(Token{Start: 0, End: 3, Query: "cl"}, []string{"clear", "clean"})
	assert.Equal(t, 0, o.Index())

	o.Activate(Token{Start: 0, End: 4, Query: "clx"}, nil)
	assert.Equal(t, 0, o.Index())
	_, ok = o.Selected()
	assert.False(t, ok)

	o.Close()
	assert.False(t, o.Open())
	assert.Empty(t, o.Results())
}
