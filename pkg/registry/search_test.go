package registry

import (
	"testing"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, item := range []domain.MenuItem{
		cmd("clear"),
		cmd("clean"),
		cmd("help"),
		cmd("unclear"),
		prompt("summarize"),
		domain.NewRemotePrompt("lit", "search", "Search literature"),
		domain.NewRemotePrompt("web", "search", "Search the web"),
	} {
		require.NoError(t, reg.Register(item))
	}
	return reg
}

func TestSearch_CommandTiers(t *testing.T) {
	reg := seeded(t)

	matches := reg.Search("clear")
	require.NotEmpty(t, matches)
	assert.Equal(t, "clear", matches[0].Item.Trigger, "exact match ranks first")
	assert.Contains(t, triggers(matches), "unclear", "substring match is included")
	assert.NotContains(t, triggers(matches), "help")

	matches = reg.Search("cle")
	assert.Equal(t, []string{"clean", "clear"}, triggers(matches)[:2], "equal prefix scores tie-break by trigger")
}

func TestSearch_CaseInsensitive(t *testing.T) {
	reg := seeded(t)
	assert.Equal(t, "help", reg.Search("HELP")[0].Item.Trigger)
}

func TestSearch_PromptsAreFuzzy(t *testing.T) {
	reg := seeded(t)

	matches := reg.Search("smrz")
	require.Len(t, matches, 1)
	assert.Equal(t, "summarize", matches[0].Item.Trigger)
	assert.Len(t, matches[0].Indexes, 4)

	matches = reg.Search("search")
	assert.Equal(t, []string{"lit.search", "web.search"}, triggers(matches)[:2])
}

func TestSearch_Deterministic(t *testing.T) {
	reg := seeded(t)
	first := reg.Search("s")
	for i := 0; i < 20; i++ {
		assert.Equal(t, triggers(first), triggers(reg.Search("s")))
	}
}

func TestSearch_EmptyQueryRecentFirst(t *testing.T) {
	reg := seeded(t)
	reg.SetRecent([]string{"mcp.web.search", "cmd.help", "cmd.gone"})

	matches := reg.Search("")
	require.Len(t, matches, 7)
	assert.Equal(t, []string{"web.search", "help"}, triggers(matches)[:2])
	assert.True(t, matches[0].Recent)
	assert.False(t, matches[2].Recent)
	assert.Equal(t, []string{"clean", "clear", "lit.search", "summarize", "unclear"}, triggers(matches)[2:])
}

func TestSearch_NoMatch(t *testing.T) {
	reg := seeded(t)
	assert.Empty(t, reg.Search("zzzz"))
}
