package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecent_SkipsMalformedEntries(t *testing.T) {
	data := []byte(`[
		{"id": "cmd.clear", "timestamp": 1700000000000},
		{"id": "", "timestamp": 1},
		{"timestamp": 2},
		"garbage",
		{"id": "prompt.summarize", "timestamp": "not-a-number"},
		{"id": "mcp.lit.search", "timestamp": 1699999999000, "extra": true},
		{"id": "cmd.clear", "timestamp": 5}
	]`)

	got, err := DecodeRecent(data)
	require.NoError(t, err)
	assert.Equal(t, []RecentUsage{
		{ID: "cmd.clear", Timestamp: 1700000000000},
		{ID: "mcp.lit.search", Timestamp: 1699999999000},
	}, got)
}

func TestDecodeRecent_EmptyAndInvalid(t *testing.T) {
	got, err := DecodeRecent(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = DecodeRecent([]byte(`{"id":"x"}`))
	assert.Error(t, err)
}

func TestEncodeRecent_Caps(t *testing.T) {
	entries := make([]RecentUsage, 0, 12)
	for i := 0; i < 12; i++ {
		entries = append(entries, RecentUsage{ID: string(rune('a' + i)), Timestamp: int64(i)})
	}

	data, err := EncodeRecent(entries)
	require.NoError(t, err)

	decoded, err := DecodeRecent(data)
	require.NoError(t, err)
	assert.Len(t, decoded, MaxRecent)
	assert.Equal(t, "a", decoded[0].ID)

	empty, err := EncodeRecent(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty))
}
