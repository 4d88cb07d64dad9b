package ports

import (
	"context"
	"testing"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRecencyStoreContract runs a suite of tests to verify that a RecencyStore implementation
// adheres to the defined interface contract. The store must start empty.
func RunRecencyStoreContract(t *testing.T, store RecencyStore) {
	ctx := context.Background()

	t.Run("Load Empty", func(t *testing.T) {
		entries, err := store.Load(ctx)
		require.NoError(t, err, "Load on a fresh store should not return error")
		assert.Empty(t, entries)
	})

	t.Run("Save and Load", func(t *testing.T) {
		want := []domain.RecentUsage{
			{ID: "mcp.lit.search", Timestamp: 1700000002000},
			{ID: "cmd.clear", Timestamp: 1700000001000},
		}

		err := store.Save(ctx, want)
		require.NoError(t, err, "Save should not return error")

		got, err := store.Load(ctx)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, want, got, "order and timestamps must survive a round trip")
	})

	t.Run("Save Replaces", func(t *testing.T) {
		err := store.Save(ctx, []domain.RecentUsage{{ID: "prompt.summarize", Timestamp: 1}})
		require.NoError(t, err)

		got, err := store.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "prompt.summarize", got[0].ID)
	})

	t.Run("Capacity", func(t *testing.T) {
		many := make([]domain.RecentUsage, 0, domain.MaxRecent+3)
		for i := 0; i < domain.MaxRecent+3; i++ {
			many = append(many, domain.RecentUsage{ID: "cmd.c" + string(rune('a'+i)), Timestamp: int64(100 - i)})
		}
		require.NoError(t, store.Save(ctx, many))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got, domain.MaxRecent)
		assert.Equal(t, "cmd.ca", got[0].ID)
	})

	t.Run("Save Empty", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, nil))

		got, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
