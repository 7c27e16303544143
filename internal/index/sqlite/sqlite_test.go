package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/index"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := []index.Chunk{
		{
			ID:         "id-1",
			SourceFile: "app/util.py",
			Ordinal:    0,
			Content:    "def helper(): pass",
			Metadata: index.ChunkMetadata{
				Language:       "python",
				Truncated:      true,
				BusinessImpact: "Low",
				Concerns:       "none",
				LowIssues:      1,
				IndexedAt:      time.Now().UTC().Truncate(time.Second),
			},
		},
		{
			ID:         "id-2",
			SourceFile: "app/util.py",
			Ordinal:    1,
			Content:    "def other(): pass",
			Metadata:   index.ChunkMetadata{Language: "python", IndexedAt: time.Now().UTC()},
		},
	}
	require.NoError(t, store.Save(ctx, chunks))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "id-1", loaded[0].ID)
	assert.Equal(t, 0, loaded[0].Ordinal)
	assert.True(t, loaded[0].Metadata.Truncated)
	assert.Equal(t, 1, loaded[0].Metadata.LowIssues)
	assert.Equal(t, "id-2", loaded[1].ID)
	assert.False(t, loaded[1].Metadata.Truncated)
}

func TestResaveReplacesFileChunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := []index.Chunk{
		{ID: "old-1", SourceFile: "a.py", Ordinal: 0, Content: "v1", Metadata: index.ChunkMetadata{IndexedAt: time.Now()}},
		{ID: "old-2", SourceFile: "a.py", Ordinal: 1, Content: "v1b", Metadata: index.ChunkMetadata{IndexedAt: time.Now()}},
	}
	require.NoError(t, store.Save(ctx, first))

	second := []index.Chunk{
		{ID: "new-1", SourceFile: "a.py", Ordinal: 0, Content: "v2", Metadata: index.ChunkMetadata{IndexedAt: time.Now()}},
	}
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "new-1", loaded[0].ID)
	assert.Equal(t, "v2", loaded[0].Content)
}

func TestSaveEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), nil))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
