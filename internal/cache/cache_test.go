package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/types"
)

func TestGetPutRoundtrip(t *testing.T) {
	c := New()
	key := Key{Path: "app/util.py", ContentHash: "abc"}

	_, ok := c.Get(key)
	assert.False(t, ok)

	entry := Entry{
		Issues:   []types.Issue{{ID: "style_1", Severity: types.SeverityLow}},
		Metadata: types.FileMetadata{Path: "app/util.py", Truncated: true},
	}
	c.Put(key, entry)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, entry.Issues, got.Issues)
	assert.Equal(t, entry.Metadata, got.Metadata)
	assert.Equal(t, 1, c.Len())
}

func TestChangedHashMisses(t *testing.T) {
	c := New()
	c.Put(Key{Path: "a.py", ContentHash: "v1"}, Entry{})

	_, ok := c.Get(Key{Path: "a.py", ContentHash: "v2"})
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 1, misses)
}

func TestGetReturnsCopy(t *testing.T) {
	c := New()
	key := Key{Path: "a.py", ContentHash: "v1"}
	c.Put(key, Entry{Issues: []types.Issue{{ID: "style_1", Suggestion: "original"}}})

	got, ok := c.Get(key)
	require.True(t, ok)
	got.Issues[0].Suggestion = "mutated"

	again, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "original", again.Issues[0].Suggestion)
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := Key{Path: "a.py", ContentHash: "h"}
			c.Put(key, Entry{Issues: []types.Issue{{ID: "x"}}})
			c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
