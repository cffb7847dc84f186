package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStoreFrom(map[string]any{
		"source.type":         "graph",
		"pager.page_size":     int64(100),
		"pager.workers":       4,
		"landing.flush_bytes": float64(2048),
		"reconcile.delta":     true,
		"source.fields":       []any{"id", 7, "mail"},
	})

	assert.Equal(t, "graph", store.GetString("source.type"))
	assert.Equal(t, 100, store.GetInt("pager.page_size"))
	assert.Equal(t, 4, store.GetInt("pager.workers"))
	assert.Equal(t, 2048, store.GetInt("landing.flush_bytes"))
	assert.True(t, store.GetBool("reconcile.delta"))
	assert.Equal(t, []string{"id", "mail"}, store.GetStringSlice("source.fields"))

	assert.Empty(t, store.GetString("pager.page_size"))
	assert.Zero(t, store.GetInt("source.type"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("source.type"))
}

func TestConfigStore_SetOverwrites(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("run.timeout", "5m"))
	require.NoError(t, store.Set("run.timeout", "10m"))

	val, ok := store.Get("run.timeout")
	assert.True(t, ok)
	assert.Equal(t, "10m", val)
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_SeedIsCopied(t *testing.T) {
	seed := map[string]any{"a": "1"}
	store := NewConfigStoreFrom(seed)

	seed["a"] = "2"

	assert.Equal(t, "1", store.GetString("a"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("pager.workers", i)
		}()
		go func() {
			defer wg.Done()
			_ = store.GetInt("pager.workers")
		}()
	}
	wg.Wait()
}
