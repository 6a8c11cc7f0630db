package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many texts reached the inner embedder.
type countingEmbedder struct {
	inner Embedder
	calls int
	texts int
	fail  error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.inner.Embed(ctx, texts, intent)
}

func (c *countingEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

// ============================================================================
// TS03: Cache Behavior
// ============================================================================

func TestCachedEmbedder_Embed_SecondCallHitsCache(t *testing.T) {
	// Given: cached embedder over a counting inner
	counting := &countingEmbedder{inner: NewStaticEmbedder(0)}
	cached, err := NewCachedEmbedder(counting, 10)
	require.NoError(t, err)

	texts := []string{"first", "second"}

	// When: I embed the same batch twice
	v1, err := cached.Embed(context.Background(), texts, IntentDocument)
	require.NoError(t, err)
	v2, err := cached.Embed(context.Background(), texts, IntentDocument)
	require.NoError(t, err)

	// Then: the inner embedder only ran once and results match
	assert.Equal(t, 1, counting.calls)
	assert.Equal(t, 2, counting.texts)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 2, cached.CacheLen())
}

func TestCachedEmbedder_Embed_OnlyMissesReachInner(t *testing.T) {
	// Given: cache warmed with one text
	counting := &countingEmbedder{inner: NewStaticEmbedder(0)}
	cached, err := NewCachedEmbedder(counting, 10)
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"warm"}, IntentDocument)
	require.NoError(t, err)

	// When: I embed a batch mixing the warm text with a new one
	vectors, err := cached.Embed(context.Background(), []string{"warm", "cold"}, IntentDocument)
	require.NoError(t, err)

	// Then: only the new text went to the inner embedder
	require.Len(t, vectors, 2)
	assert.Equal(t, 2, counting.texts, "one warm-up text plus one miss")
}

func TestCachedEmbedder_Embed_IntentSeparatesEntries(t *testing.T) {
	// Given: cached embedder
	counting := &countingEmbedder{inner: NewStaticEmbedder(0)}
	cached, err := NewCachedEmbedder(counting, 10)
	require.NoError(t, err)

	// When: I embed the same text under both intents
	_, err = cached.Embed(context.Background(), []string{"same text"}, IntentDocument)
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"same text"}, IntentQuery)
	require.NoError(t, err)

	// Then: both were misses
	assert.Equal(t, 2, counting.calls)
	assert.Equal(t, 2, cached.CacheLen())
}

func TestCachedEmbedder_Embed_InnerFailureCachesNothing(t *testing.T) {
	// Given: inner embedder that fails
	boom := errors.New("embedder offline")
	counting := &countingEmbedder{inner: NewStaticEmbedder(0), fail: boom}
	cached, err := NewCachedEmbedder(counting, 10)
	require.NoError(t, err)

	// When: the embed call fails
	_, err = cached.Embed(context.Background(), []string{"text"}, IntentDocument)

	// Then: the error surfaces and the cache stays empty
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cached.CacheLen())
}

func TestCachedEmbedder_AllHitsSkipInner(t *testing.T) {
	// Given: fully warmed cache
	counting := &countingEmbedder{inner: NewStaticEmbedder(0)}
	cached, err := NewCachedEmbedder(counting, 10)
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), []string{"a", "b"}, IntentDocument)
	require.NoError(t, err)

	// When: I re-embed only cached texts
	_, err = cached.Embed(context.Background(), []string{"b", "a"}, IntentDocument)
	require.NoError(t, err)

	// Then: the inner embedder was not called again
	assert.Equal(t, 1, counting.calls)
}
