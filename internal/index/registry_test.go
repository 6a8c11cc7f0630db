package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout/codescout/internal/config"
	"github.com/codescout/codescout/internal/embed"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return NewRegistry(cfg, embed.NewStaticEmbedder(0), testLogger())
}

// ============================================================================
// TS01: Workspace Lifecycle
// ============================================================================

func TestRegistry_Open_ReturnsSameIndexer(t *testing.T) {
	// Given: an open workspace
	r := newTestRegistry(t)
	ctx := context.Background()
	first, err := r.Open(ctx, "ws-1")
	require.NoError(t, err)

	// When: I open it again
	second, err := r.Open(ctx, "ws-1")
	require.NoError(t, err)

	// Then: the same instance comes back
	assert.Same(t, first, second)
}

func TestRegistry_Get_UnknownWorkspace(t *testing.T) {
	r := newTestRegistry(t)
	_, ok := r.Get("never-opened")
	assert.False(t, ok)
}

func TestRegistry_Open_EmptyIDRejected(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Open(context.Background(), "")
	assert.Error(t, err)
}

func TestRegistry_Evict_PersistsAndReloads(t *testing.T) {
	// Given: an indexed workspace
	r := newTestRegistry(t)
	ctx := context.Background()
	ix, err := r.Open(ctx, "ws-1")
	require.NoError(t, err)
	_, _, err = ix.IndexFiles(ctx, []FileChange{
		{Path: "a.go", Content: "package a\n\nfunc A() {}\n", Action: ActionUpsert},
	})
	require.NoError(t, err)
	size := ix.Size()
	require.Greater(t, size, 0)

	// When: the workspace is evicted and reopened
	require.NoError(t, r.Evict(ctx, "ws-1"))
	_, ok := r.Get("ws-1")
	require.False(t, ok)
	reopened, err := r.Open(ctx, "ws-1")
	require.NoError(t, err)

	// Then: the persisted index and its file bookkeeping are back
	assert.Equal(t, size, reopened.Size())
	assert.Equal(t, []string{"a.go"}, reopened.TrackedFiles())
}

func TestRegistry_Evict_UnknownIsNoOp(t *testing.T) {
	r := newTestRegistry(t)
	assert.NoError(t, r.Evict(context.Background(), "nope"))
}

func TestRegistry_Open_LockedByOtherRegistry(t *testing.T) {
	// Given: a workspace held by one registry
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	first := NewRegistry(cfg, embed.NewStaticEmbedder(0), testLogger())
	ctx := context.Background()
	_, err := first.Open(ctx, "ws-1")
	require.NoError(t, err)

	// When: a second registry over the same data dir opens it
	second := NewRegistry(cfg, embed.NewStaticEmbedder(0), testLogger())
	_, err = second.Open(ctx, "ws-1")

	// Then: the lock keeps it out until the first releases
	require.Error(t, err)
	require.NoError(t, first.Close(ctx))
	_, err = second.Open(ctx, "ws-1")
	assert.NoError(t, err)
}

// ============================================================================
// TS02: Service Facade
// ============================================================================

type recordingRecorder struct {
	calls   int
	results int
}

func (r *recordingRecorder) RecordSearch(_ context.Context, _, _ string, results int, _ time.Duration) {
	r.calls++
	r.results = results
}

func TestService_IndexAndSearch(t *testing.T) {
	// Given: a service over a fresh registry
	recorder := &recordingRecorder{}
	svc := NewService(newTestRegistry(t), recorder, testLogger())
	ctx := context.Background()

	// When: I index a file and search for it
	res := svc.Index(ctx, "ws-1", []FileChange{
		{Path: "greet.py", Content: "def greet(name):\n    return name\n", Action: ActionUpsert},
	})
	require.True(t, res.Success, res.Message)
	assert.Greater(t, res.Added, 0)

	search := svc.Search(ctx, "ws-1", "greet someone", 5, nil)

	// Then: hits come back and the recorder saw the query
	require.True(t, search.Success)
	assert.NotEmpty(t, search.Hits)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, len(search.Hits), recorder.results)
}

func TestService_Index_FailureReportsNotPanics(t *testing.T) {
	// Given: a service whose embedder always fails
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	registry := NewRegistry(cfg, failingEmbedder{}, testLogger())
	svc := NewService(registry, nil, testLogger())

	// When: indexing runs
	res := svc.Index(context.Background(), "ws-1", []FileChange{
		{Path: "a.py", Content: "x=1", Action: ActionUpsert},
	})

	// Then: the failure is reported in the result
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, 0, res.Added)
}

func TestService_Reindex(t *testing.T) {
	svc := NewService(newTestRegistry(t), nil, testLogger())
	ctx := context.Background()

	res := svc.Index(ctx, "ws-1", []FileChange{
		{Path: "a.py", Content: "x=1", Action: ActionUpsert},
	})
	require.True(t, res.Success, res.Message)

	re := svc.Reindex(ctx, "ws-1", []FileChange{
		{Path: "b.py", Content: "y=2", Action: ActionUpsert},
	})
	require.True(t, re.Success, re.Message)
	assert.Equal(t, res.Added, re.Removed)
	assert.Greater(t, re.Added, 0)
}
