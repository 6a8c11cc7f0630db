package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/codescout/codescout/internal/chunk"
	"github.com/codescout/codescout/internal/config"
	"github.com/codescout/codescout/internal/embed"
	scouterr "github.com/codescout/codescout/internal/errors"
	"github.com/codescout/codescout/internal/store"
)

// Registry owns the live workspaces. Workspace lifetime is explicit: Open
// creates or loads, Evict persists and drops, Close evicts everything.
// Each workspace's data directory is guarded by a file lock so two
// processes never write the same index.
type Registry struct {
	cfg      *config.Config
	embedder embed.Embedder
	logger   *slog.Logger

	mu         sync.Mutex
	workspaces map[string]*workspace
}

type workspace struct {
	indexer *Indexer
	lock    *flock.Flock
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg *config.Config, embedder embed.Embedder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:        cfg,
		embedder:   embedder,
		logger:     logger,
		workspaces: make(map[string]*workspace),
	}
}

// Open returns the workspace's indexer, creating it on first access. A
// previously saved index is loaded when present; a missing or corrupt one
// degrades to an empty store.
func (r *Registry) Open(ctx context.Context, workspaceID string) (*Indexer, error) {
	if workspaceID == "" {
		return nil, scouterr.ValidationError("workspace id is empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[workspaceID]; ok {
		return ws.indexer, nil
	}

	dir := r.cfg.WorkspaceDir(workspaceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, scouterr.New(scouterr.ErrCodePersistFailed,
			fmt.Sprintf("create workspace directory %s", dir), err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, scouterr.New(scouterr.ErrCodeWorkspaceLocked,
			fmt.Sprintf("acquire workspace lock for %s", workspaceID), err)
	}
	if !locked {
		return nil, scouterr.New(scouterr.ErrCodeWorkspaceLocked,
			fmt.Sprintf("workspace %s is owned by another process", workspaceID), nil)
	}

	st, err := store.NewVectorStore(store.Config{
		Dimensions: r.embedder.Dimensions(),
		Dir:        dir,
		M:          r.cfg.Store.M,
		EfSearch:   r.cfg.Store.EfSearch,
	}, r.logger)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	if st.Load(ctx) {
		r.logger.Info("loaded workspace index",
			slog.String("workspace", workspaceID),
			slog.Int("chunks", st.Size()))
	}

	chunker := chunk.NewChunker(chunk.Options{MaxLines: r.cfg.Chunker.MaxLines})
	indexer := NewIndexer(workspaceID, st, chunker, r.embedder, Options{
		BatchSize:        r.cfg.Embeddings.BatchSize,
		Workers:          r.cfg.Indexer.Workers,
		MetaContentBytes: r.cfg.Store.MetaContentBytes,
	}, r.logger)

	r.workspaces[workspaceID] = &workspace{indexer: indexer, lock: lock}
	return indexer, nil
}

// Get returns an already open workspace without creating one.
func (r *Registry) Get(workspaceID string) (*Indexer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return nil, false
	}
	return ws.indexer, true
}

// Evict persists a workspace, releases its lock, and drops it from the
// registry. Evicting an unknown workspace is a no-op.
func (r *Registry) Evict(ctx context.Context, workspaceID string) error {
	r.mu.Lock()
	ws, ok := r.workspaces[workspaceID]
	delete(r.workspaces, workspaceID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.release(ctx, workspaceID, ws)
}

// Close evicts every workspace. The first persistence error is returned
// after all workspaces have been released.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	workspaces := r.workspaces
	r.workspaces = make(map[string]*workspace)
	r.mu.Unlock()

	var firstErr error
	for id, ws := range workspaces {
		if err := r.release(ctx, id, ws); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) release(ctx context.Context, workspaceID string, ws *workspace) error {
	var saveErr error
	if ws.indexer.store.Persistent() {
		saveErr = ws.indexer.store.Save(ctx)
		if saveErr != nil {
			r.logger.Warn("failed to persist workspace on eviction",
				slog.String("workspace", workspaceID),
				slog.String("error", saveErr.Error()))
		}
	}
	if err := ws.lock.Unlock(); err != nil {
		r.logger.Warn("failed to release workspace lock",
			slog.String("workspace", workspaceID),
			slog.String("error", err.Error()))
	}
	return saveErr
}
