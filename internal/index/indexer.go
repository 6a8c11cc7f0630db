package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codescout/codescout/internal/chunk"
	"github.com/codescout/codescout/internal/embed"
	"github.com/codescout/codescout/internal/lang"
	"github.com/codescout/codescout/internal/store"
)

// Indexer owns one workspace's vector store and bookkeeping map.
//
// Bookkeeping invariant: after any successful IndexFiles or Reindex call,
// the union of fileChunks values equals exactly the set of chunk ids in the
// store. Upserts always remove a path's previous chunks before adding new
// ones, so moved or shrunk symbols never leave stale duplicates behind.
//
// One mutex serializes indexing calls; a workspace has a single writer.
type Indexer struct {
	workspaceID string
	store       *store.VectorStore
	chunker     *chunk.Chunker
	embedder    embed.Embedder
	opts        Options
	logger      *slog.Logger

	mu         sync.Mutex
	fileChunks map[string][]string
}

// NewIndexer creates an indexer over an existing store. Bookkeeping is
// rebuilt from the store's metadata, so a freshly loaded store comes back
// with its file map intact.
func NewIndexer(workspaceID string, st *store.VectorStore, chunker *chunk.Chunker, embedder embed.Embedder, opts Options, logger *slog.Logger) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		workspaceID: workspaceID,
		store:       st,
		chunker:     chunker,
		embedder:    embedder,
		opts:        opts,
		logger:      logger.With(slog.String("workspace", workspaceID)),
		fileChunks:  st.IDsByFile(),
	}
}

// WorkspaceID returns the workspace this indexer serves.
func (ix *Indexer) WorkspaceID() string { return ix.workspaceID }

// Size returns the number of stored chunks.
func (ix *Indexer) Size() int { return ix.store.Size() }

// TrackedFiles returns the indexed file paths.
func (ix *Indexer) TrackedFiles() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	files := make([]string, 0, len(ix.fileChunks))
	for path := range ix.fileChunks {
		files = append(files, path)
	}
	return files
}

// IndexFiles applies a batch of file changes and reports how many chunks
// were added and removed.
//
// Every upsert implies deleting that path's existing chunks first. When a
// path appears more than once in the batch, only its last change applies.
// Removals happen before embedding, so an embedding failure aborts the call
// with zero chunks added while the removals stand. Vectors and metadata are
// committed in one batch; the store never holds one without the other.
// The store is persisted after every call; a persistence failure is logged
// but does not fail the call.
func (ix *Indexer) IndexFiles(ctx context.Context, files []FileChange) (added, removed int, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.indexFilesLocked(ctx, files)
}

func (ix *Indexer) indexFilesLocked(ctx context.Context, files []FileChange) (added, removed int, err error) {
	start := time.Now()
	files = dedupeChanges(files)

	var deleteIDs []string
	for _, fc := range files {
		if ids, ok := ix.fileChunks[fc.Path]; ok {
			deleteIDs = append(deleteIDs, ids...)
			delete(ix.fileChunks, fc.Path)
		}
	}
	removed, err = ix.store.Remove(ctx, deleteIDs)
	if err != nil {
		return 0, 0, err
	}

	var upserts []FileChange
	for _, fc := range files {
		if fc.Action == ActionUpsert {
			upserts = append(upserts, fc)
		}
	}
	if len(upserts) == 0 {
		ix.persist(ctx)
		return 0, removed, nil
	}

	chunked, err := ix.chunkFiles(ctx, upserts)
	if err != nil {
		ix.persist(ctx)
		return 0, removed, err
	}

	var ids []string
	var texts []string
	var metas []store.ChunkMetadata
	var fileIDs = make(map[string][]string, len(upserts))
	now := time.Now().UTC()
	for i, fc := range upserts {
		for ordinal, c := range chunked[i] {
			id := chunkID(fc.Path, ordinal)
			ids = append(ids, id)
			texts = append(texts, c.Content)
			metas = append(metas, ix.metadataFor(c, now))
			fileIDs[fc.Path] = append(fileIDs[fc.Path], id)
		}
	}
	if len(ids) == 0 {
		ix.persist(ctx)
		return 0, removed, nil
	}

	vectors, err := ix.embedBatches(ctx, texts)
	if err != nil {
		// Zero partial writes: nothing was added, the removals stand.
		ix.persist(ctx)
		return 0, removed, err
	}

	if err := ix.store.AddBatch(ctx, ids, vectors, metas); err != nil {
		ix.persist(ctx)
		return 0, removed, err
	}
	for path, chunkIDs := range fileIDs {
		ix.fileChunks[path] = chunkIDs
	}

	ix.persist(ctx)
	ix.logger.Debug("indexed file batch",
		slog.Int("files", len(files)),
		slog.Int("added", len(ids)),
		slog.Int("removed", removed),
		slog.Duration("took", time.Since(start)))
	return len(ids), removed, nil
}

// Reindex clears the workspace and indexes files from scratch. The removed
// count is the store size before clearing.
func (ix *Indexer) Reindex(ctx context.Context, files []FileChange) (added, removed int, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	previous := ix.store.Size()
	if err := ix.store.Clear(ctx); err != nil {
		return 0, 0, err
	}
	ix.fileChunks = make(map[string][]string)

	added, _, err = ix.indexFilesLocked(ctx, files)
	return added, previous, err
}

// Search embeds the query and returns ranked hits. Retrieval is best
// effort: an empty store, a blank query, or an embedding failure all yield
// an empty result, never an error.
func (ix *Indexer) Search(ctx context.Context, query string, topK int, filters *store.SearchFilters) []store.SearchResult {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []store.SearchResult{}
	}
	if ix.store.Size() == 0 {
		return []store.SearchResult{}
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query}, embed.IntentQuery)
	if err != nil || len(vectors) != 1 {
		ix.logger.Warn("query embedding failed, returning no results",
			slog.String("error", errString(err)))
		return []store.SearchResult{}
	}

	results, err := ix.store.Search(ctx, vectors[0], topK, filters)
	if err != nil {
		ix.logger.Warn("vector search failed, returning no results",
			slog.String("error", err.Error()))
		return []store.SearchResult{}
	}
	return results
}

// chunkFiles runs the chunker across files in parallel, preserving input
// order in the result.
func (ix *Indexer) chunkFiles(ctx context.Context, upserts []FileChange) ([][]chunk.Chunk, error) {
	chunked := make([][]chunk.Chunk, len(upserts))

	g, ctx := errgroup.WithContext(ctx)
	if ix.opts.Workers > 0 {
		g.SetLimit(ix.opts.Workers)
	}
	for i, fc := range upserts {
		i, fc := i, fc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			language := lang.Detect(fc.Path)
			chunked[i] = ix.chunker.ChunkFile(fc.Content, fc.Path, language)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunked, nil
}

// embedBatches embeds texts in fixed-size batches. All batches must succeed
// before anything is returned.
func (ix *Indexer) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += ix.opts.BatchSize {
		end := start + ix.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := ix.embedder.Embed(ctx, texts[start:end], embed.IntentDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (ix *Indexer) metadataFor(c chunk.Chunk, now time.Time) store.ChunkMetadata {
	content := c.Content
	if ix.opts.MetaContentBytes > 0 && len(content) > ix.opts.MetaContentBytes {
		content = content[:ix.opts.MetaContentBytes]
	}
	return store.ChunkMetadata{
		FilePath:     c.FilePath,
		StartLine:    c.StartLine,
		EndLine:      c.EndLine,
		SymbolName:   c.SymbolName,
		SymbolType:   string(c.SymbolType),
		Language:     c.Language,
		Content:      content,
		LastModified: now,
	}
}

func (ix *Indexer) persist(ctx context.Context) {
	if !ix.store.Persistent() {
		return
	}
	if err := ix.store.Save(ctx); err != nil {
		ix.logger.Warn("failed to persist index, in-memory state remains authoritative",
			slog.String("error", err.Error()))
	}
}

// dedupeChanges keeps only the last change per path. Two upserts for the
// same path would otherwise derive colliding chunk ids and fail the batch.
func dedupeChanges(files []FileChange) []FileChange {
	last := make(map[string]int, len(files))
	for i, fc := range files {
		last[fc.Path] = i
	}
	if len(last) == len(files) {
		return files
	}
	out := make([]FileChange, 0, len(last))
	for i, fc := range files {
		if last[fc.Path] == i {
			out = append(out, fc)
		}
	}
	return out
}

// chunkID derives a deterministic id from a path and chunk ordinal.
func chunkID(path string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", path, ordinal)))
	return hex.EncodeToString(sum[:8])
}

func errString(err error) string {
	if err == nil {
		return "embedder returned unexpected vector count"
	}
	return err.Error()
}
