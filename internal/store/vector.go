package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	scouterr "github.com/codescout/codescout/internal/errors"
)

const (
	graphFileName   = "vectors.hnsw"
	sidecarFileName = "metadata.json"
)

// VectorStore is a fixed-dimension nearest-neighbor index scored by cosine
// similarity over unit-normalized vectors.
//
// The HNSW graph is keyed by row ordinal. ids[i] names the chunk stored at
// row i, and meta holds its metadata. Invariant: len(ids) == graph.Len()
// and the metadata keys equal the set of ids.
//
// All operations, including Search, go through one RWMutex. Search takes the
// read lock, so it always observes a complete index and never a mid-rebuild
// one, at the cost of waiting out a concurrent Remove.
type VectorStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	ids    []string
	rows   [][]float32
	meta   map[string]ChunkMetadata
	config Config
	logger *slog.Logger
}

// sidecar is the JSON document saved next to the graph file.
type sidecar struct {
	Dimensions int                      `json:"dimensions"`
	IDMap      []string                 `json:"id_map"`
	Metadata   map[string]ChunkMetadata `json:"metadata"`
}

// NewVectorStore creates an empty store.
func NewVectorStore(cfg Config, logger *slog.Logger) (*VectorStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, scouterr.ValidationError(fmt.Sprintf("invalid dimensions: %d", cfg.Dimensions), nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &VectorStore{
		meta:   make(map[string]ChunkMetadata),
		config: cfg,
		logger: logger,
	}
	s.graph = s.newGraph()
	return s, nil
}

func (s *VectorStore) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	if s.config.M > 0 {
		g.M = s.config.M
	}
	if s.config.EfSearch > 0 {
		g.EfSearch = s.config.EfSearch
	}
	g.Ml = 0.25
	return g
}

// Add inserts a single vector. See AddBatch.
func (s *VectorStore) Add(ctx context.Context, id string, vector []float32, md ChunkMetadata) error {
	return s.AddBatch(ctx, []string{id}, [][]float32{vector}, []ChunkMetadata{md})
}

// AddBatch appends vectors to the index. Every vector is validated before
// any row is written, so a bad batch leaves the store untouched. Vectors
// are normalized to unit length on the way in. IDs already present are
// rejected: callers remove before re-adding.
func (s *VectorStore) AddBatch(ctx context.Context, ids []string, vectors [][]float32, metas []ChunkMetadata) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) || len(ids) != len(metas) {
		return scouterr.ValidationError(
			fmt.Sprintf("batch length mismatch: %d ids, %d vectors, %d metadata", len(ids), len(vectors), len(metas)), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := s.meta[id]; exists || seen[id] {
			return scouterr.ValidationError(fmt.Sprintf("chunk id already present: %s", id), nil)
		}
		seen[id] = true
	}

	for i, id := range ids {
		row := make([]float32, len(vectors[i]))
		copy(row, vectors[i])
		normalizeInPlace(row)

		key := uint64(len(s.ids))
		s.graph.Add(hnsw.MakeNode(key, row))
		s.ids = append(s.ids, id)
		s.rows = append(s.rows, row)
		s.meta[id] = metas[i]
	}
	return nil
}

// Remove deletes the given chunk ids and reports how many were present.
// The underlying graph has no reliable delete, so the retained rows are
// rebuilt into a fresh graph. O(store size), acceptable because removal is
// driven by file re-indexing rather than a hot path.
func (s *VectorStore) Remove(ctx context.Context, chunkIDs []string) (int, error) {
	if len(chunkIDs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(chunkIDs))
	removed := 0
	for _, id := range chunkIDs {
		if _, exists := s.meta[id]; exists && !drop[id] {
			drop[id] = true
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}

	keptIDs := make([]string, 0, len(s.ids)-removed)
	keptRows := make([][]float32, 0, len(s.rows)-removed)
	graph := s.newGraph()
	for i, id := range s.ids {
		if drop[id] {
			delete(s.meta, id)
			continue
		}
		graph.Add(hnsw.MakeNode(uint64(len(keptIDs)), s.rows[i]))
		keptIDs = append(keptIDs, id)
		keptRows = append(keptRows, s.rows[i])
	}

	s.graph = graph
	s.ids = keptIDs
	s.rows = keptRows
	return removed, nil
}

// Clear resets the store to empty.
func (s *VectorStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph = s.newGraph()
	s.ids = nil
	s.rows = nil
	s.meta = make(map[string]ChunkMetadata)
	return nil
}

// Search returns up to topK results ordered by score descending, where
// score is the cosine similarity of the normalized query and the stored
// vector (1.0 for an identical vector). An empty store yields an empty
// slice. With filters present, up to 3x topK candidates are fetched before
// filtering so post-filter results can still reach topK.
func (s *VectorStore) Search(ctx context.Context, query []float32, topK int, filters *SearchFilters) ([]SearchResult, error) {
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if len(s.ids) == 0 {
		return []SearchResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	fetch := topK
	if !filters.Empty() {
		fetch = topK * 3
	}
	if fetch > len(s.ids) {
		fetch = len(s.ids)
	}

	nodes := s.graph.Search(normalized, fetch)

	results := make([]SearchResult, 0, topK)
	for _, node := range nodes {
		if int(node.Key) >= len(s.ids) {
			continue
		}
		id := s.ids[node.Key]
		md := s.meta[id]
		if !filters.Match(md) {
			continue
		}
		score := 1.0 - s.graph.Distance(normalized, node.Value)
		results = append(results, SearchResult{ChunkID: id, Score: score, Metadata: md})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// Persistent reports whether a persistence directory is configured.
func (s *VectorStore) Persistent() bool { return s.config.Dir != "" }

// Size returns the number of stored vectors.
func (s *VectorStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDsByFile groups stored chunk ids by their metadata file path, preserving
// row order within each file. Used to rebuild indexer bookkeeping after a
// Load.
func (s *VectorStore) IDsByFile() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byFile := make(map[string][]string)
	for _, id := range s.ids {
		md := s.meta[id]
		byFile[md.FilePath] = append(byFile[md.FilePath], id)
	}
	return byFile
}

// Contains reports whether a chunk id is stored.
func (s *VectorStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.meta[id]
	return exists
}

// Save writes the graph and the {id_map, metadata} sidecar to the
// configured directory using temp-file-plus-rename, so a crash mid-save
// never leaves a torn index. Errors when no directory is configured.
func (s *VectorStore) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config.Dir == "" {
		return scouterr.New(scouterr.ErrCodePersistFailed, "no persistence directory configured", nil)
	}
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return scouterr.New(scouterr.ErrCodePersistFailed, "create persistence directory", err)
	}

	graphPath := filepath.Join(s.config.Dir, graphFileName)
	if err := s.exportGraph(graphPath); err != nil {
		return err
	}

	doc := sidecar{
		Dimensions: s.config.Dimensions,
		IDMap:      s.ids,
		Metadata:   s.meta,
	}
	if doc.IDMap == nil {
		doc.IDMap = []string{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return scouterr.New(scouterr.ErrCodePersistFailed, "encode metadata sidecar", err)
	}
	sidecarPath := filepath.Join(s.config.Dir, sidecarFileName)
	if err := writeFileAtomic(sidecarPath, data); err != nil {
		return scouterr.New(scouterr.ErrCodePersistFailed, "write metadata sidecar", err)
	}
	return nil
}

func (s *VectorStore) exportGraph(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return scouterr.New(scouterr.ErrCodePersistFailed, "create graph file", err)
	}
	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return scouterr.New(scouterr.ErrCodePersistFailed, "export graph", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return scouterr.New(scouterr.ErrCodePersistFailed, "close graph file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return scouterr.New(scouterr.ErrCodePersistFailed, "rename graph file", err)
	}
	return nil
}

// Load restores a previously saved index. It returns true on success and
// false, with a logged reason, when the files are absent, unreadable, or
// inconsistent. A false return leaves the store empty and usable.
func (s *VectorStore) Load(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Dir == "" {
		return false
	}

	sidecarPath := filepath.Join(s.config.Dir, sidecarFileName)
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read index sidecar",
				slog.String("path", sidecarPath),
				slog.String("error", err.Error()))
		}
		return false
	}

	var doc sidecar
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("corrupt index sidecar, starting fresh",
			slog.String("path", sidecarPath),
			slog.String("error", err.Error()))
		return false
	}
	if doc.Dimensions != s.config.Dimensions {
		s.logger.Warn("index dimension mismatch, starting fresh",
			slog.Int("stored", doc.Dimensions),
			slog.Int("configured", s.config.Dimensions))
		return false
	}
	if len(doc.IDMap) != len(doc.Metadata) {
		s.logger.Warn("inconsistent index sidecar, starting fresh",
			slog.Int("id_map", len(doc.IDMap)),
			slog.Int("metadata", len(doc.Metadata)))
		return false
	}
	// Metadata keys must be exactly the id_map entries; a count match alone
	// would let a mangled sidecar serve zero-value metadata later.
	for _, id := range doc.IDMap {
		if _, ok := doc.Metadata[id]; !ok {
			err := scouterr.New(scouterr.ErrCodeCorruptIndex,
				fmt.Sprintf("sidecar metadata missing id %s", id), nil)
			s.logger.Warn("inconsistent index sidecar, starting fresh",
				slog.String("error", err.Error()))
			return false
		}
	}

	graphPath := filepath.Join(s.config.Dir, graphFileName)
	file, err := os.Open(graphPath)
	if err != nil {
		s.logger.Warn("failed to open graph file",
			slog.String("path", graphPath),
			slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = file.Close() }()

	graph := s.newGraph()
	// coder/hnsw Import needs an io.ByteReader.
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		s.logger.Warn("corrupt graph file, starting fresh",
			slog.String("path", graphPath),
			slog.String("error", err.Error()))
		return false
	}
	if graph.Len() != len(doc.IDMap) {
		s.logger.Warn("graph and sidecar row counts differ, starting fresh",
			slog.Int("graph", graph.Len()),
			slog.Int("sidecar", len(doc.IDMap)))
		return false
	}

	rows := make([][]float32, len(doc.IDMap))
	for i := range doc.IDMap {
		vec, ok := graph.Lookup(uint64(i))
		if !ok {
			s.logger.Warn("graph missing row, starting fresh", slog.Int("row", i))
			return false
		}
		rows[i] = vec
	}

	s.graph = graph
	s.ids = doc.IDMap
	s.rows = rows
	s.meta = doc.Metadata
	if s.meta == nil {
		s.meta = make(map[string]ChunkMetadata)
	}
	return true
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
