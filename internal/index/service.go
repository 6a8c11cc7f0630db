package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codescout/codescout/internal/store"
)

// QueryRecorder receives search telemetry. Implementations must not block
// the search path on failure.
type QueryRecorder interface {
	RecordSearch(ctx context.Context, workspaceID, query string, results int, took time.Duration)
}

// IndexResult reports the outcome of an Index or Reindex call.
type IndexResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// SearchResponse reports the outcome of a Search call.
type SearchResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Hits    []store.SearchResult `json:"hits"`
}

// Service is the data-in/data-out surface over the registry. Failures are
// reported in the result, never raised: a broken index call must not take
// the hosting request down with it.
type Service struct {
	registry *Registry
	recorder QueryRecorder
	logger   *slog.Logger
}

// NewService wraps a registry. The recorder may be nil.
func NewService(registry *Registry, recorder QueryRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: registry, recorder: recorder, logger: logger}
}

// Index applies a file-change batch to a workspace.
func (s *Service) Index(ctx context.Context, workspaceID string, files []FileChange) IndexResult {
	indexer, err := s.registry.Open(ctx, workspaceID)
	if err != nil {
		return IndexResult{Success: false, Message: err.Error()}
	}
	added, removed, err := indexer.IndexFiles(ctx, files)
	if err != nil {
		s.logger.Warn("index call failed",
			slog.String("workspace", workspaceID),
			slog.String("error", err.Error()))
		return IndexResult{Success: false, Message: err.Error(), Removed: removed}
	}
	return IndexResult{
		Success: true,
		Message: fmt.Sprintf("indexed %d chunks, removed %d", added, removed),
		Added:   added,
		Removed: removed,
	}
}

// Reindex rebuilds a workspace from scratch.
func (s *Service) Reindex(ctx context.Context, workspaceID string, files []FileChange) IndexResult {
	indexer, err := s.registry.Open(ctx, workspaceID)
	if err != nil {
		return IndexResult{Success: false, Message: err.Error()}
	}
	added, removed, err := indexer.Reindex(ctx, files)
	if err != nil {
		s.logger.Warn("reindex call failed",
			slog.String("workspace", workspaceID),
			slog.String("error", err.Error()))
		return IndexResult{Success: false, Message: err.Error(), Removed: removed}
	}
	return IndexResult{
		Success: true,
		Message: fmt.Sprintf("reindexed %d chunks, dropped %d", added, removed),
		Added:   added,
		Removed: removed,
	}
}

// Search runs a ranked query against a workspace. Search never fails hard:
// a workspace that cannot be opened is the only Success=false case, and
// even that carries an empty hit list rather than an error.
func (s *Service) Search(ctx context.Context, workspaceID, query string, topK int, filters *store.SearchFilters) SearchResponse {
	indexer, err := s.registry.Open(ctx, workspaceID)
	if err != nil {
		return SearchResponse{Success: false, Message: err.Error(), Hits: []store.SearchResult{}}
	}

	start := time.Now()
	hits := indexer.Search(ctx, query, topK, filters)
	took := time.Since(start)

	if s.recorder != nil {
		s.recorder.RecordSearch(ctx, workspaceID, query, len(hits), took)
	}
	return SearchResponse{Success: true, Hits: hits}
}
