// Package store provides the per-workspace vector index: an HNSW graph over
// unit-normalized embeddings with chunk metadata, persisted as a graph file
// plus a JSON sidecar.
package store

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config controls index geometry and persistence.
type Config struct {
	// Dimensions is the fixed embedding dimensionality. Required.
	Dimensions int

	// Dir is the persistence directory. Empty disables Save and makes
	// Load a no-op.
	Dir string

	// M and EfSearch tune the HNSW graph. Zero means library defaults.
	M        int
	EfSearch int
}

// ChunkMetadata travels with every stored vector and is returned on search.
type ChunkMetadata struct {
	FilePath     string    `json:"file_path"`
	StartLine    int       `json:"start_line"`
	EndLine      int       `json:"end_line"`
	SymbolName   string    `json:"symbol_name,omitempty"`
	SymbolType   string    `json:"symbol_type"`
	Language     string    `json:"language"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"last_modified"`
}

// SearchFilters restricts search results after the nearest-neighbor pass.
// Zero-length fields do not filter.
type SearchFilters struct {
	// Languages keeps results whose metadata language is in the set.
	Languages []string

	// PathGlobs keeps results whose file path matches at least one
	// pattern. Patterns use filepath.Match syntax and are tried against
	// both the full path and its base name.
	PathGlobs []string
}

// Empty reports whether the filters restrict nothing.
func (f *SearchFilters) Empty() bool {
	return f == nil || (len(f.Languages) == 0 && len(f.PathGlobs) == 0)
}

// Match reports whether md passes every configured filter.
func (f *SearchFilters) Match(md ChunkMetadata) bool {
	if f == nil {
		return true
	}
	if len(f.Languages) > 0 && !matchLanguage(f.Languages, md.Language) {
		return false
	}
	if len(f.PathGlobs) > 0 && !matchGlobs(f.PathGlobs, md.FilePath) {
		return false
	}
	return true
}

func matchLanguage(languages []string, lang string) bool {
	for _, l := range languages {
		if l == lang {
			return true
		}
	}
	return false
}

func matchGlobs(patterns []string, path string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ChunkID  string
	Score    float32
	Metadata ChunkMetadata
}

// ErrDimensionMismatch is returned when a vector's length does not match
// the store's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
