// Package index orchestrates per-workspace state: each workspace owns one
// vector store plus a file-to-chunk-ids bookkeeping map, and this package
// turns file-change batches into chunk/embed/store operations and queries
// into embed/search/filter operations.
package index

// Action says what happened to a file.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// FileChange is one entry of an indexing batch. Content is ignored for
// deletes.
type FileChange struct {
	Path    string
	Content string
	Action  Action
}

// Options tunes an Indexer.
type Options struct {
	// BatchSize is the number of chunk texts embedded per request.
	BatchSize int

	// Workers bounds concurrent file chunking. Zero means GOMAXPROCS.
	Workers int

	// MetaContentBytes caps the chunk content carried in stored metadata.
	// Zero means no cap.
	MetaContentBytes int
}

const defaultBatchSize = 32
