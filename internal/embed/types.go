// Package embed provides clients for the external embedding service.
//
// The embedding model is a black box behind an HTTP API. Implementations
// return exactly one vector per input text, in order, and fail the whole
// call otherwise: a partial batch must never reach the vector store.
package embed

import (
	"context"
	"math"
	"time"
)

// Intent tells the model how the text will be used. Asymmetric embedding
// models produce different vectors for documents and queries.
type Intent string

const (
	// IntentDocument embeds text that will be stored and searched over.
	IntentDocument Intent = "search_document"
	// IntentQuery embeds a search query.
	IntentQuery Intent = "search_query"
)

// Common embedding constants.
const (
	// DefaultDimensions is used when the service does not report its own.
	DefaultDimensions = 768

	// StaticDimensions is the dimension of the offline static embedder.
	StaticDimensions = 256

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of attempts per request.
	DefaultMaxRetries = 3
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per text, in order. It returns an error
	// (never a short result) when any text cannot be embedded.
	Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
