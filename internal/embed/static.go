package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticEmbedder generates embeddings with a hash-based scheme: no network,
// no model download, fully deterministic. Semantic quality is reduced, so it
// serves tests and offline mode, not production search.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// programmingStopWords are keywords that carry no retrieval signal.
var programmingStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a static embedder with the given dimensionality
// (StaticDimensions when dims <= 0).
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed returns one deterministic vector per text, in order. The intent is
// ignored: hash buckets have no document/query asymmetry to exploit.
func (e *StaticEmbedder) Embed(ctx context.Context, texts []string, _ Intent) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			vectors[i] = make([]float32, e.dims)
			continue
		}
		vectors[i] = normalizeVector(e.generateVector(trimmed))
	}
	return vectors, nil
}

// generateVector hashes tokens and character n-grams into buckets.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, e.dims)

	tokens := tokenRegex.FindAllString(strings.ToLower(text), -1)
	for _, token := range tokens {
		if programmingStopWords[token] || len(token) < 2 {
			continue
		}
		vector[e.bucket(token)] += tokenWeight

		for i := 0; i+ngramSize <= len(token); i++ {
			vector[e.bucket(token[i:i+ngramSize])] += ngramWeight
		}
	}

	return vector
}

func (e *StaticEmbedder) bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32()) % e.dims
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static-hash" }
