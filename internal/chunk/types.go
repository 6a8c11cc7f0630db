// Package chunk splits source files into symbol-aligned chunks for embedding.
//
// Chunking is a pure function of its input: identical content always yields
// identical chunks, and the emitted symbol/block line ranges partition the
// file's lines without gaps or overlaps. Symbol boundaries come from a
// two-tier extractor: a tree-sitter structural tier first, then a
// line-anchored regex tier when parsing fails or finds nothing.
package chunk

// DefaultMaxLines is the default maximum number of lines per chunk.
const DefaultMaxLines = 200

// MaxHeaderLines caps the import header extracted from the top of a file.
const MaxHeaderLines = 30

// SymbolType classifies a chunk's origin.
type SymbolType string

const (
	// SymbolTypeFunction marks a chunk produced from a function definition.
	SymbolTypeFunction SymbolType = "function"
	// SymbolTypeClass marks a chunk produced from a class/type definition.
	SymbolTypeClass SymbolType = "class"
	// SymbolTypeBlock marks a chunk of top-level code not owned by a symbol.
	SymbolTypeBlock SymbolType = "block"
)

// Chunk is a contiguous, symbol-aligned slice of a source file prepared for
// embedding. Immutable once created.
type Chunk struct {
	// Content is the chunk text, prefixed by the import header for symbol
	// chunks. The header prefix is not counted in StartLine/EndLine.
	Content string

	FilePath string

	// StartLine and EndLine are 1-based and inclusive.
	StartLine int
	EndLine   int

	// SymbolName is empty for block chunks. Split symbols are named
	// "<name> (part N)".
	SymbolName string

	SymbolType SymbolType

	Language string

	// ImportHeader is the leading import block of the file, when present.
	ImportHeader string
}

// Symbol is a top-level definition located by an extractor strategy.
// Start and End are 0-based line indexes; End is exclusive.
type Symbol struct {
	Name  string
	Type  SymbolType // function or class
	Start int
	End   int
}

// Strategy locates top-level symbols in a file. Extract returns
// (symbols, true) on success; (nil, false) when the strategy does not apply
// to the language or cannot parse the input. Strategies never return errors:
// failure just hands control to the next tier.
type Strategy interface {
	Name() string
	Extract(source []byte, lines []string, language string) ([]Symbol, bool)
}
