package chunk

import (
	"fmt"
	"sort"
	"strings"
)

// Options configures a Chunker.
type Options struct {
	// MaxLines is the maximum lines per chunk before splitting
	// (default: DefaultMaxLines).
	MaxLines int
}

// Chunker splits files into symbol-aligned chunks using an ordered list of
// extractor strategies. Safe for concurrent use.
type Chunker struct {
	maxLines   int
	strategies []Strategy
}

// NewChunker creates a chunker with the default strategy order:
// tree-sitter first, regex fallback second.
func NewChunker(opts Options) *Chunker {
	maxLines := opts.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Chunker{
		maxLines: maxLines,
		strategies: []Strategy{
			NewTreeSitterStrategy(),
			NewRegexStrategy(),
		},
	}
}

// ChunkFile splits content into chunks. Empty or whitespace-only input
// yields nil. Output is deterministic and ordered by start line.
func (c *Chunker) ChunkFile(content, filePath, language string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := splitLines(content)
	header := extractImportHeader(lines, language)
	symbols := c.extractSymbols([]byte(content), lines, language)
	symbols = normalizeSymbols(symbols, lines)

	covered := make([]bool, len(lines))
	var chunks []Chunk

	for _, sym := range symbols {
		chunks = append(chunks, c.symbolChunks(sym, lines, header, filePath, language)...)
		for i := sym.Start; i < sym.End; i++ {
			covered[i] = true
		}
	}

	chunks = append(chunks, c.blockChunks(lines, covered, filePath, language)...)

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].StartLine < chunks[j].StartLine
	})
	return chunks
}

// extractSymbols runs the strategy tiers in order and returns the first
// non-empty result.
func (c *Chunker) extractSymbols(source []byte, lines []string, language string) []Symbol {
	for _, strategy := range c.strategies {
		symbols, ok := strategy.Extract(source, lines, language)
		if ok && len(symbols) > 0 {
			return symbols
		}
	}
	return nil
}

// normalizeSymbols sorts symbols, clamps their spans to the file, drops
// overlaps, and extends each span through trailing blank lines up to the
// next symbol. The extension keeps symbol/block spans an exact partition of
// the file's lines without emitting whitespace-only chunks.
func normalizeSymbols(symbols []Symbol, lines []string) []Symbol {
	if len(symbols) == 0 {
		return nil
	}

	sort.SliceStable(symbols, func(i, j int) bool {
		return symbols[i].Start < symbols[j].Start
	})

	out := symbols[:0]
	prevEnd := 0
	for _, sym := range symbols {
		if sym.Start < prevEnd || sym.Start < 0 || sym.Start >= len(lines) {
			continue
		}
		if sym.End > len(lines) {
			sym.End = len(lines)
		}
		if sym.End <= sym.Start {
			continue
		}
		out = append(out, sym)
		prevEnd = sym.End
	}

	for i := range out {
		limit := len(lines)
		if i+1 < len(out) {
			limit = out[i+1].Start
		}
		for out[i].End < limit && strings.TrimSpace(lines[out[i].End]) == "" {
			out[i].End++
		}
	}

	return out
}

// symbolChunks emits one chunk for a symbol, or several "(part N)" chunks
// when its span exceeds maxLines.
func (c *Chunker) symbolChunks(sym Symbol, lines []string, header, filePath, language string) []Chunk {
	span := lines[sym.Start:sym.End]

	if len(span) <= c.maxLines {
		return []Chunk{{
			Content:      withHeader(header, strings.Join(span, "\n")),
			FilePath:     filePath,
			StartLine:    sym.Start + 1,
			EndLine:      sym.End,
			SymbolName:   sym.Name,
			SymbolType:   sym.Type,
			Language:     language,
			ImportHeader: header,
		}}
	}

	parts := splitAtBlankLines(span, c.maxLines)
	chunks := make([]Chunk, 0, len(parts))
	for n, p := range parts {
		chunks = append(chunks, Chunk{
			Content:      withHeader(header, strings.Join(span[p[0]:p[1]], "\n")),
			FilePath:     filePath,
			StartLine:    sym.Start + p[0] + 1,
			EndLine:      sym.Start + p[1],
			SymbolName:   fmt.Sprintf("%s (part %d)", sym.Name, n+1),
			SymbolType:   sym.Type,
			Language:     language,
			ImportHeader: header,
		})
	}
	return chunks
}

// splitAtBlankLines cuts a span into parts of at most maxLines, preferring
// the last blank-line boundary inside each window. Offsets are relative to
// the span; each part's end is exclusive.
func splitAtBlankLines(span []string, maxLines int) [][2]int {
	var parts [][2]int
	start := 0
	for start < len(span) {
		if len(span)-start <= maxLines {
			parts = append(parts, [2]int{start, len(span)})
			break
		}

		end := start + maxLines
		split := -1
		for i := end; i > start; i-- {
			if strings.TrimSpace(span[i-1]) == "" {
				split = i
				break
			}
		}
		if split <= start {
			// No blank boundary in the window: hard cut.
			split = end
		}
		parts = append(parts, [2]int{start, split})
		start = split
	}
	return parts
}

// blockChunks groups uncovered lines into contiguous runs and emits them as
// block chunks, splitting runs that exceed maxLines into fixed-size pieces.
// Whitespace-only runs carry nothing worth embedding and are dropped.
func (c *Chunker) blockChunks(lines []string, covered []bool, filePath, language string) []Chunk {
	var chunks []Chunk

	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		start := runStart
		runStart = -1

		blank := true
		for i := start; i < end; i++ {
			if strings.TrimSpace(lines[i]) != "" {
				blank = false
				break
			}
		}
		if blank {
			return
		}

		for off := start; off < end; off += c.maxLines {
			pieceEnd := off + c.maxLines
			if pieceEnd > end {
				pieceEnd = end
			}
			chunks = append(chunks, Chunk{
				Content:    strings.Join(lines[off:pieceEnd], "\n"),
				FilePath:   filePath,
				StartLine:  off + 1,
				EndLine:    pieceEnd,
				SymbolType: SymbolTypeBlock,
				Language:   language,
			})
		}
	}

	for i := range lines {
		if covered[i] {
			flush(i)
			continue
		}
		if runStart < 0 {
			runStart = i
		}
	}
	flush(len(lines))

	return chunks
}

// withHeader prefixes the import header onto a symbol body.
func withHeader(header, body string) string {
	if header == "" {
		return body
	}
	return header + "\n\n" + body
}

// splitLines splits content into lines without a phantom trailing empty
// line when the file ends in a newline.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}
