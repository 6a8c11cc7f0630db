package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(maxLines int) *Chunker {
	return NewChunker(Options{MaxLines: maxLines})
}

// ============================================================================
// TS01: Symbol extraction
// ============================================================================

func TestChunker_SingleFunction(t *testing.T) {
	// Given: a two-line Python function
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile("def f():\n    pass\n", "a.py", "python")

	// Then: one function chunk covering both lines
	require.Len(t, chunks, 1)
	assert.Equal(t, "f", chunks[0].SymbolName)
	assert.Equal(t, SymbolTypeFunction, chunks[0].SymbolType)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
	assert.Equal(t, "def f():\n    pass", chunks[0].Content)
	assert.Equal(t, "a.py", chunks[0].FilePath)
	assert.Equal(t, "python", chunks[0].Language)
}

func TestChunker_MultipleSymbols(t *testing.T) {
	// Given: a Python file with a class and two functions
	content := strings.Join([]string{
		"class Greeter:",
		"    def hello(self):",
		"        return 'hi'",
		"",
		"def add(a, b):",
		"    return a + b",
		"",
		"def sub(a, b):",
		"    return a - b",
	}, "\n")
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "ops.py", "python")

	// Then: three top-level symbols in file order
	require.Len(t, chunks, 3)
	assert.Equal(t, "Greeter", chunks[0].SymbolName)
	assert.Equal(t, SymbolTypeClass, chunks[0].SymbolType)
	assert.Equal(t, "add", chunks[1].SymbolName)
	assert.Equal(t, "sub", chunks[2].SymbolName)
	assert.Equal(t, SymbolTypeFunction, chunks[2].SymbolType)
}

func TestChunker_GoTypesAndMethods(t *testing.T) {
	// Given: a Go file with a type and a method
	content := strings.Join([]string{
		"package counter",
		"",
		"type Counter struct {",
		"\tn int",
		"}",
		"",
		"func (c *Counter) Inc() {",
		"\tc.n++",
		"}",
	}, "\n")
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "counter.go", "go")

	// Then: the type and method both surface as symbols
	names := map[string]SymbolType{}
	for _, ch := range chunks {
		if ch.SymbolName != "" {
			names[ch.SymbolName] = ch.SymbolType
		}
	}
	assert.Equal(t, SymbolTypeClass, names["Counter"])
	assert.Equal(t, SymbolTypeFunction, names["Inc"])
}

func TestChunker_EmptyInputYieldsNil(t *testing.T) {
	c := newTestChunker(0)

	assert.Nil(t, c.ChunkFile("", "a.py", "python"))
	assert.Nil(t, c.ChunkFile("   \n\n\t\n", "a.py", "python"))
}

// ============================================================================
// TS02: Oversize splitting
// ============================================================================

func TestChunker_SplitsOversizeFunction(t *testing.T) {
	// Given: a single 10,000-line Python function and a 200-line cap
	var b strings.Builder
	b.WriteString("def f():\n")
	for i := 0; i < 9999; i++ {
		fmt.Fprintf(&b, "    x%d = %d\n", i, i)
	}
	c := newTestChunker(200)

	// When: I chunk it
	chunks := c.ChunkFile(b.String(), "big.py", "python")

	// Then: at least 50 parts, each within the cap, named "f (part N)"
	require.GreaterOrEqual(t, len(chunks), 50)
	for i, ch := range chunks {
		assert.Equal(t, fmt.Sprintf("f (part %d)", i+1), ch.SymbolName)
		assert.Equal(t, SymbolTypeFunction, ch.SymbolType)
		assert.LessOrEqual(t, ch.EndLine-ch.StartLine+1, 200)
	}

	// And: consecutive parts tile the function without gaps
	assert.Equal(t, 1, chunks[0].StartLine)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine)
	}
	assert.Equal(t, 10000, chunks[len(chunks)-1].EndLine)
}

func TestChunker_SplitPrefersBlankLineBoundary(t *testing.T) {
	// Given: an oversize function with a blank line inside the first window
	var lines []string
	lines = append(lines, "def f():")
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf("    a%d = %d", i, i))
	}
	lines = append(lines, "")
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("    b%d = %d", i, i))
	}
	c := newTestChunker(10)

	// When: I chunk it
	chunks := c.ChunkFile(strings.Join(lines, "\n"), "f.py", "python")

	// Then: the first cut lands on the blank line, not the hard cap
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "f (part 1)", chunks[0].SymbolName)
	assert.Equal(t, 7, chunks[0].EndLine)
	assert.Equal(t, 8, chunks[1].StartLine)
}

// ============================================================================
// TS03: Partition and determinism
// ============================================================================

func TestChunker_ChunksPartitionFileLines(t *testing.T) {
	// Given: a Go file mixing header, declarations, and functions
	content := strings.Join([]string{
		"package mix",
		"",
		"import (",
		"\t\"fmt\"",
		")",
		"",
		"const limit = 10",
		"",
		"func one() int {",
		"\treturn 1",
		"}",
		"",
		"var names = []string{\"a\"}",
		"",
		"func two() int {",
		"\treturn 2",
		"}",
	}, "\n")
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "mix.go", "go")

	// Then: spans are ordered, non-overlapping, and cover every non-blank line
	covered := make(map[int]bool)
	prevEnd := 0
	for _, ch := range chunks {
		assert.Greater(t, ch.StartLine, prevEnd)
		assert.GreaterOrEqual(t, ch.EndLine, ch.StartLine)
		for line := ch.StartLine; line <= ch.EndLine; line++ {
			assert.False(t, covered[line], "line %d covered twice", line)
			covered[line] = true
		}
		prevEnd = ch.EndLine
	}
	for i, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			assert.True(t, covered[i+1], "line %d not covered: %q", i+1, line)
		}
	}
}

func TestChunker_Deterministic(t *testing.T) {
	// Given: a fixed input
	content := strings.Join([]string{
		"import os",
		"",
		"def first():",
		"    return os.getcwd()",
		"",
		"def second():",
		"    return 2",
	}, "\n")
	c := newTestChunker(0)

	// When: I chunk it twice
	a := c.ChunkFile(content, "d.py", "python")
	b := c.ChunkFile(content, "d.py", "python")

	// Then: the outputs are identical
	assert.Equal(t, a, b)
}

// ============================================================================
// TS04: Block chunks
// ============================================================================

func TestChunker_TopLevelCodeBecomesBlockChunk(t *testing.T) {
	// Given: a Python script with no definitions
	content := "x = 1\ny = x + 1\nprint(y)\n"
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "script.py", "python")

	// Then: one block chunk covering the whole file
	require.Len(t, chunks, 1)
	assert.Equal(t, SymbolTypeBlock, chunks[0].SymbolType)
	assert.Empty(t, chunks[0].SymbolName)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestChunker_BlankOnlyGapsAreDropped(t *testing.T) {
	// Given: two functions separated by blank lines only
	content := "def a():\n    pass\n\n\n\ndef b():\n    pass\n"
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "g.py", "python")

	// Then: no block chunk is emitted for the whitespace gap
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].SymbolName)
	assert.Equal(t, "b", chunks[1].SymbolName)
}

// ============================================================================
// TS05: Import headers
// ============================================================================

func TestChunker_SymbolChunksCarryImportHeader(t *testing.T) {
	// Given: a Python file with imports before its function
	content := strings.Join([]string{
		"import os",
		"from pathlib import Path",
		"",
		"def cwd():",
		"    return Path(os.getcwd())",
	}, "\n")
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "paths.py", "python")

	// Then: the function chunk is prefixed with the header, the block is not
	var fn, block *Chunk
	for i := range chunks {
		switch chunks[i].SymbolType {
		case SymbolTypeFunction:
			fn = &chunks[i]
		case SymbolTypeBlock:
			block = &chunks[i]
		}
	}
	require.NotNil(t, fn)
	assert.Equal(t, "import os\nfrom pathlib import Path", fn.ImportHeader)
	assert.True(t, strings.HasPrefix(fn.Content, fn.ImportHeader+"\n\n"))
	assert.True(t, strings.HasSuffix(fn.Content, "def cwd():\n    return Path(os.getcwd())"))
	if block != nil {
		assert.Empty(t, block.ImportHeader)
	}

	// And: the header prefix does not shift the recorded line range
	assert.Equal(t, 4, fn.StartLine)
	assert.Equal(t, 5, fn.EndLine)
}

func TestExtractImportHeader_GoGroupedImport(t *testing.T) {
	lines := []string{
		"package demo",
		"",
		"import (",
		"\t\"fmt\"",
		"\t\"os\"",
		")",
		"",
		"func main() {}",
	}

	header := extractImportHeader(lines, "go")

	assert.Equal(t, "package demo\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)", header)
}

func TestExtractImportHeader_NoImports(t *testing.T) {
	assert.Empty(t, extractImportHeader([]string{"x = 1"}, "python"))
	assert.Empty(t, extractImportHeader([]string{"import os"}, "cobol"))
}

// ============================================================================
// TS06: Strategy fallback
// ============================================================================

func TestChunker_RegexTierHandlesUnparsedLanguages(t *testing.T) {
	// Given: a Java file, which has no tree-sitter grammar wired
	content := strings.Join([]string{
		"package demo;",
		"",
		"public class Widget {",
		"    private int size;",
		"}",
	}, "\n")
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "Widget.java", "java")

	// Then: the regex tier still finds the class
	var found bool
	for _, ch := range chunks {
		if ch.SymbolName == "Widget" && ch.SymbolType == SymbolTypeClass {
			found = true
		}
	}
	assert.True(t, found)
}

func TestChunker_ParseErrorFallsBackToRegex(t *testing.T) {
	// Given: Python with a syntax error in one definition header
	content := "def broken(:\n    pass\n\ndef fine():\n    pass\n"
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "bad.py", "python")

	// Then: the regex tier still recovers both symbol names
	names := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		names = append(names, ch.SymbolName)
	}
	assert.Contains(t, names, "broken")
	assert.Contains(t, names, "fine")
}

func TestChunker_UnknownLanguageFallsBackToBlocks(t *testing.T) {
	// Given: content in a language neither tier understands
	content := "SELECT *\nFROM users\nWHERE id = 1\n"
	c := newTestChunker(0)

	// When: I chunk it
	chunks := c.ChunkFile(content, "q.sql", "sql")

	// Then: everything lands in a single block chunk
	require.Len(t, chunks, 1)
	assert.Equal(t, SymbolTypeBlock, chunks[0].SymbolType)
}

// ============================================================================
// TS07: Regex strategy details
// ============================================================================

func TestRegexStrategy_SymbolSpansRunToNextSymbol(t *testing.T) {
	lines := []string{
		"def a():",
		"    pass",
		"",
		"def b():",
		"    pass",
	}

	symbols, ok := NewRegexStrategy().Extract(nil, lines, "python")

	require.True(t, ok)
	require.Len(t, symbols, 2)
	assert.Equal(t, Symbol{Name: "a", Type: SymbolTypeFunction, Start: 0, End: 3}, symbols[0])
	assert.Equal(t, Symbol{Name: "b", Type: SymbolTypeFunction, Start: 3, End: 5}, symbols[1])
}

func TestRegexStrategy_IgnoresIndentedDefinitions(t *testing.T) {
	lines := []string{
		"class C:",
		"    def method(self):",
		"        pass",
	}

	symbols, ok := NewRegexStrategy().Extract(nil, lines, "python")

	require.True(t, ok)
	require.Len(t, symbols, 1)
	assert.Equal(t, "C", symbols[0].Name)
}

func TestRegexStrategy_ArrowFunctions(t *testing.T) {
	lines := []string{
		"export const sum = (a, b) => a + b",
	}

	symbols, ok := NewRegexStrategy().Extract(nil, lines, "typescript")

	require.True(t, ok)
	require.Len(t, symbols, 1)
	assert.Equal(t, "sum", symbols[0].Name)
	assert.Equal(t, SymbolTypeFunction, symbols[0].Type)
}
