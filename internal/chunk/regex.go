package chunk

import (
	"regexp"
)

// definitionPattern matches a definition header line and captures the name.
type definitionPattern struct {
	re  *regexp.Regexp
	typ SymbolType
}

// Patterns are anchored at column zero so only top-level definitions match.
// The name is always capture group 1.
var regexLanguagePatterns = map[string][]definitionPattern{
	"python": {
		{regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(`), SymbolTypeFunction},
		{regexp.MustCompile(`^class\s+(\w+)\s*[(:]`), SymbolTypeClass},
	},
	"go": {
		{regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?(\w+)\s*[(\[]`), SymbolTypeFunction},
		{regexp.MustCompile(`^type\s+(\w+)\s`), SymbolTypeClass},
	},
	"javascript": {
		{regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`), SymbolTypeFunction},
		{regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`), SymbolTypeClass},
		{regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+(\w+)\s*(?::[^=]*)?=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`), SymbolTypeFunction},
	},
	"java": {
		{regexp.MustCompile(`^(?:(?:public|protected|private|abstract|final|static|sealed)\s+)*(?:class|interface|enum|record)\s+(\w+)`), SymbolTypeClass},
	},
}

func init() {
	regexLanguagePatterns["typescript"] = regexLanguagePatterns["javascript"]
	regexLanguagePatterns["tsx"] = regexLanguagePatterns["javascript"]
}

// RegexStrategy is the line-anchored fallback extractor. It matches
// definition header lines and infers each symbol's end as the start of the
// next top-level symbol, or end-of-file for the last one.
type RegexStrategy struct{}

// NewRegexStrategy returns the regex extractor tier.
func NewRegexStrategy() *RegexStrategy {
	return &RegexStrategy{}
}

// Name identifies the strategy in logs.
func (s *RegexStrategy) Name() string { return "regex" }

// Extract scans for definition headers. NotApplicable for languages without
// patterns and for files where nothing matches.
func (s *RegexStrategy) Extract(source []byte, lines []string, language string) ([]Symbol, bool) {
	patterns, ok := regexLanguagePatterns[language]
	if !ok {
		return nil, false
	}

	var symbols []Symbol
	for i, line := range lines {
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			symbols = append(symbols, Symbol{
				Name:  m[1],
				Type:  p.typ,
				Start: i,
			})
			break
		}
	}

	if len(symbols) == 0 {
		return nil, false
	}

	// Each symbol runs to the start of the next one; the last to EOF.
	for i := range symbols {
		if i+1 < len(symbols) {
			symbols[i].End = symbols[i+1].Start
		} else {
			symbols[i].End = len(lines)
		}
	}

	return symbols, true
}
