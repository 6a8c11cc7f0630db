package chunk

import (
	"regexp"
	"strings"
)

// importPatterns matches import-like lines per language. A line matching any
// pattern for the file's language belongs to the import header.
var importPatterns = map[string][]*regexp.Regexp{
	"go": {
		regexp.MustCompile(`^package\s+\w+`),
		regexp.MustCompile(`^import\s`),
	},
	"python": {
		regexp.MustCompile(`^import\s+\S`),
		regexp.MustCompile(`^from\s+\S+\s+import\s`),
	},
	"javascript": {
		regexp.MustCompile(`^import\s`),
		regexp.MustCompile(`^(?:const|let|var)\s+.*=\s*require\s*\(`),
	},
	"java": {
		regexp.MustCompile(`^package\s+[\w.]+;`),
		regexp.MustCompile(`^import\s+(?:static\s+)?[\w.*]+;`),
	},
	"ruby": {
		regexp.MustCompile(`^require(?:_relative)?\s`),
	},
	"rust": {
		regexp.MustCompile(`^use\s+\S`),
		regexp.MustCompile(`^extern\s+crate\s`),
	},
	"c": {
		regexp.MustCompile(`^#include\s`),
	},
}

func init() {
	// Languages sharing another language's import syntax.
	importPatterns["typescript"] = importPatterns["javascript"]
	importPatterns["tsx"] = importPatterns["javascript"]
	importPatterns["cpp"] = importPatterns["c"]
}

// extractImportHeader returns the leading contiguous block of import-like
// lines, tolerating interleaved blank lines and comments, capped at
// MaxHeaderLines. It stops at the first line that is neither an import nor a
// passthrough line. The returned string has no trailing newline; empty when
// the file has no import header.
func extractImportHeader(lines []string, language string) string {
	patterns, ok := importPatterns[language]
	if !ok {
		return ""
	}

	var header []string
	lastImport := -1 // index into header of the last import-like line
	parenDepth := 0  // tracks Go's grouped import ( ... ) form

	for i, line := range lines {
		if i >= MaxHeaderLines {
			break
		}
		trimmed := strings.TrimSpace(line)

		switch {
		case parenDepth > 0:
			header = append(header, line)
			lastImport = len(header) - 1
			parenDepth += strings.Count(line, "(") - strings.Count(line, ")")

		case matchesAny(patterns, line):
			header = append(header, line)
			lastImport = len(header) - 1
			if language == "go" && strings.HasPrefix(trimmed, "import") {
				parenDepth = strings.Count(line, "(") - strings.Count(line, ")")
			}

		case trimmed == "" || isCommentLine(trimmed, language):
			// Passthrough: kept only if more imports follow.
			header = append(header, line)

		default:
			// First real code line ends the header.
			if lastImport < 0 {
				return ""
			}
			return strings.Join(header[:lastImport+1], "\n")
		}
	}

	if lastImport < 0 {
		return ""
	}
	return strings.Join(header[:lastImport+1], "\n")
}

func matchesAny(patterns []*regexp.Regexp, line string) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// isCommentLine reports whether a trimmed line is a comment in the language.
func isCommentLine(trimmed, language string) bool {
	switch language {
	case "python", "ruby", "shell", "yaml":
		return strings.HasPrefix(trimmed, "#")
	case "go", "javascript", "typescript", "tsx", "java", "rust", "c", "cpp", "csharp", "kotlin", "swift", "scala":
		return strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "/*") ||
			strings.HasPrefix(trimmed, "*")
	default:
		return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//")
	}
}
