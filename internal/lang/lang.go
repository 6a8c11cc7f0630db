// Package lang maps file paths to language identifiers.
package lang

import "strings"

// extensionMap maps file extensions (and a few exact filenames) to languages.
// Only languages the chunker can do something useful with are listed; any
// other file falls back to block-only chunking with an empty language.
var extensionMap = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyw":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "tsx",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".kt":    "kotlin",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
}

// Detect returns the language for a file path, or "" when unknown.
func Detect(path string) string {
	base := path
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}

	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return extensionMap[strings.ToLower(base[i:])]
}

// IsSupported reports whether the language has an extension mapping.
func IsSupported(language string) bool {
	for _, l := range extensionMap {
		if l == language {
			return true
		}
	}
	return false
}
