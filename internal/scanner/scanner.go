// Package scanner walks a directory tree and collects the source files
// worth indexing: supported languages only, no binaries, no oversized
// files, no VCS or dependency directories. The workspace root's .gitignore
// is honored on top of the built-in skip list.
package scanner

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/codescout/codescout/internal/ignore"
	"github.com/codescout/codescout/internal/lang"
)

// DefaultMaxFileSize caps files at 1 MiB; larger ones are almost always
// generated or vendored.
const DefaultMaxFileSize = 1 << 20

// skipDirs are directories never worth descending into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".codescout":   true,
}

// File is one scanned source file with its content loaded.
type File struct {
	// Path is relative to the scan root, slash-separated.
	Path     string
	Content  string
	Language string
	Size     int64
}

// Options configures a scan.
type Options struct {
	// MaxFileSize caps file size in bytes. Zero means DefaultMaxFileSize.
	MaxFileSize int64

	// Languages restricts the scan to the named languages. Empty means
	// every supported language.
	Languages []string
}

// Scanner walks directory trees.
type Scanner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a scanner.
func New(opts Options, logger *slog.Logger) *Scanner {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{opts: opts, logger: logger}
}

// Scan walks root and returns the indexable files in walk order.
// Unreadable files and subtrees are logged and skipped, never fatal.
func (s *Scanner) Scan(root string) ([]File, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	wantLang := make(map[string]bool, len(s.opts.Languages))
	for _, l := range s.opts.Languages {
		wantLang[l] = true
	}

	ignorer, err := ignore.FromWorkspace(abs)
	if err != nil {
		s.logger.Warn("skipping .gitignore", slog.String("error", err.Error()))
		ignorer = ignore.NewMatcher(nil)
	}

	var files []File
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", slog.String("path", path))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		rel, relErr := filepath.Rel(abs, path)
		if relErr != nil {
			rel = name
		}
		if d.IsDir() {
			if path == abs {
				return nil
			}
			if skipDirs[name] || strings.HasPrefix(name, ".") || ignorer.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignorer.Ignored(rel, false) {
			return nil
		}

		language := lang.Detect(path)
		if language == "" {
			return nil
		}
		if len(wantLang) > 0 && !wantLang[language] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if fi.Size() > s.opts.MaxFileSize {
			s.logger.Debug("skipping oversized file",
				slog.String("path", path),
				slog.Int64("size", fi.Size()))
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if isBinary(content) {
			return nil
		}

		files = append(files, File{
			Path:     filepath.ToSlash(rel),
			Content:  string(content),
			Language: language,
			Size:     fi.Size(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}
	return files, nil
}

// isBinary sniffs the first 512 bytes for a NUL.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 512 {
		probe = probe[:512]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
