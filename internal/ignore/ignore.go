// Package ignore matches workspace paths against gitignore-style patterns.
//
// It covers the parts of the gitignore syntax that matter for deciding which
// files to index: wildcards, directory-only patterns, anchoring, and
// negation. A Matcher is built once from a pattern source and is read-only
// afterwards, so it is safe to share across goroutines.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher decides whether a workspace-relative path should be ignored.
type Matcher struct {
	rules []rule
}

type rule struct {
	re       *regexp.Regexp
	negated  bool // pattern started with !
	dirOnly  bool // pattern ended with /
	anchored bool // pattern contains a slash, so it matches from the root
}

// NewMatcher compiles a list of patterns. Blank lines and comments are
// skipped. Invalid patterns are skipped rather than failing the whole set.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{}
	for _, p := range patterns {
		m.add(p)
	}
	return m
}

// FromWorkspace builds a matcher from the workspace root's .gitignore.
// A missing file yields an empty matcher, not an error.
func FromWorkspace(root string) (*Matcher, error) {
	m := &Matcher{}

	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Ignored reports whether a slash-separated workspace-relative path matches
// the pattern set. Later patterns win, so a negation can re-include a path
// excluded by an earlier rule.
func (m *Matcher) Ignored(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	ignored := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			ignored = !r.negated
		}
	}
	return ignored
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int { return len(m.rules) }

func (m *Matcher) add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	var r rule

	if strings.HasPrefix(pattern, `\#`) || strings.HasPrefix(pattern, `\!`) {
		pattern = pattern[1:]
	} else if strings.HasPrefix(pattern, "!") {
		r.negated = true
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	if strings.HasPrefix(pattern, "/") {
		pattern = strings.TrimPrefix(pattern, "/")
		r.anchored = true
	} else if strings.Contains(pattern, "/") {
		// A slash anywhere in the pattern anchors it to the root:
		// "doc/frotz" means "/doc/frotz", not "**/doc/frotz".
		r.anchored = true
	}
	if pattern == "" {
		return
	}

	re, err := regexp.Compile("^" + patternToRegex(pattern) + "$")
	if err != nil {
		return
	}
	r.re = re
	m.rules = append(m.rules, r)
}

func (r rule) matches(path string, isDir bool) bool {
	parts := strings.Split(path, "/")

	if r.anchored {
		if r.re.MatchString(path) {
			return !r.dirOnly || isDir
		}
		// A directory pattern also claims everything beneath the directory.
		for i := 1; i < len(parts); i++ {
			if r.re.MatchString(strings.Join(parts[:i], "/")) {
				return true
			}
		}
		return false
	}

	if r.dirOnly {
		for i, part := range parts {
			if r.re.MatchString(part) {
				if i == len(parts)-1 {
					return isDir
				}
				return true
			}
		}
		return false
	}

	// Unanchored patterns match the basename or any single path component;
	// patterns containing ** may span the full path.
	if r.re.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.re.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex translates gitignore wildcards into a regular expression.
// * stays within one path component, ** crosses components, ? matches one
// non-slash character.
func patternToRegex(pattern string) string {
	var b strings.Builder

	for i := 0; i < len(pattern); {
		switch c := pattern[i]; c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
			} else if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(".*")
				i += 2
			} else {
				b.WriteString("[^/]*")
				i++
			}

		case '?':
			b.WriteString("[^/]")
			i++

		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end > 0 {
				b.WriteString(pattern[i : i+end+1])
				i += end + 1
			} else {
				b.WriteString(regexp.QuoteMeta("["))
				i++
			}

		case '\\':
			if i+1 < len(pattern) {
				b.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				b.WriteString(regexp.QuoteMeta(`\`))
				i++
			}

		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	return b.String()
}
