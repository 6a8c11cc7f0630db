package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"src/app.py", "python"},
		{"lib/Widget.TSX", "tsx"},
		{"deep/nested/path/util.js", "javascript"},
		{"windows\\style\\path.rs", "rust"},
		{"README.md", "markdown"},
		{"Makefile", ""},
		{"archive.tar.gz", ""},
		{"noext", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.path), "path %q", tt.path)
	}
}

func TestDetect_ExtensionBeatsDirectoryName(t *testing.T) {
	// A dot in a directory name must not be mistaken for the extension.
	assert.Equal(t, "python", Detect("v1.2/tool.py"))
	assert.Equal(t, "", Detect("v1.2/tool"))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("go"))
	assert.True(t, IsSupported("typescript"))
	assert.False(t, IsSupported("cobol"))
	assert.False(t, IsSupported(""))
}
