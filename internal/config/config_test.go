package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	// Given: no config file on disk
	t.Setenv("CODESCOUT_DATA_DIR", "")

	// When: I load a nonexistent path
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	// Then: defaults apply
	require.NoError(t, err)
	assert.Equal(t, "http", cfg.Embeddings.Provider)
	assert.Equal(t, DefaultModel, cfg.Embeddings.Model)
	assert.Equal(t, DefaultBatchSize, cfg.Embeddings.BatchSize)
	assert.Equal(t, DefaultM, cfg.Store.M)
	assert.Equal(t, DefaultMaxLines, cfg.Chunker.MaxLines)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// Given: a config file setting a few fields
	path := filepath.Join(t.TempDir(), "codescout.yaml")
	content := `
embeddings:
  provider: static
  dimensions: 128
chunker:
  max_lines: 100
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: I load it
	cfg, err := Load(path)

	// Then: file values win, untouched fields keep defaults
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 128, cfg.Embeddings.Dimensions)
	assert.Equal(t, 100, cfg.Chunker.MaxLines)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DefaultEndpoint, cfg.Embeddings.Endpoint)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Given: a config file and a conflicting environment variable
	path := filepath.Join(t.TempDir(), "codescout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embeddings:\n  model: from-file\n"), 0o644))
	t.Setenv("CODESCOUT_EMBED_MODEL", "from-env")

	// When: I load it
	cfg, err := Load(path)

	// Then: the environment wins
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Embeddings.Model)
}

func TestLoad_MalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embeddings: [not a map"), 0o644))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embeddings.Provider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Embeddings.Dimensions = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Indexer.Workers = -2
	assert.Error(t, cfg.Validate())
}

func TestValidate_FillsTelemetryPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/cs"
	cfg.Telemetry.Enabled = true

	require.NoError(t, cfg.Validate())

	assert.Equal(t, filepath.Join("/tmp/cs", "telemetry.db"), cfg.Telemetry.Path)
}

func TestWorkspaceDir_SanitizesID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"

	assert.Equal(t, filepath.Join("/data", "my-project_1.0"), cfg.WorkspaceDir("my-project_1.0"))
	assert.Equal(t, filepath.Join("/data", "a_b_c"), cfg.WorkspaceDir("a/b:c"))
}

func TestSaveAndReload(t *testing.T) {
	// Given: a customized config saved to disk
	path := filepath.Join(t.TempDir(), "sub", "codescout.yaml")
	cfg := DefaultConfig()
	cfg.Embeddings.Provider = "static"
	cfg.Embeddings.Dimensions = 64
	require.NoError(t, cfg.Save(path))

	// When: I load it back
	loaded, err := Load(path)

	// Then: the saved fields round-trip
	require.NoError(t, err)
	assert.Equal(t, "static", loaded.Embeddings.Provider)
	assert.Equal(t, 64, loaded.Embeddings.Dimensions)
}
