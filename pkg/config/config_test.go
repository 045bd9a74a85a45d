package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesSpecDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "bolt://localhost:7687", cfg.Memgraph.URI)
	assert.Equal(t, 50, cfg.Memgraph.BatchSize)
	assert.False(t, cfg.Memgraph.CleanStart)
	assert.True(t, cfg.Memgraph.Retry.Enabled)
	assert.Equal(t, 5, cfg.Memgraph.Retry.MaxAttempts)
	assert.Equal(t, 100, cfg.Memgraph.Retry.InitialDelayMs)
	assert.Equal(t, 5000, cfg.Memgraph.Retry.MaxDelayMs)
	assert.Equal(t, 2.0, cfg.Memgraph.Retry.ExponentialBase)
	assert.Equal(t, 2048, cfg.Memgraph.Memory.AutoFreeThresholdMB)
	assert.False(t, cfg.Analysis.IncludeDevDeps)
	assert.False(t, cfg.Embeddings.Enabled)
	assert.Equal(t, 4, cfg.Performance.MaxThreads)
	assert.True(t, cfg.Performance.Incremental)
}

func TestLoad_OverlaysYAMLOnDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rcie.yaml")
	content := `
memgraph:
  uri: "bolt://memgraph.internal:7687"
  batch_size: 200
  clean_start: true
analysis:
  include_dev_deps: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://memgraph.internal:7687", cfg.Memgraph.URI)
	assert.Equal(t, 200, cfg.Memgraph.BatchSize)
	assert.True(t, cfg.Memgraph.CleanStart)
	assert.True(t, cfg.Analysis.IncludeDevDeps)

	// Untouched fields still carry their defaults.
	assert.Equal(t, 5, cfg.Memgraph.Retry.MaxAttempts)
	assert.Equal(t, 4, cfg.Performance.MaxThreads)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memgraph: [this is not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
