package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr())
	assert.Equal(t, "rag_documents", cfg.Store.Collection)
	assert.Equal(t, 768, cfg.Store.Dimensions)
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 150, cfg.Chunking.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.True(t, cfg.AutoStart.EnabledOrDefault())
	assert.True(t, cfg.LLM.ClassificationEnabled())
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
store:
  path: /tmp/test.db
chunking:
  size: 400
  overlap: 50
llm:
  classification: false
autostart:
  enabled: false
  poll_interval: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset fields keep defaults")
	assert.Equal(t, "/tmp/test.db", cfg.Store.Path)
	assert.Equal(t, 400, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.False(t, cfg.LLM.ClassificationEnabled())
	assert.False(t, cfg.AutoStart.EnabledOrDefault())
	assert.Equal(t, 250*time.Millisecond, cfg.AutoStart.PollInterval)
	assert.Equal(t, 30, cfg.AutoStart.MaxAttempts)
}

func TestLoadRejectsInvalidChunking(t *testing.T) {
	path := writeConfig(t, `
chunking:
  size: 100
  overlap: 100
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestBaseURL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://127.0.0.1:8765", cfg.Server.BaseURL())
}
