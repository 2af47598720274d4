package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 200000, cfg.Indexer.FlushThreshold)
	assert.Equal(t, 200*time.Millisecond, cfg.Ranking.Budget)
	assert.Equal(t, 260*time.Millisecond, cfg.Ranking.FallbackBudget)
	assert.Equal(t, 200, cfg.Ranking.MaxDocuments)
	assert.Equal(t, 40, cfg.Ranking.FullyScored)
	assert.Equal(t, 10, cfg.Ranking.MinResults)
	assert.Equal(t, 20, cfg.PageRank.Iterations)
	assert.Equal(t, 0.85, cfg.PageRank.Damping)
	require.NotEmpty(t, cfg.Indexer.Indexes)
	assert.Equal(t, "words", cfg.Indexer.Indexes[0].Name)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
indexer:
  flushThreshold: 10
  indexes:
    - name: only
      tokenizer: word
      weight: 2
ranking:
  budget: 50ms
  fallbackBudget: 80ms
`), 0644))
	t.Setenv("SP_INDEXER_DATA_DIR", "/tmp/elsewhere")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Indexer.FlushThreshold)
	assert.Equal(t, []IndexSpec{{Name: "only", Tokenizer: "word", Weight: 2}}, cfg.Indexer.Indexes)
	assert.Equal(t, 50*time.Millisecond, cfg.Ranking.Budget)
	assert.Equal(t, "/tmp/elsewhere", cfg.Indexer.DataDir)
	assert.Equal(t, 200, cfg.Ranking.MaxDocuments, "unset keys keep defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no indexes", func(c *Config) { c.Indexer.Indexes = nil }},
		{"duplicate index", func(c *Config) {
			c.Indexer.Indexes = []IndexSpec{{Name: "a"}, {Name: "a"}}
		}},
		{"negative weight", func(c *Config) {
			c.Indexer.Indexes = []IndexSpec{{Name: "a", Weight: -1}}
		}},
		{"zero flush threshold", func(c *Config) { c.Indexer.FlushThreshold = 0 }},
		{"short fallback", func(c *Config) { c.Ranking.FallbackBudget = time.Millisecond }},
		{"bad damping", func(c *Config) { c.PageRank.Damping = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, defaultConfig().Validate())
}
