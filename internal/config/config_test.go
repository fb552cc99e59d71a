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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvGeminiKey, "")
	t.Setenv(EnvPineconeKey, "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "rag", cfg.VectorDB.Index)
	assert.Equal(t, "ns1", cfg.VectorDB.Namespace)
	assert.Equal(t, "text-embedding-004", cfg.EmbedLLM.Model)
	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, ProviderPinecone, cfg.VectorDB.Provider)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv(EnvGeminiKey, "gem-key")
	t.Setenv(EnvPineconeKey, "pc-key")

	path := writeConfig(t, `
server:
  addr: ":9090"
  write_timeout: 45s
llm:
  model: gemini-1.5-pro
  stream: true
vectordb:
  provider: " Chromem "
  key: file-key
rag:
  top_k: 0
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "gemini-1.5-pro", cfg.LLM.Model)
	assert.True(t, cfg.LLM.Stream)
	assert.Equal(t, ProviderChromem, cfg.VectorDB.Provider)
	// environment secrets override the file
	assert.Equal(t, "pc-key", cfg.VectorDB.Key)
	assert.Equal(t, "gem-key", cfg.LLM.Key)
	assert.Equal(t, "gem-key", cfg.EmbedLLM.Key)
	assert.Equal(t, 3, cfg.RAG.TopK)
}

func TestLoadConfig_EmbedderKeepsOwnKey(t *testing.T) {
	t.Setenv(EnvGeminiKey, "gem-key")
	t.Setenv(EnvPineconeKey, "")

	path := writeConfig(t, `
embed_llm:
  key: embed-key
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gem-key", cfg.LLM.Key)
	assert.Equal(t, "embed-key", cfg.EmbedLLM.Key)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
		ok      bool
	}{
		{
			name:   "pinecone with keys",
			mutate: func(c *Config) { c.LLM.Key = "g"; c.VectorDB.Key = "p" },
			ok:     true,
		},
		{
			name:    "missing gemini key",
			mutate:  func(c *Config) { c.VectorDB.Key = "p" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "missing pinecone key",
			mutate:  func(c *Config) { c.LLM.Key = "g" },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:   "chromem needs no pinecone key",
			mutate: func(c *Config) { c.LLM.Key = "g"; c.VectorDB.Provider = ProviderChromem },
			ok:     true,
		},
		{
			name:   "pgvector without dsn",
			mutate: func(c *Config) { c.LLM.Key = "g"; c.VectorDB.Provider = ProviderPgvector },
		},
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.LLM.Key = "g"; c.VectorDB.Provider = "faiss" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
