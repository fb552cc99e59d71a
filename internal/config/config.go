package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvPineconeKey = "PINECONE_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"

	ProviderPinecone = "pinecone"
	ProviderChromem  = "chromem"
	ProviderPgvector = "pgvector"
)

var ErrMissingAPIKey = errors.New("missing api key")

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	VectorDB VectorDBConfig `yaml:"vectordb"`
	Database DatabaseConfig `yaml:"database"`
	RAG      RAGConfig      `yaml:"rag"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// LLMConfig describes a Gemini model. Key is only ever read from the environment
// when the file leaves it empty.
type LLMConfig struct {
	Key    string `yaml:"key"`
	Model  string `yaml:"model"`
	Stream bool   `yaml:"stream"`
}

type VectorDBConfig struct {
	Provider  string `yaml:"provider"`
	Key       string `yaml:"key"`
	Index     string `yaml:"index"`
	Host      string `yaml:"host"`
	Namespace string `yaml:"namespace"`
	// chromem only
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

type DatabaseConfig struct {
	DSN        string `yaml:"dsn"`
	Password   string `yaml:"password"`
	Debug      bool   `yaml:"debug"`
	Dimensions int    `yaml:"dimensions"`
}

type RAGConfig struct {
	TopK          int    `yaml:"top_k"`
	SeedBatchSize int    `yaml:"seed_batch_size"`
	EncryptionKey string `yaml:"encryption_key"`
}

// Default returns the configuration the service runs with when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Log: LogConfig{Level: "info"},
		LLM: LLMConfig{
			Model: "gemini-1.5-flash",
		},
		EmbedLLM: LLMConfig{
			Model: "text-embedding-004",
		},
		VectorDB: VectorDBConfig{
			Provider:   ProviderPinecone,
			Index:      "rag",
			Namespace:  "ns1",
			Path:       "./chromemdb",
			Collection: "professors",
		},
		Database: DatabaseConfig{
			Dimensions: 768,
		},
		RAG: RAGConfig{
			TopK:          3,
			SeedBatchSize: 100,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults and then applies secrets
// from the environment. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// .env.local wins over .env; godotenv never overrides what is already set
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvGeminiKey); v != "" {
		c.LLM.Key = v
	}
	if v := os.Getenv(EnvPineconeKey); v != "" {
		c.VectorDB.Key = v
	}
	// the embedder shares the generation key unless given its own
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = c.LLM.Key
	}
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = d.RAG.TopK
	}
	if c.RAG.SeedBatchSize <= 0 {
		c.RAG.SeedBatchSize = d.RAG.SeedBatchSize
	}
	if c.Database.Dimensions <= 0 {
		c.Database.Dimensions = d.Database.Dimensions
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	c.VectorDB.Provider = strings.ToLower(strings.TrimSpace(c.VectorDB.Provider))
	if c.VectorDB.Provider == "" {
		c.VectorDB.Provider = ProviderPinecone
	}
}

// Validate checks that every secret the configured providers need is present.
func (c *Config) Validate() error {
	if c.LLM.Key == "" {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, EnvGeminiKey)
	}
	switch c.VectorDB.Provider {
	case ProviderPinecone:
		if c.VectorDB.Key == "" {
			return fmt.Errorf("%w: set %s", ErrMissingAPIKey, EnvPineconeKey)
		}
		if c.VectorDB.Index == "" && c.VectorDB.Host == "" {
			return errors.New("vectordb: index or host is required")
		}
	case ProviderChromem:
	case ProviderPgvector:
		if c.Database.DSN == "" {
			return errors.New("database: dsn is required for pgvector")
		}
	default:
		return fmt.Errorf("vectordb: unsupported provider %q", c.VectorDB.Provider)
	}
	return nil
}
