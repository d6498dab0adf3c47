// Package config provides configuration loading for the rag engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration. Every field has a working default so
// the engine runs out of the box against a local Ollama.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	AutoStart AutoStartConfig `yaml:"autostart"`
}

// ServerConfig holds the tool server bind settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for net listeners and client base URLs.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the http URL clients dial.
func (s ServerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

// StoreConfig holds the persistent retrieval store settings.
type StoreConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
}

// EmbeddingConfig holds the embedding backend settings.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LLMConfig holds the generation backend settings.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Classification *bool  `yaml:"classification"`
}

// ClassificationEnabled reports whether the model-based query classifier
// is on; unset means on.
func (l LLMConfig) ClassificationEnabled() bool {
	if l.Classification != nil {
		return *l.Classification
	}
	return true
}

// ChunkingConfig holds the text splitting parameters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds search parameters.
type RetrievalConfig struct {
	K int `yaml:"k"`
}

// AutoStartConfig controls whether clients launch the tool server when it
// is not already running, and how long they wait for it to come up.
type AutoStartConfig struct {
	Enabled      *bool         `yaml:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// EnabledOrDefault reports whether auto-start is on; unset means on.
func (a AutoStartConfig) EnabledOrDefault() bool {
	if a.Enabled != nil {
		return *a.Enabled
	}
	return true
}

// Load reads the config file at path. A missing file is not an error; the
// defaults are returned instead. A .env file next to the process, if
// present, is loaded first so the yaml can be overridden per environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8765},
		Store: StoreConfig{
			Path:       "rag.db",
			Collection: "rag_documents",
			Dimensions: 768,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		Chunking:  ChunkingConfig{Size: 800, Overlap: 150},
		Retrieval: RetrievalConfig{K: 3},
		AutoStart: AutoStartConfig{
			MaxAttempts:  30,
			PollInterval: time.Second,
			ProbeTimeout: 3 * time.Second,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = def.Store.Collection
	}
	if cfg.Store.Dimensions == 0 {
		cfg.Store.Dimensions = def.Store.Dimensions
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = def.Embedding.BaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = def.Chunking.Size
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = def.Chunking.Overlap
		// Keep the default overlap valid against a smaller custom size.
		if cfg.Chunking.Overlap >= cfg.Chunking.Size {
			cfg.Chunking.Overlap = cfg.Chunking.Size / 5
		}
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = def.Retrieval.K
	}
	if cfg.AutoStart.MaxAttempts == 0 {
		cfg.AutoStart.MaxAttempts = def.AutoStart.MaxAttempts
	}
	if cfg.AutoStart.PollInterval == 0 {
		cfg.AutoStart.PollInterval = def.AutoStart.PollInterval
	}
	if cfg.AutoStart.ProbeTimeout == 0 {
		cfg.AutoStart.ProbeTimeout = def.AutoStart.ProbeTimeout
	}
}

func validate(cfg *Config) error {
	if cfg.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap <= 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in (0, size), got %d", cfg.Chunking.Overlap)
	}
	if cfg.Store.Dimensions <= 0 {
		return fmt.Errorf("store.dimensions must be positive, got %d", cfg.Store.Dimensions)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	return nil
}
