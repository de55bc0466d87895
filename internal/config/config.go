package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for out-of-range or unknown settings.
var ErrInvalidConfig = errors.New("invalid config")

const (
	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	DataPath     string        `yaml:"data_path"`
	LogLevel     string        `yaml:"log_level"`
	Store        StoreConfig   `yaml:"store"`
	RAG          RAGConfig     `yaml:"rag"`
	EmbedLLM     LLMConfig     `yaml:"embed_llm"`
	InferenceLLM LLMConfig     `yaml:"inference_llm"`
	Metrics      MetricsConfig `yaml:"metrics"`
}

type StoreConfig struct {
	Backend        string         `yaml:"backend"`
	Path           string         `yaml:"path"`
	CollectionName string         `yaml:"collection_name"`
	Compress       bool           `yaml:"compress"`
	EncryptionKey  string         `yaml:"encryption_key"`
	Postgres       PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	// Driver is "pgdriver" (bun's native driver) or "pq" (lib/pq).
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type RAGConfig struct {
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	TopK          int `yaml:"top_k"`
	PreviewLength int `yaml:"preview_length"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
}

type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	return &Config{
		DataPath: "data",
		LogLevel: "info",
		Store: StoreConfig{
			Backend:        BackendChromem,
			Path:           "chroma",
			CollectionName: "documents",
			Postgres: PostgresConfig{
				Driver: "pgdriver",
			},
		},
		RAG: RAGConfig{
			ChunkSize:     800,
			ChunkOverlap:  80,
			TopK:          5,
			PreviewLength: 60,
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		InferenceLLM: LLMConfig{
			Provider: ProviderOllama,
			BaseURL:  "http://localhost:11434",
			Model:    "mistral",
		},
	}
}

// LoadConfig overlays the YAML file at path onto Default. A missing file is
// not an error. ${VAR} references in the file are expanded from the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("%w: data_path is required", ErrInvalidConfig)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: rag.chunk_size must be positive", ErrInvalidConfig)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: rag.chunk_overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("%w: rag.top_k must be positive", ErrInvalidConfig)
	}
	if c.RAG.PreviewLength < 0 {
		return fmt.Errorf("%w: rag.preview_length must not be negative", ErrInvalidConfig)
	}

	switch c.Store.Backend {
	case BackendChromem:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the chromem backend", ErrInvalidConfig)
		}
	case BackendPgvector:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("%w: store.postgres.dsn is required for the pgvector backend", ErrInvalidConfig)
		}
		if d := c.Store.Postgres.Driver; d != "" && d != "pgdriver" && d != "pq" {
			return fmt.Errorf("%w: unknown store.postgres.driver %q", ErrInvalidConfig, d)
		}
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Store.CollectionName == "" {
		return fmt.Errorf("%w: store.collection_name is required", ErrInvalidConfig)
	}
	if n := len(c.Store.EncryptionKey); n != 0 && n != 32 {
		return fmt.Errorf("%w: store.encryption_key must be 32 bytes", ErrInvalidConfig)
	}

	for name, llm := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "inference_llm": c.InferenceLLM} {
		switch llm.Provider {
		case ProviderOllama, ProviderOpenAI, ProviderGemini:
		default:
			return fmt.Errorf("%w: unknown %s.provider %q", ErrInvalidConfig, name, llm.Provider)
		}
		if llm.Model == "" {
			return fmt.Errorf("%w: %s.model is required", ErrInvalidConfig, name)
		}
	}
	return nil
}
