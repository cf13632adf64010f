package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "DOCQA_"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"
)

const (
	defaultLogLevel       = "info"
	defaultSessionFile    = "./data/session.yaml"
	defaultMaxTokens      = 300
	defaultTopK           = 5
	defaultCollection     = "doc_chunks"
	defaultChromemPath    = "./data/chromem"
	defaultVectorSize     = 768
	defaultTabularPath    = "./data/uploaded_data.db"
	defaultRetryAttempts  = 1
	defaultRetryDelay     = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
	defaultDatabaseDriver = DriverPgdriver
)

type Config struct {
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`
	SessionFile string `yaml:"session_file" env:"SESSION_FILE"`

	EmbedLLM     LLMConfig         `yaml:"embed_llm" envPrefix:"EMBED_LLM_"`
	InferenceLLM LLMConfig         `yaml:"inference_llm" envPrefix:"INFERENCE_LLM_"`
	RAG          RAGConfig         `yaml:"rag" envPrefix:"RAG_"`
	VectorStore  VectorStoreConfig `yaml:"vector_store" envPrefix:"VECTOR_STORE_"`
	Database     DatabaseConfig    `yaml:"database" envPrefix:"DATABASE_"`
	Tabular      TabularConfig     `yaml:"tabular" envPrefix:"TABULAR_"`
	Retry        RetryConfig       `yaml:"retry" envPrefix:"RETRY_"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"PROVIDER"`
	BaseURL     string  `yaml:"base_url" env:"BASE_URL"`
	Key         string  `yaml:"key" env:"KEY"`
	Model       string  `yaml:"model" env:"MODEL"`
	JSONMode    bool    `yaml:"json_mode" env:"JSON_MODE"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
}

type RAGConfig struct {
	MaxTokens  int    `yaml:"max_tokens" env:"MAX_TOKENS"`
	TopK       int    `yaml:"top_k" env:"TOP_K"`
	Collection string `yaml:"collection" env:"COLLECTION"`
}

type VectorStoreConfig struct {
	Backend       string `yaml:"backend" env:"BACKEND"`
	Path          string `yaml:"path" env:"PATH"`
	InMemory      bool   `yaml:"in_memory" env:"IN_MEMORY"`
	Compress      bool   `yaml:"compress" env:"COMPRESS"`
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	VectorSize    int    `yaml:"vector_size" env:"VECTOR_SIZE"`
}

// DatabaseConfig is used by the pgvector backend only
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	DSN      string `yaml:"dsn" env:"DSN"`
	Password string `yaml:"password" env:"PASSWORD"`
	Debug    bool   `yaml:"debug" env:"DEBUG"`
}

type TabularConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type RetryConfig struct {
	Attempts uint          `yaml:"attempts" env:"ATTEMPTS"`
	Delay    time.Duration `yaml:"delay" env:"DELAY"`
	MaxDelay time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
}

// LoadConfig reads the YAML file at path (a missing file is not an error),
// then applies .env and DOCQA_* environment overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// .env is optional, variables may be set externally
	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.SessionFile == "" {
		c.SessionFile = defaultSessionFile
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = ProviderOpenAI
	}
	if c.InferenceLLM.Provider == "" {
		c.InferenceLLM.Provider = ProviderOpenAI
	}
	if c.RAG.MaxTokens == 0 {
		c.RAG.MaxTokens = defaultMaxTokens
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.Collection == "" {
		c.RAG.Collection = defaultCollection
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = BackendChromem
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = defaultChromemPath
	}
	if c.VectorStore.VectorSize == 0 {
		c.VectorStore.VectorSize = defaultVectorSize
	}
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDatabaseDriver
	}
	if c.Tabular.Path == "" {
		c.Tabular.Path = defaultTabularPath
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = defaultRetryAttempts
	}
	if c.Retry.Delay == 0 {
		c.Retry.Delay = defaultRetryDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = defaultRetryMaxDelay
	}
}

func (c *Config) Validate() error {
	var errs []error

	if err := c.EmbedLLM.validate("embed_llm"); err != nil {
		errs = append(errs, err)
	}
	if err := c.InferenceLLM.validate("inference_llm"); err != nil {
		errs = append(errs, err)
	}

	if c.RAG.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("rag.max_tokens must be positive, got %d", c.RAG.MaxTokens))
	}
	if c.RAG.TopK < 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK))
	}

	switch c.VectorStore.Backend {
	case BackendChromem:
		// chromem-go exports with AES-256
		if l := len(c.VectorStore.EncryptionKey); l != 0 && l != 32 {
			errs = append(errs, fmt.Errorf("vector_store.encryption_key must be 32 bytes, got %d", l))
		}
		if c.VectorStore.InMemory && c.VectorStore.EncryptionKey == "" {
			errs = append(errs, errors.New("vector_store.encryption_key is required for an in-memory store"))
		}
	case BackendPgvector:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the pgvector backend"))
		}
		if c.Database.Driver != DriverPgdriver && c.Database.Driver != DriverPq {
			errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverPgdriver, DriverPq, c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("vector_store.backend must be %q or %q, got %q", BackendChromem, BackendPgvector, c.VectorStore.Backend))
	}

	return errors.Join(errs...)
}

func (l LLMConfig) validate(name string) error {
	if l.Provider != ProviderOpenAI && l.Provider != ProviderOllama {
		return fmt.Errorf("%s.provider must be %q or %q, got %q", name, ProviderOpenAI, ProviderOllama, l.Provider)
	}
	return nil
}
