package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"newsrag/internal/retrieval"
)

// Config holds all configuration for the newsrag service.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Qdrant QdrantConfig `mapstructure:"qdrant"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
	RAG    RAGConfig    `mapstructure:"rag"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	BodyLimit string `mapstructure:"body_limit"`
}

// RedisConfig selects the durable session backend. An empty Addr means
// sessions live in process memory only.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QdrantConfig points at the vector store collaborator.
type QdrantConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (q QdrantConfig) Validate() error {
	if q.URL == "" {
		return fmt.Errorf("qdrant.url is required")
	}
	if q.Collection == "" {
		return fmt.Errorf("qdrant.collection is required")
	}
	return nil
}

// OpenAIConfig covers both the embedding and the chat-completion calls.
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	EmbeddingDim   int           `mapstructure:"embedding_dim"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
}

func (o OpenAIConfig) Validate() error {
	if o.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if o.EmbeddingDim <= 0 {
		return fmt.Errorf("openai.embedding_dim must be > 0")
	}
	return nil
}

// RAGConfig tunes retrieval and the chat pipeline.
type RAGConfig struct {
	TopK          int           `mapstructure:"top_k"`
	MinScore      float64       `mapstructure:"min_score"`
	FallbackCount int           `mapstructure:"fallback_count"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBaseWait time.Duration `mapstructure:"retry_base_wait"`
}

// IngestConfig tunes the batch ingestion pipeline.
type IngestConfig struct {
	MinDocChars int           `mapstructure:"min_doc_chars"`
	MaxChars    int           `mapstructure:"max_chars"`
	Overlap     int           `mapstructure:"overlap"`
	MaxChunks   int           `mapstructure:"max_chunks"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchDelay  time.Duration `mapstructure:"batch_delay"`
	BackupDir   string        `mapstructure:"backup_dir"`
}

// Load reads configuration from an optional config file plus NEWSRAG_*
// environment variables and returns the resolved Config. path may be empty,
// in which case config.yaml is looked up in the working directory.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.body_limit", "1M")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("qdrant.url", "http://localhost:6333")
	v.SetDefault("qdrant.collection", "news_chunks")
	v.SetDefault("qdrant.timeout", 15*time.Second)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.embedding_dim", 1536)
	v.SetDefault("openai.timeout", 60*time.Second)
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.min_score", retrieval.DefaultMinScore)
	v.SetDefault("rag.fallback_count", retrieval.DefaultFallbackCount)
	v.SetDefault("rag.session_ttl", 48*time.Hour)
	v.SetDefault("rag.max_retries", 3)
	v.SetDefault("rag.retry_base_wait", time.Second)
	v.SetDefault("ingest.min_doc_chars", 500)
	v.SetDefault("ingest.max_chars", 1500)
	v.SetDefault("ingest.overlap", 150)
	v.SetDefault("ingest.max_chunks", 30)
	v.SetDefault("ingest.batch_size", 16)
	v.SetDefault("ingest.batch_delay", time.Second)
	v.SetDefault("ingest.backup_dir", "data")

	v.SetEnvPrefix("NEWSRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks the sections that have hard requirements for serving.
func (c Config) Validate() error {
	if err := c.Qdrant.Validate(); err != nil {
		return err
	}
	if err := c.OpenAI.Validate(); err != nil {
		return err
	}
	return nil
}
