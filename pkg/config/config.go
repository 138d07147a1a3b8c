// Package config loads process configuration with viper and holds the
// runtime tunables that the /config endpoint and file watcher may change.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SUPPORTBOT_SERVER_PORT.
const EnvPrefix = "SUPPORTBOT"

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig
	Qdrant    QdrantConfig
	Ollama    OllamaConfig
	Generator GeneratorConfig
	RAG       RAGConfig
	NATS      NATSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	CORSOrigin      string
	RateLimit       float64 // requests per second; 0 disables limiting
	RateBurst       int
	ShutdownTimeout time.Duration
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type QdrantConfig struct {
	Addr       string
	Collection string
}

type OllamaConfig struct {
	URL            string
	EmbedModel     string
	ChatModel      string
	EmbedCacheSize int
}

type GeneratorConfig struct {
	Provider    string // openai or ollama
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type RAGConfig struct {
	MaxSearchResults    int
	SimilarityThreshold float64
	BatchWorkers        int
}

type NATSConfig struct {
	URL          string
	AskSubject   string
	EventSubject string
}

type LoggingConfig struct {
	Level      string
	Format     string // json or text
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Tunables returns the runtime-adjustable subset of c.
func (c *Config) Tunables() Tunables {
	return Tunables{
		MaxSearchResults:    c.RAG.MaxSearchResults,
		SimilarityThreshold: c.RAG.SimilarityThreshold,
		Model:               c.Generator.Model,
	}
}

// Loader reads configuration from defaults, an optional file and the
// environment, in increasing priority.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a Loader. An empty path means defaults and environment only.
func NewLoader(path string) *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	_ = v.BindEnv("generator.api_key", EnvPrefix+"_GENERATOR_API_KEY", "OPENAI_API_KEY")
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, path: path}
}

// LoadDotenv loads variables from a .env file into the process environment.
// A missing file is not an error; variables already set are not overridden.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load reads the config file (when one is set) and decodes the result.
func (l *Loader) Load() (*Config, error) {
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", l.path, err)
			}
		}
	}
	cfg := l.decode()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("qdrant.addr", "localhost:6334")
	v.SetDefault("qdrant.collection", "support_knowledge")

	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.embed_model", "nomic-embed-text")
	v.SetDefault("ollama.chat_model", "llama3")
	v.SetDefault("ollama.embed_cache_size", 1024)

	v.SetDefault("generator.provider", "openai")
	v.SetDefault("generator.model", "gpt-4o-mini")
	v.SetDefault("generator.temperature", 0.3)
	v.SetDefault("generator.max_tokens", 800)
	v.SetDefault("generator.timeout", 60*time.Second)

	v.SetDefault("rag.max_search_results", 5)
	v.SetDefault("rag.similarity_threshold", 0.7)
	v.SetDefault("rag.batch_workers", 4)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.ask_subject", "support.ask")
	v.SetDefault("nats.event_subject", "support.answers")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
}

func (l *Loader) decode() *Config {
	v := l.v
	cfg := &Config{}

	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.CORSOrigin = v.GetString("server.cors_origin")
	cfg.Server.RateLimit = v.GetFloat64("server.rate_limit")
	cfg.Server.RateBurst = v.GetInt("server.rate_burst")
	cfg.Server.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")

	cfg.Qdrant.Addr = v.GetString("qdrant.addr")
	cfg.Qdrant.Collection = v.GetString("qdrant.collection")

	cfg.Ollama.URL = v.GetString("ollama.url")
	cfg.Ollama.EmbedModel = v.GetString("ollama.embed_model")
	cfg.Ollama.ChatModel = v.GetString("ollama.chat_model")
	cfg.Ollama.EmbedCacheSize = v.GetInt("ollama.embed_cache_size")

	cfg.Generator.Provider = strings.ToLower(v.GetString("generator.provider"))
	cfg.Generator.APIKey = v.GetString("generator.api_key")
	cfg.Generator.Model = v.GetString("generator.model")
	cfg.Generator.Temperature = v.GetFloat64("generator.temperature")
	cfg.Generator.MaxTokens = v.GetInt("generator.max_tokens")
	cfg.Generator.Timeout = v.GetDuration("generator.timeout")

	cfg.RAG.MaxSearchResults = v.GetInt("rag.max_search_results")
	cfg.RAG.SimilarityThreshold = v.GetFloat64("rag.similarity_threshold")
	cfg.RAG.BatchWorkers = v.GetInt("rag.batch_workers")

	cfg.NATS.URL = v.GetString("nats.url")
	cfg.NATS.AskSubject = v.GetString("nats.ask_subject")
	cfg.NATS.EventSubject = v.GetString("nats.event_subject")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")
	cfg.Logging.File = v.GetString("logging.file")
	cfg.Logging.MaxSizeMB = v.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = v.GetInt("logging.max_backups")

	return cfg
}

// Validate checks the settings a process cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Qdrant.Addr == "" {
		errs = append(errs, errors.New("qdrant.addr is required"))
	}
	if c.Qdrant.Collection == "" {
		errs = append(errs, errors.New("qdrant.collection is required"))
	}
	switch c.Generator.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("generator.provider %q is not openai or ollama", c.Generator.Provider))
	}
	if err := c.Tunables().Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
