package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "configs/config.yaml"

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http" envconfig:"HTTP"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Matcher  MatcherConfig  `yaml:"matcher" envconfig:"MATCHER"`
	Embedder EmbedderConfig `yaml:"embedder" envconfig:"EMBEDDER"`
	Chat     ChatConfig     `yaml:"chat" envconfig:"CHAT"`
	Spool    SpoolConfig    `yaml:"spool" envconfig:"SPOOL"`
	Archive  ArchiveConfig  `yaml:"archive" envconfig:"ARCHIVE"`
	Seed     SeedConfig     `yaml:"seed" envconfig:"SEED"`
	Sentry   SentryConfig   `yaml:"sentry" envconfig:"SENTRY"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address         string          `yaml:"address"`
	ReadTimeout     time.Duration   `yaml:"readTimeout" split_words:"true"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout" split_words:"true"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout" split_words:"true"`
	AllowedOrigins  []string        `yaml:"allowedOrigins" split_words:"true"`
	RateLimit       RateLimitConfig `yaml:"rateLimit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute" split_words:"true"`
	Burst             int  `yaml:"burst"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverValkey   = "valkey"
	DriverMinio    = "minio"
)

// StorageConfig selects where FAQ entries and chat logs live.
type StorageConfig struct {
	Driver         string         `yaml:"driver"`
	MigrateOnStart bool           `yaml:"migrateOnStart" split_words:"true"`
	Postgres       PostgresConfig `yaml:"postgres" envconfig:"POSTGRES"`
	SQLite         SQLiteConfig   `yaml:"sqlite" envconfig:"SQLITE"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"maxConns" split_words:"true"`
	MinConns        int32         `yaml:"minConns" split_words:"true"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" split_words:"true"`
}

// SQLiteConfig points at the database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MatcherConfig tunes answer selection.
type MatcherConfig struct {
	Threshold      float64 `yaml:"threshold"`
	FallbackAnswer string  `yaml:"fallbackAnswer" split_words:"true"`
}

// Embedding providers.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// EmbedderConfig selects the fingerprint provider.
type EmbedderConfig struct {
	Provider      string       `yaml:"provider"`
	Dimensions    int          `yaml:"dimensions"`
	TokenEncoding string       `yaml:"tokenEncoding" split_words:"true"`
	OpenAI        OpenAIConfig `yaml:"openai" envconfig:"OPENAI"`
	Gemini        GeminiConfig `yaml:"gemini" envconfig:"GEMINI"`
}

// OpenAIConfig contains OpenAI embedding settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey" split_words:"true"`
	BaseURL string `yaml:"baseUrl" split_words:"true"`
	Model   string `yaml:"model"`
}

// GeminiConfig contains Gemini embedding settings.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey" split_words:"true"`
	Model  string `yaml:"model"`
}

// ChatConfig bounds chat log writes and spool replay.
type ChatConfig struct {
	LogTimeout       time.Duration `yaml:"logTimeout" split_words:"true"`
	ReplayPollWait   time.Duration `yaml:"replayPollWait" split_words:"true"`
	ReplayBackoff    time.Duration `yaml:"replayBackoff" split_words:"true"`
	ReplayMaxBackoff time.Duration `yaml:"replayMaxBackoff" split_words:"true"`
	ExportPrefix     string        `yaml:"exportPrefix" split_words:"true"`
}

// SpoolConfig selects the queue that holds chat log drafts awaiting replay.
type SpoolConfig struct {
	Driver   string       `yaml:"driver"`
	Capacity int          `yaml:"capacity"`
	Valkey   ValkeyConfig `yaml:"valkey" envconfig:"VALKEY"`
}

// ValkeyConfig contains connection information for the spool.
type ValkeyConfig struct {
	Addr string `yaml:"addr"`
	Key  string `yaml:"key"`
}

// ArchiveConfig selects where chat log exports are written.
type ArchiveConfig struct {
	Driver string      `yaml:"driver"`
	Minio  MinioConfig `yaml:"minio" envconfig:"MINIO"`
}

// MinioConfig contains S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey" split_words:"true"`
	SecretKey string `yaml:"secretKey" split_words:"true"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// SeedConfig controls loading FAQ entries from a YAML file.
type SeedConfig struct {
	Path    string `yaml:"path"`
	OnStart bool   `yaml:"onStart" split_words:"true"`
	Watch   bool   `yaml:"watch"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	DSN              string  `yaml:"dsn"`
	Environment      string  `yaml:"environment"`
	TracesSampleRate float64 `yaml:"tracesSampleRate" split_words:"true"`
	Debug            bool    `yaml:"debug"`
}

// Load reads configuration from a YAML file, an optional .env file and
// environment variables, in that order of precedence (last wins).
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(defaultConfigPath); err == nil {
		if err := hydrateFromFile(cfg, defaultConfigPath); err != nil {
			return nil, err
		}
	}

	// .env is optional; existing environment variables are never overwritten.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env file: %w", err)
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Storage: StorageConfig{
			Driver:         DriverMemory,
			MigrateOnStart: true,
			Postgres: PostgresConfig{
				MaxConns:        4,
				MaxConnLifetime: time.Hour,
			},
			SQLite: SQLiteConfig{Path: "data/faqbot.db"},
		},
		Matcher: MatcherConfig{
			Threshold: 0.6,
		},
		Embedder: EmbedderConfig{
			Provider:      ProviderHash,
			Dimensions:    256,
			TokenEncoding: "cl100k_base",
			OpenAI:        OpenAIConfig{Model: "text-embedding-3-small"},
			Gemini:        GeminiConfig{Model: "text-embedding-004"},
		},
		Chat: ChatConfig{
			LogTimeout:       2 * time.Second,
			ReplayPollWait:   5 * time.Second,
			ReplayBackoff:    time.Second,
			ReplayMaxBackoff: 30 * time.Second,
			ExportPrefix:     "exports/chat-logs/",
		},
		Spool: SpoolConfig{
			Driver:   DriverMemory,
			Capacity: 1024,
			Valkey:   ValkeyConfig{Key: "faqbot:chatlog:spool"},
		},
		Archive: ArchiveConfig{
			Driver: DriverMemory,
			Minio: MinioConfig{
				Bucket: "faqbot-exports",
				Region: "us-east-1",
			},
		},
		Seed: SeedConfig{
			Path:    "configs/faqs.yaml",
			OnStart: true,
		},
		Sentry: SentryConfig{
			Environment: "development",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Address) == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("http.shutdownTimeout must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn cannot be empty when driver is postgres")
		}
		if c.Storage.Postgres.MaxConns <= 0 {
			return errors.New("storage.postgres.maxConns must be positive")
		}
		if c.Storage.Postgres.MinConns < 0 || c.Storage.Postgres.MinConns > c.Storage.Postgres.MaxConns {
			return errors.New("storage.postgres.minConns must be between 0 and maxConns")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLite.Path) == "" {
			return errors.New("storage.sqlite.path cannot be empty when driver is sqlite")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		return errors.New("matcher.threshold must be within [0, 1]")
	}

	switch c.Embedder.Provider {
	case ProviderHash:
		if c.Embedder.Dimensions <= 0 {
			return errors.New("embedder.dimensions must be positive")
		}
	case ProviderOpenAI:
		if strings.TrimSpace(c.Embedder.OpenAI.APIKey) == "" {
			return errors.New("embedder.openai.apiKey cannot be empty when provider is openai")
		}
	case ProviderGemini:
		if strings.TrimSpace(c.Embedder.Gemini.APIKey) == "" {
			return errors.New("embedder.gemini.apiKey cannot be empty when provider is gemini")
		}
	default:
		return fmt.Errorf("embedder.provider %q is not supported", c.Embedder.Provider)
	}

	if c.Chat.LogTimeout <= 0 {
		return errors.New("chat.logTimeout must be positive")
	}
	if c.Chat.ReplayBackoff <= 0 || c.Chat.ReplayMaxBackoff < c.Chat.ReplayBackoff {
		return errors.New("chat.replayMaxBackoff must be at least chat.replayBackoff")
	}

	switch c.Spool.Driver {
	case DriverMemory:
		if c.Spool.Capacity <= 0 {
			return errors.New("spool.capacity must be positive")
		}
	case DriverValkey:
		if strings.TrimSpace(c.Spool.Valkey.Addr) == "" {
			return errors.New("spool.valkey.addr cannot be empty when driver is valkey")
		}
		if strings.TrimSpace(c.Spool.Valkey.Key) == "" {
			return errors.New("spool.valkey.key cannot be empty")
		}
	default:
		return fmt.Errorf("spool.driver %q is not supported", c.Spool.Driver)
	}

	switch c.Archive.Driver {
	case DriverMemory:
	case DriverMinio:
		m := c.Archive.Minio
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return errors.New("archive.minio endpoint, accessKey, secretKey and bucket are required when driver is minio")
		}
	default:
		return fmt.Errorf("archive.driver %q is not supported", c.Archive.Driver)
	}

	if c.Seed.Watch && strings.TrimSpace(c.Seed.Path) == "" {
		return errors.New("seed.path cannot be empty when seed.watch is enabled")
	}
	if c.Sentry.TracesSampleRate < 0 || c.Sentry.TracesSampleRate > 1 {
		return errors.New("sentry.tracesSampleRate must be within [0, 1]")
	}
	return nil
}
