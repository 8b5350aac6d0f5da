// Package config loads and validates query-server configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Corpus, Tokenizer, Search, Protocol, Redis, Kafka,
// etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/PippiShao/IMDB/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Search    SearchConfig    `yaml:"search"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Client    ClientConfig    `yaml:"client"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds TCP listener and worker settings. Zero timeouts disable
// the per-operation deadline.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxConnections  int           `yaml:"maxConnections"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CorpusConfig describes where the row files live and how rows are laid out.
type CorpusConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
	Format     string   `yaml:"format"`
}

// TokenizerConfig selects the term normalisation policy used for both
// indexing and querying.
type TokenizerConfig struct {
	Split     string `yaml:"split"`
	StopWords bool   `yaml:"stopWords"`
	Stem      bool   `yaml:"stem"`
	MinLength int    `yaml:"minLength"`
}

// SearchConfig controls query evaluation.
type SearchConfig struct {
	Mode       string `yaml:"mode"`
	MaxResults int    `yaml:"maxResults"`
}

// ProtocolConfig controls wire framing. Both peers must agree on Framing.
type ProtocolConfig struct {
	Framing      string `yaml:"framing"`
	MaxFrameSize int    `yaml:"maxFrameSize"`
}

// ClientConfig holds query-client settings.
type ClientConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	GroupBy      string        `yaml:"groupBy"`
	DialAttempts int           `yaml:"dialAttempts"`
}

// RedisConfig holds Redis connection and result-cache parameters. After
// BreakerThreshold consecutive Redis failures the cache is bypassed for
// BreakerReset.
type RedisConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Addr             string        `yaml:"addr"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	PoolSize         int           `yaml:"poolSize"`
	CacheTTL         time.Duration `yaml:"cacheTTL"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// KafkaConfig holds the broker list and topic for query analytics.
type KafkaConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	BufferSize int      `yaml:"bufferSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics and health server.
// TrackedQueries bounds the distinct queries kept for /analytics.
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	Port           int  `yaml:"port"`
	TrackedQueries int  `yaml:"trackedQueries"`
}

const (
	SplitAlnum      = "alnum"
	SplitWhitespace = "whitespace"

	ModeAND = "and"
	ModeOR  = "or"

	FramingRaw            = "raw"
	FramingLengthPrefixed = "length-prefixed"

	FormatCSV  = "csv"
	FormatIMDB = "imdb"
)

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the stock configuration: loopback
// listener, AND queries, raw framing with 1000-byte frames.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            1500,
			ShutdownTimeout: 10 * time.Second,
		},
		Corpus: CorpusConfig{
			Dir:    "data",
			Format: FormatCSV,
		},
		Tokenizer: TokenizerConfig{
			Split:     SplitAlnum,
			MinLength: 1,
		},
		Search: SearchConfig{
			Mode: ModeAND,
		},
		Protocol: ProtocolConfig{
			Framing:      FramingRaw,
			MaxFrameSize: 1000,
		},
		Client: ClientConfig{
			Timeout:      30 * time.Second,
			GroupBy:      "genre",
			DialAttempts: 3,
		},
		Redis: RedisConfig{
			Addr:             "localhost:6379",
			PoolSize:         10,
			CacheTTL:         10 * time.Minute,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    []string{"localhost:9092"},
			Topic:      "query-events",
			BufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port:           9090,
			TrackedQueries: 10000,
		},
	}
}

// Validate checks enum-valued fields and listener ports.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return apperrors.Newf(apperrors.ErrInvalidInput, "config", "server port %d out of range", c.Server.Port)
	}
	switch c.Tokenizer.Split {
	case SplitAlnum, SplitWhitespace:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "config", "unknown tokenizer split %q", c.Tokenizer.Split)
	}
	switch c.Search.Mode {
	case ModeAND, ModeOR:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "config", "unknown search mode %q", c.Search.Mode)
	}
	switch c.Protocol.Framing {
	case FramingRaw, FramingLengthPrefixed:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "config", "unknown framing %q", c.Protocol.Framing)
	}
	if c.Protocol.MaxFrameSize <= 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, "config", "maxFrameSize must be positive, got %d", c.Protocol.MaxFrameSize)
	}
	switch c.Corpus.Format {
	case FormatCSV, FormatIMDB:
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "config", "unknown corpus format %q", c.Corpus.Format)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return apperrors.Newf(apperrors.ErrInvalidInput, "config", "metrics port %d out of range", c.Metrics.Port)
	}
	return nil
}

// applyEnvOverrides reads QS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("QS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QS_SERVER_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConnections = n
		}
	}
	if v := os.Getenv("QS_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("QS_CORPUS_FORMAT"); v != "" {
		cfg.Corpus.Format = v
	}
	if v := os.Getenv("QS_SEARCH_MODE"); v != "" {
		cfg.Search.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("QS_PROTOCOL_FRAMING"); v != "" {
		cfg.Protocol.Framing = strings.ToLower(v)
	}
	if v := os.Getenv("QS_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("QS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QS_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("QS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("QS_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("QS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
