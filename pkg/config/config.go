// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Source, Watcher, Extractor, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Source    SourceConfig    `yaml:"source"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Cataloger CatalogerConfig `yaml:"cataloger"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Modeler   ModelerConfig   `yaml:"modeler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the view API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	FileChanges     string `yaml:"fileChanges"`
	CatalogUpdates  string `yaml:"catalogUpdates"`
	ExtractComplete string `yaml:"extractComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SourceConfig selects and configures the file source the watcher observes.
// Kind is "http" (a listing service exposing /files and /refresh) or "dir"
// (a local directory tree).
type SourceConfig struct {
	Kind        string        `yaml:"kind"`
	BaseURL     string        `yaml:"baseUrl"`
	Root        string        `yaml:"root"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
}

// WatcherConfig controls the watcher's polling cadence.
type WatcherConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// CatalogerConfig controls which observed files become catalog records.
type CatalogerConfig struct {
	Extension string `yaml:"extension"`
}

// ExtractorConfig controls extraction concurrency, batching, and the parse
// service endpoint.
type ExtractorConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	BatchLimit   int           `yaml:"batchLimit"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	ParseTimeout time.Duration `yaml:"parseTimeout"`
	ParserURL    string        `yaml:"parserUrl"`
	MaxAttempts  int           `yaml:"maxAttempts"`
}

// ModelerConfig controls the statistics window joined onto the view.
type ModelerConfig struct {
	StatsWindowDays int `yaml:"statsWindowDays"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "reportwatch",
			User:            "reportwatch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "reportwatch-group",
			Topics: KafkaTopics{
				FileChanges:     "file-changes",
				CatalogUpdates:  "catalog-updates",
				ExtractComplete: "extract-complete",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Source: SourceConfig{
			Kind:        "http",
			BaseURL:     "http://localhost:8090",
			Root:        "",
			HTTPTimeout: 10 * time.Second,
		},
		Watcher: WatcherConfig{
			Interval: time.Minute,
		},
		Cataloger: CatalogerConfig{
			Extension: ".pdf",
		},
		Extractor: ExtractorConfig{
			Concurrency:  4,
			BatchLimit:   100,
			FetchTimeout: 30 * time.Second,
			ParseTimeout: 60 * time.Second,
			ParserURL:    "http://localhost:9998/parse",
			MaxAttempts:  3,
		},
		Modeler: ModelerConfig{
			StatsWindowDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads RW_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RW_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RW_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RW_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RW_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RW_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RW_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RW_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RW_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RW_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RW_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = v
	}
	if v := os.Getenv("RW_SOURCE_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("RW_SOURCE_ROOT"); v != "" {
		cfg.Source.Root = v
	}
	if v := os.Getenv("RW_WATCHER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Watcher.Interval = d
		}
	}
	if v := os.Getenv("RW_CATALOGER_EXTENSION"); v != "" {
		cfg.Cataloger.Extension = v
	}
	if v := os.Getenv("RW_EXTRACTOR_PARSER_URL"); v != "" {
		cfg.Extractor.ParserURL = v
	}
	if v := os.Getenv("RW_EXTRACTOR_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extractor.Concurrency = n
		}
	}
	if v := os.Getenv("RW_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RW_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
