package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/validate"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"required"`
	Logger      logger.Config `yaml:"logger"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"marketpulse"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		AsyncInsert  bool          `yaml:"async_insert"`
		// consecutive failures before the history breaker opens
		BreakerFailures uint32        `yaml:"breaker_failures" default:"5"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled       bool          `yaml:"enabled"`
		Brokers       []string      `yaml:"brokers" default:"[\"localhost:9092\"]"`
		SalesTopic    string        `yaml:"sales_topic" default:"sales.events"`
		ForecastTopic string        `yaml:"forecast_topic" default:"forecast.results"`
		GroupID       string        `yaml:"group_id" default:"marketpulse"`
		Workers       int           `yaml:"workers" default:"4" validate:"min=1"`
		RetryMax      int           `yaml:"retry_max" default:"3"`
		BackoffMin    time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax    time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic      string        `yaml:"dlq_topic" default:"sales.events.dlq"`
		Compression   string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		RequiredAcks  int           `yaml:"required_acks" default:"1" validate:"oneof=-1 1"`
		WriteTimeout  time.Duration `yaml:"write_timeout" default:"10s"`
		BatchSize     int           `yaml:"batch_size" default:"100" validate:"min=1"`
		BatchTimeout  time.Duration `yaml:"batch_timeout" default:"50ms"`
		MaxAttempts   int           `yaml:"max_attempts" default:"3" validate:"min=1"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Name       string        `yaml:"name" default:"retrain"`
		Workers    int           `yaml:"workers" default:"2" validate:"min=1"`
		MaxRetries int           `yaml:"max_retries" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		PendingTTL time.Duration `yaml:"pending_ttl" default:"15m"`
	} `yaml:"queue"`
	Artifacts struct {
		Backend    string `yaml:"backend" default:"file" validate:"oneof=file badger"`
		Dir        string `yaml:"dir" default:"./models"`
		BadgerPath string `yaml:"badger_path" default:"./data/models"`
		// refuse to overwrite when new val_mae > existing val_mae * tolerance
		OverwriteTolerance float64 `yaml:"overwrite_tolerance" default:"1.1" validate:"gte=1"`
	} `yaml:"artifacts"`
	Registry struct {
		MaxSize int           `yaml:"max_size" default:"50" validate:"min=1"`
		TTL     time.Duration `yaml:"ttl" default:"1h"`
	} `yaml:"registry"`
	Retrain struct {
		HistoryDays int           `yaml:"history_days" default:"365" validate:"min=1"`
		MinInterval time.Duration `yaml:"min_interval" default:"10m"`
		LockTTL     time.Duration `yaml:"lock_ttl" default:"2m"`
		ForecastTTL time.Duration `yaml:"forecast_ttl" default:"15m"`
		HorizonDays int           `yaml:"horizon_days" default:"7" validate:"min=1,max=30"`
	} `yaml:"retrain"`
	Forecast ForecastConfig `yaml:"forecast"`
}

// Default returns a fully-populated configuration without reading any file.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML (when path is set) and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	if v := os.Getenv("MP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("MP_LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := os.Getenv("MP_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("MP_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("MP_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("MP_ARTIFACT_DIR"); v != "" {
		c.Artifacts.Dir = v
	}
	if v := os.Getenv("MP_PORTFOLIO_RESCALE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MP_PORTFOLIO_RESCALE: %w", err)
		}
		c.Forecast.Predictor.Rescale.Enabled = enabled
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Check(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers cannot be empty when kafka is enabled")
	}
	return c.Forecast.Validate()
}
