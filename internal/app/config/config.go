// Package config loads the static run parameters of the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"market_analyzer/internal/platform/db"
	"market_analyzer/internal/platform/logger"
	"market_analyzer/internal/platform/mongo"
	"market_analyzer/internal/platform/redis"
)

// EnvPrefix prefixes every environment override, e.g. MMA_TICKER or MMA_STORE_MONGO_URI.
const EnvPrefix = "MMA"

// DateLayout is the layout of the start and end dates.
const DateLayout = "2006-01-02"

// Config holds all application configuration.
type Config struct {
	Ticker   string         `yaml:"ticker" envconfig:"TICKER" validate:"required"`
	Start    string         `yaml:"start" envconfig:"START" validate:"datetime=2006-01-02"`
	End      string         `yaml:"end" envconfig:"END" validate:"datetime=2006-01-02"`
	Window   int            `yaml:"window" envconfig:"WINDOW" validate:"gt=0"`
	Store    StoreConfig    `yaml:"store" envconfig:"STORE"`
	Provider ProviderConfig `yaml:"provider" envconfig:"PROVIDER"`
	Output   OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
	Log      logger.Config  `yaml:"log" envconfig:"LOG"`
	Metrics  MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`
	Ingest   IngestConfig   `yaml:"ingest" envconfig:"INGEST"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
}

// StoreConfig selects and configures the series store.
type StoreConfig struct {
	Driver     string       `yaml:"driver" envconfig:"DRIVER" validate:"oneof=mongo postgres sqlite"`
	Mongo      mongo.Config `yaml:"mongo" envconfig:"MONGO"`
	Postgres   db.Config    `yaml:"postgres" envconfig:"POSTGRES"`
	SQLitePath string       `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	Redis      redis.Config `yaml:"redis" envconfig:"REDIS"`
	Cache      CacheConfig  `yaml:"cache" envconfig:"CACHE"`
}

// CacheConfig controls the read-through cache in front of the store.
// When ExpireZone is set, entries expire daily at ExpireHour in that zone instead of after TTL.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl" envconfig:"TTL"`
	ExpireHour int           `yaml:"expire_hour" envconfig:"EXPIRE_HOUR" validate:"min=0,max=23"`
	ExpireZone string        `yaml:"expire_zone" envconfig:"EXPIRE_ZONE" validate:"omitempty,timezone"`
}

// ProviderConfig selects and configures the market data provider.
type ProviderConfig struct {
	Name      string        `yaml:"name" envconfig:"NAME" validate:"oneof=yahoo twelvedata"`
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	APIKey    string        `yaml:"api_key" envconfig:"API_KEY"`
	UserAgent string        `yaml:"user_agent" envconfig:"USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RateLimit int           `yaml:"rate_limit" envconfig:"RATE_LIMIT"` // requests per minute, twelvedata only
}

// OutputConfig controls where and how the analysis artifact is written.
type OutputConfig struct {
	Dir    string `yaml:"dir" envconfig:"DIR"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=html xlsx"`
	Open   bool   `yaml:"open" envconfig:"OPEN"` // open the artifact in the default browser
}

// MetricsConfig configures the optional Pushgateway export of batch runs.
type MetricsConfig struct {
	PushURL string `yaml:"push_url" envconfig:"PUSH_URL" validate:"omitempty,url"`
	Job     string `yaml:"job" envconfig:"JOB"`
}

// IngestConfig configures the ingest binary. An empty Schedule runs once.
type IngestConfig struct {
	Schedule string        `yaml:"schedule" envconfig:"SCHEDULE"` // cron expression with a seconds field
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// ServerConfig configures the HTTP read surface.
type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR" validate:"required"`
}

// Load reads config from an optional YAML file, then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// 環境変数はYAMLより優先
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Ticker = strings.ToUpper(strings.TrimSpace(c.Ticker))
	if c.Ticker == "" {
		c.Ticker = "MSFT"
	}
	if c.Start == "" {
		c.Start = "2020-01-01"
	}
	if c.End == "" {
		c.End = "2024-01-01"
	}
	if c.Window == 0 {
		c.Window = 50
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "mongo"
	}
	if c.Store.Mongo.URI == "" {
		c.Store.Mongo.URI = "mongodb://localhost:27017/"
	}
	if c.Store.Mongo.Database == "" {
		c.Store.Mongo.Database = "FinancialDataDB"
	}
	if c.Store.Mongo.Collection == "" {
		c.Store.Mongo.Collection = "StockPrices"
	}
	if c.Store.Mongo.Timeout == 0 {
		c.Store.Mongo.Timeout = 10 * time.Second
	}
	if c.Store.Postgres.Host == "" && c.Store.Postgres.InstanceName == "" {
		c.Store.Postgres.Host = "localhost"
	}
	if c.Store.Postgres.Port == "" {
		c.Store.Postgres.Port = "5432"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "market_analyzer.db"
	}
	if c.Store.Cache.TTL == 0 {
		c.Store.Cache.TTL = 5 * time.Minute
	}

	if c.Provider.Name == "" {
		c.Provider.Name = "yahoo"
	}
	c.Provider.Name = strings.ToLower(c.Provider.Name)
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 10 * time.Second
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.Format == "" {
		c.Output.Format = "html"
	}
	c.Output.Format = strings.ToLower(c.Output.Format)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "market_analyzer_ingest"
	}
	if c.Ingest.Timeout == 0 {
		c.Ingest.Timeout = 5 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate checks field constraints and the date range.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, _, err := c.Range(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Provider.Name == "twelvedata" && c.Provider.APIKey == "" {
		return errors.New("config validation failed: provider.api_key is required for twelvedata")
	}
	return nil
}

// Range returns the half-open ingest range [start, end) as UTC dates.
// An empty or inverted range is an error.
func (c *Config) Range() (start, end time.Time, err error) {
	if start, err = time.Parse(DateLayout, c.Start); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start: %w", err)
	}
	if end, err = time.Parse(DateLayout, c.End); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s must be after start %s", c.End, c.Start)
	}
	return start, end, nil
}

// CacheLocation returns the zone of the daily cache expiry, or nil when entries expire after TTL.
func (c *Config) CacheLocation() *time.Location {
	if c.Store.Cache.ExpireZone == "" {
		return nil
	}
	loc, err := time.LoadLocation(c.Store.Cache.ExpireZone)
	if err != nil {
		return nil
	}
	return loc
}
