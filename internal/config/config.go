// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/XaviFortes/tesla-tracker/pkg/types"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Tesla     TeslaConfig     `yaml:"tesla"`
	Inventory InventoryConfig `yaml:"inventory"`
	Polling   PollingConfig   `yaml:"polling"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig defines the ops HTTP server settings (health + metrics).
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend"` // file, postgres
	File     FileConfig     `yaml:"file"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// FileConfig defines the JSON file store settings.
type FileConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig defines PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Name, p.User, p.Password, p.SSLMode,
	)
}

// TelegramConfig defines the bot credential and delivery behavior.
type TelegramConfig struct {
	BotToken    string        `yaml:"bot_token"`
	APIEndpoint string        `yaml:"api_endpoint"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// TeslaConfig defines owner API settings.
type TeslaConfig struct {
	TokenURL   string        `yaml:"token_url"`
	OrdersURL  string        `yaml:"orders_url"`
	TasksURL   string        `yaml:"tasks_url"`
	ClientID   string        `yaml:"client_id"`
	AppVersion string        `yaml:"app_version"`
	Timeout    time.Duration `yaml:"timeout"`
}

// InventoryConfig defines public inventory API settings.
type InventoryConfig struct {
	URL       string          `yaml:"url"`
	Proxy     string          `yaml:"proxy"`
	Timeout   time.Duration   `yaml:"timeout"`
	CacheTTL  time.Duration   `yaml:"cache_ttl"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Geo       GeoConfig       `yaml:"geo"`
}

// RateLimitConfig defines inventory API rate limiting settings.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// GeoConfig defines the default search origin sent with inventory queries.
type GeoConfig struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
	Zip string  `yaml:"zip"`
}

// PollingConfig defines scheduler periods.
type PollingConfig struct {
	DefaultOrderInterval time.Duration `yaml:"default_order_interval"`
	InventoryInterval    time.Duration `yaml:"inventory_interval"`
	WarmupDelay          time.Duration `yaml:"warmup_delay"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyStoreDefaults(&cfg.Store)
	applyTelegramDefaults(&cfg.Telegram)
	applyTeslaDefaults(&cfg.Tesla)
	applyInventoryDefaults(&cfg.Inventory)
	applyPollingDefaults(&cfg.Polling)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyStoreDefaults(s *StoreConfig) {
	if s.Backend == "" {
		s.Backend = "file"
	}
	if s.File.Path == "" {
		s.File.Path = "data/subscribers.json"
	}
	if s.Postgres.Port == 0 {
		s.Postgres.Port = 5432
	}
	if s.Postgres.SSLMode == "" {
		s.Postgres.SSLMode = "disable"
	}
	if s.Postgres.PoolSize == 0 {
		s.Postgres.PoolSize = 10
	}
}

func applyTelegramDefaults(t *TelegramConfig) {
	if t.APIEndpoint == "" {
		t.APIEndpoint = "https://api.telegram.org"
	}
	if t.PollTimeout == 0 {
		t.PollTimeout = 30 * time.Second
	}
}

func applyTeslaDefaults(t *TeslaConfig) {
	if t.TokenURL == "" {
		t.TokenURL = "https://auth.tesla.com/oauth2/v3/token"
	}
	if t.OrdersURL == "" {
		t.OrdersURL = "https://owner-api.teslamotors.com/api/1/users/orders"
	}
	if t.TasksURL == "" {
		t.TasksURL = "https://akamai-apigateway-vfx.tesla.com/tasks"
	}
	if t.ClientID == "" {
		t.ClientID = "ownerapi"
	}
	if t.AppVersion == "" {
		t.AppVersion = "4.35.1-2716"
	}
	if t.Timeout == 0 {
		t.Timeout = 15 * time.Second
	}
}

func applyInventoryDefaults(i *InventoryConfig) {
	if i.URL == "" {
		i.URL = "https://www.tesla.com/inventory/api/v4/inventory-results"
	}
	if i.Timeout == 0 {
		i.Timeout = 20 * time.Second
	}
	if i.CacheTTL == 0 {
		i.CacheTTL = 5 * time.Minute
	}
	if i.RateLimit.PerSecond == 0 {
		i.RateLimit.PerSecond = 1
	}
	if i.RateLimit.Burst == 0 {
		i.RateLimit.Burst = 2
	}
	// Madrid city center; the public API requires some search origin.
	if i.Geo.Lat == 0 && i.Geo.Lng == 0 {
		i.Geo.Lat = 40.4168
		i.Geo.Lng = -3.7038
	}
	if i.Geo.Zip == "" {
		i.Geo.Zip = "28001"
	}
}

func applyPollingDefaults(p *PollingConfig) {
	if p.DefaultOrderInterval == 0 {
		p.DefaultOrderInterval = time.Duration(domain.DefaultIntervalMinutes) * time.Minute
	}
	if p.InventoryInterval == 0 {
		p.InventoryInterval = 15 * time.Minute
	}
	if p.WarmupDelay == 0 {
		p.WarmupDelay = 10 * time.Second
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Telegram.BotToken == "" {
		errs = append(errs, fmt.Errorf("telegram.bot_token is required"))
	}

	switch cfg.Store.Backend {
	case "file":
		if cfg.Store.File.Path == "" {
			errs = append(errs, fmt.Errorf("store.file.path is required when backend is file"))
		}
	case "postgres":
		if cfg.Store.Postgres.Host == "" {
			errs = append(errs, fmt.Errorf("store.postgres.host is required when backend is postgres"))
		}
		if cfg.Store.Postgres.Name == "" {
			errs = append(errs, fmt.Errorf("store.postgres.name is required when backend is postgres"))
		}
		if cfg.Store.Postgres.User == "" {
			errs = append(errs, fmt.Errorf("store.postgres.user is required when backend is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of: file, postgres (got %q)", cfg.Store.Backend))
	}

	if cfg.Polling.DefaultOrderInterval < time.Duration(domain.MinIntervalMinutes)*time.Minute {
		errs = append(errs, fmt.Errorf(
			"polling.default_order_interval must be at least %dm", domain.MinIntervalMinutes,
		))
	}

	return errors.Join(errs...)
}
