package infra

import (
	"errors"
	"fmt"
	"os"
	"time"

	"otmarket/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	defaultOfferDurationSec = 30 * 24 * 60 * 60
	defaultCheckExpiredMin  = 60
	defaultMaxOffers        = 100
	defaultInboxSize        = 1024
	defaultStorageQueueSize = 256
)

// Config holds every setting of the market engine.
// Values loaded by LoadConfig may be overridden through environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Market struct {
		OfferDurationSec    int    `yaml:"offer_duration_sec"`
		CheckExpiredEachMin int    `yaml:"check_expired_each_min"` // <= 0 disables sweeping
		MaxOffersPerPlayer  int    `yaml:"max_offers_per_player"`
		InboxCapacity       int    `yaml:"inbox_capacity"` // <= 0 means unlimited
		ItemsFile           string `yaml:"items_file"`
	} `yaml:"market"`

	Engine struct {
		InboxSize        int `yaml:"inbox_size"`
		StorageQueueSize int `yaml:"storage_queue_size"`
	} `yaml:"engine"`

	Admin struct {
		Addr string `yaml:"addr"`
	} `yaml:"admin"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with every optional knob filled in.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "otmarket"
	cfg.Database.Path = "data/market.db"
	cfg.Market.OfferDurationSec = defaultOfferDurationSec
	cfg.Market.CheckExpiredEachMin = defaultCheckExpiredMin
	cfg.Market.MaxOffersPerPlayer = defaultMaxOffers
	cfg.Market.ItemsFile = "configs/items.yaml"
	cfg.Engine.InboxSize = defaultInboxSize
	cfg.Engine.StorageQueueSize = defaultStorageQueueSize
	cfg.Admin.Addr = "localhost:6060"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return &domain.ConfigError{Field: "database.path", Err: errors.New("must not be empty")}
	}
	if c.Market.OfferDurationSec <= 0 {
		return &domain.ConfigError{Field: "market.offer_duration_sec", Err: errors.New("must be positive")}
	}
	if c.Market.MaxOffersPerPlayer <= 0 {
		return &domain.ConfigError{Field: "market.max_offers_per_player", Err: errors.New("must be positive")}
	}
	if c.Market.ItemsFile == "" {
		return &domain.ConfigError{Field: "market.items_file", Err: errors.New("must not be empty")}
	}
	if c.Engine.InboxSize <= 0 {
		return &domain.ConfigError{Field: "engine.inbox_size", Err: errors.New("must be positive")}
	}
	if c.Engine.StorageQueueSize <= 0 {
		return &domain.ConfigError{Field: "engine.storage_queue_size", Err: errors.New("must be positive")}
	}
	return nil
}

// OfferDuration is how long an offer stays active.
func (c *Config) OfferDuration() time.Duration {
	return time.Duration(c.Market.OfferDurationSec) * time.Second
}

// CheckExpiredInterval is the sweep interval. Zero or negative disables sweeping.
func (c *Config) CheckExpiredInterval() time.Duration {
	return time.Duration(c.Market.CheckExpiredEachMin) * time.Minute
}

// overrideWithEnv overrides settings from the environment when present.
func overrideWithEnv(cfg *Config) {
	if path := os.Getenv("MARKET_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if level := os.Getenv("MARKET_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if addr := os.Getenv("MARKET_ADMIN_ADDR"); addr != "" {
		cfg.Admin.Addr = addr
	}
}
