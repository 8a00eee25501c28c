package infra

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"otmarket/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/market.db
market:
  offer_duration_sec: 3600
  check_expired_each_min: 5
  inbox_capacity: 40
  items_file: items.yaml
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.OfferDuration() != time.Hour {
		t.Errorf("Expected 1h offer duration, got %v", cfg.OfferDuration())
	}
	if cfg.CheckExpiredInterval() != 5*time.Minute {
		t.Errorf("Expected 5m interval, got %v", cfg.CheckExpiredInterval())
	}
	if cfg.Market.InboxCapacity != 40 {
		t.Errorf("Expected inbox capacity 40, got %d", cfg.Market.InboxCapacity)
	}
	// Defaults survive a partial file
	if cfg.Market.MaxOffersPerPlayer != defaultMaxOffers {
		t.Errorf("Expected default max offers, got %d", cfg.Market.MaxOffersPerPlayer)
	}
	if cfg.Engine.InboxSize != defaultInboxSize {
		t.Errorf("Expected default inbox size, got %d", cfg.Engine.InboxSize)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "database:\n  path: a.db\n")
	t.Setenv("MARKET_DB_PATH", "b.db")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Database.Path != "b.db" {
		t.Errorf("Expected env override b.db, got %s", cfg.Database.Path)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "market:\n  offer_duration_sec: 0\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %T", err)
	}
	if cfgErr.Field != "market.offer_duration_sec" {
		t.Errorf("Unexpected field %s", cfgErr.Field)
	}
}

func TestConfig_SweepDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Market.CheckExpiredEachMin = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("A disabled sweep must be a valid configuration: %v", err)
	}
	if cfg.CheckExpiredInterval() > 0 {
		t.Error("Expected non-positive interval")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Error("Expected debug level")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("Expected info fallback")
	}
}
