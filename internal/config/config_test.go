package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "crypto-monitor-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if len(cfg.Exchange.Symbols) != 2 || cfg.Exchange.Symbols[0] != "BTCUSDT" {
		t.Fatalf("unexpected symbols: %+v", cfg.Exchange.Symbols)
	}
	if cfg.Exchange.Interval != "1h" {
		t.Fatalf("unexpected interval: %s", cfg.Exchange.Interval)
	}
	if cfg.Exchange.TopSymbols != 10 {
		t.Fatalf("unexpected top symbols: %d", cfg.Exchange.TopSymbols)
	}
	if cfg.Stream.BatchSize != 200 {
		t.Fatalf("unexpected batch size: %d", cfg.Stream.BatchSize)
	}
	if cfg.Stream.ReconnectBaseDelayMs != 5000 || cfg.Stream.ReconnectMaxDelayMs != 30000 {
		t.Fatalf("unexpected reconnect delays: %d/%d", cfg.Stream.ReconnectBaseDelayMs, cfg.Stream.ReconnectMaxDelayMs)
	}
	if cfg.Stream.MaxReconnectAttempts != 5 {
		t.Fatalf("unexpected reconnect budget: %d", cfg.Stream.MaxReconnectAttempts)
	}
	if cfg.Storage.Backend != "redis" || cfg.Storage.Redis.Addr != "localhost:6379" || cfg.Storage.Redis.DB != 2 {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Backfill.RetentionDays != 30 || cfg.Backfill.PageLimit != 500 || cfg.Backfill.PageDelayMs != 50 {
		t.Fatalf("unexpected backfill config: %+v", cfg.Backfill)
	}
	if cfg.Weights.Trend != 0.4 {
		t.Fatalf("unexpected trend weight: %.2f", cfg.Weights.Trend)
	}
	if cfg.Thresholds.StrongBuy != 85 || cfg.Thresholds.Sell != 25 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Trading.Enabled {
		t.Fatalf("expected trading disabled")
	}
	if cfg.Trading.Leverage != 3 || cfg.Trading.PositionSize != 50 {
		t.Fatalf("unexpected trading params: %+v", cfg.Trading)
	}
	if len(cfg.Notifications.Channels) != 2 || cfg.Notifications.Channels[1] != "kafka" {
		t.Fatalf("unexpected channels: %+v", cfg.Notifications.Channels)
	}
	if cfg.Notifications.Kafka.Topic != "analysis-reports" {
		t.Fatalf("unexpected kafka topic: %s", cfg.Notifications.Kafka.Topic)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: partial\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.App.Name != "partial" {
		t.Fatalf("expected overridden name, got %s", cfg.App.Name)
	}
	if cfg.Stream.BatchSize != 200 {
		t.Fatalf("expected default batch size, got %d", cfg.Stream.BatchSize)
	}
	if cfg.Thresholds.StrongBuy != 80 {
		t.Fatalf("expected default strong buy threshold, got %.0f", cfg.Thresholds.StrongBuy)
	}
	if cfg.Backfill.RetentionDays != 200 {
		t.Fatalf("expected default retention, got %d", cfg.Backfill.RetentionDays)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
