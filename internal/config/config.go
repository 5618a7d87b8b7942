// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes connectivity to the futures market data and order endpoints.
type Exchange struct {
	RestURL    string   `yaml:"rest_url"`
	StreamURL  string   `yaml:"stream_url"`
	Symbols    []string `yaml:"symbols"`
	TopSymbols int      `yaml:"top_symbols"`
	QuoteAsset string   `yaml:"quote_asset"`
	Interval   string   `yaml:"interval"`
	APIKey     string   `yaml:"api_key"`
	APISecret  string   `yaml:"api_secret"`
}

// Stream tunes the websocket pool: batch sizing, heartbeats, and reconnect policy.
type Stream struct {
	BatchSize             int `yaml:"batch_size"`
	HeartbeatIntervalSecs int `yaml:"heartbeat_interval_secs"`
	PingReplyWindowSecs   int `yaml:"ping_reply_window_secs"`
	ReconnectBaseDelayMs  int `yaml:"reconnect_base_delay_ms"`
	ReconnectMaxDelayMs   int `yaml:"reconnect_max_delay_ms"`
	MaxReconnectAttempts  int `yaml:"max_reconnect_attempts"`
}

// Redis holds connection parameters for the Redis storage backend.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Storage selects and configures the candle persistence backend.
type Storage struct {
	Backend string `yaml:"backend"` // "file" or "redis"
	DataDir string `yaml:"data_dir"`
	Redis   Redis  `yaml:"redis"`
}

// Backfill controls the historical catch-up fetch.
type Backfill struct {
	RetentionDays int `yaml:"retention_days"`
	PageLimit     int `yaml:"page_limit"`
	PageDelayMs   int `yaml:"page_delay_ms"`
}

// Weights blends the five category scores into the aggregate score. They are
// expected, but not required, to sum to 1.
type Weights struct {
	Trend      float64 `yaml:"trend"`
	Momentum   float64 `yaml:"momentum"`
	Volatility float64 `yaml:"volatility"`
	Volume     float64 `yaml:"volume"`
	Support    float64 `yaml:"support"`
}

// Thresholds are the descending signal classification bands.
type Thresholds struct {
	StrongBuy float64 `yaml:"strong_buy"`
	Buy       float64 `yaml:"buy"`
	Neutral   float64 `yaml:"neutral"`
	Sell      float64 `yaml:"sell"`
}

// Trading encodes the automated execution parameters applied to strong signals.
type Trading struct {
	Enabled      bool    `yaml:"enabled"`
	Leverage     int     `yaml:"leverage"`
	PositionSize float64 `yaml:"position_size"`
	StopLoss     float64 `yaml:"stop_loss"`
	TakeProfit   float64 `yaml:"take_profit"`
	MaxPositions int     `yaml:"max_positions"`
}

// Kafka configures the kafka notification channel.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Notifications lists the report delivery channels.
type Notifications struct {
	Channels []string `yaml:"channels"`
	Kafka    Kafka    `yaml:"kafka"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App           App           `yaml:"app"`
	Exchange      Exchange      `yaml:"exchange"`
	Stream        Stream        `yaml:"stream"`
	Storage       Storage       `yaml:"storage"`
	Backfill      Backfill      `yaml:"backfill"`
	Weights       Weights       `yaml:"score_weights"`
	Thresholds    Thresholds    `yaml:"signal_thresholds"`
	Trading       Trading       `yaml:"trading"`
	Notifications Notifications `yaml:"notifications"`
}

// Default returns the built-in configuration. Loaded files are decoded over
// these values, so a partial YAML file overrides only what it names.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "crypto-monitor",
			Env:         "dev",
			MetricsAddr: ":9100",
			LogLevel:    "info",
		},
		Exchange: Exchange{
			RestURL:    "https://fapi.binance.com",
			StreamURL:  "wss://fstream.binance.com/ws",
			TopSymbols: 50,
			QuoteAsset: "USDT",
			Interval:   "1h",
		},
		Stream: Stream{
			BatchSize:             200,
			HeartbeatIntervalSecs: 120,
			PingReplyWindowSecs:   600,
			ReconnectBaseDelayMs:  5000,
			ReconnectMaxDelayMs:   30000,
			MaxReconnectAttempts:  5,
		},
		Storage: Storage{
			Backend: "file",
			DataDir: "data",
		},
		Backfill: Backfill{
			RetentionDays: 200,
			PageLimit:     1000,
			PageDelayMs:   100,
		},
		Weights: Weights{
			Trend:      0.3,
			Momentum:   0.2,
			Volatility: 0.2,
			Volume:     0.15,
			Support:    0.15,
		},
		Thresholds: Thresholds{
			StrongBuy: 80,
			Buy:       60,
			Neutral:   40,
			Sell:      20,
		},
		Trading: Trading{
			Leverage:     5,
			PositionSize: 100,
			StopLoss:     0.02,
			TakeProfit:   0.04,
			MaxPositions: 5,
		},
		Notifications: Notifications{
			Channels: []string{"console"},
		},
	}
}

// Load reads a YAML file from disk and hydrates a Config struct over the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
