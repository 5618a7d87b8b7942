// Command monitor streams futures candles, keeps per-symbol history up to
// date, and emits analysis reports whenever a symbol's signal changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Augly/crypto-monitor/internal/backfill"
	"github.com/Augly/crypto-monitor/internal/candle"
	"github.com/Augly/crypto-monitor/internal/config"
	"github.com/Augly/crypto-monitor/internal/exchange"
	"github.com/Augly/crypto-monitor/internal/metrics"
	"github.com/Augly/crypto-monitor/internal/monitor"
	"github.com/Augly/crypto-monitor/internal/notify"
	"github.com/Augly/crypto-monitor/internal/score"
	"github.com/Augly/crypto-monitor/internal/store"
	"github.com/Augly/crypto-monitor/internal/trader"
	"github.com/Augly/crypto-monitor/internal/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "monitor:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSrv := metrics.Serve(cfg.App.MetricsAddr)
	defer metricsSrv.Close()

	kv, closeKV, err := buildKV(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeKV()
	st := store.New(kv)

	client := exchange.NewClient(cfg.Exchange.RestURL, log)

	symbols, err := resolveSymbols(ctx, cfg, client)
	if err != nil {
		return err
	}
	log.Info().Int("symbols", len(symbols)).Str("interval", cfg.Exchange.Interval).Msg("starting monitor")

	coordinator := backfill.New(client, st, log, backfill.Config{
		Interval:      cfg.Exchange.Interval,
		RetentionDays: cfg.Backfill.RetentionDays,
		PageLimit:     cfg.Backfill.PageLimit,
		PageDelay:     time.Duration(cfg.Backfill.PageDelayMs) * time.Millisecond,
	})
	if err := coordinator.Run(ctx, symbols); err != nil {
		return err
	}

	sinks, err := notify.Build(cfg.Notifications, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, sink := range sinks {
			if err := sink.Close(); err != nil {
				log.Warn().Err(err).Msg("sink close failed")
			}
		}
	}()

	executor, err := buildExecutor(cfg, log)
	if err != nil {
		return err
	}

	engine := score.NewEngine(cfg.Weights, cfg.Thresholds)
	pipeline := monitor.New(st, engine, sinks, executor, cfg.Trading, cfg.Exchange.Interval, log)

	pool := exchange.NewPool(poolConfig(cfg), log, func(symbol string, k candle.Candle) {
		pipeline.HandleClose(ctx, symbol, k)
	})
	batches := pool.Start(ctx, symbols)
	log.Info().Int("batches", batches).Msg("stream pool started")

	pool.Wait()
	log.Info().Msg("monitor stopped")
	return nil
}

func poolConfig(cfg *config.Config) exchange.PoolConfig {
	return exchange.PoolConfig{
		URL:                  cfg.Exchange.StreamURL,
		Interval:             cfg.Exchange.Interval,
		BatchSize:            cfg.Stream.BatchSize,
		HeartbeatInterval:    time.Duration(cfg.Stream.HeartbeatIntervalSecs) * time.Second,
		PingReplyWindow:      time.Duration(cfg.Stream.PingReplyWindowSecs) * time.Second,
		ReconnectBase:        time.Duration(cfg.Stream.ReconnectBaseDelayMs) * time.Millisecond,
		ReconnectCap:         time.Duration(cfg.Stream.ReconnectMaxDelayMs) * time.Millisecond,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
	}
}

// resolveSymbols uses the configured list when present, otherwise ranks the
// most liquid symbols for the configured quote asset.
func resolveSymbols(ctx context.Context, cfg *config.Config, client *exchange.Client) ([]string, error) {
	if len(cfg.Exchange.Symbols) > 0 {
		return cfg.Exchange.Symbols, nil
	}
	return client.TopSymbols(ctx, cfg.Exchange.QuoteAsset, cfg.Exchange.TopSymbols)
}

func buildKV(cfg config.Storage) (store.KV, func(), error) {
	switch cfg.Backend {
	case "", "file":
		kv, err := store.NewFileKV(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() {}, nil
	case "redis":
		kv, err := store.NewRedisKV(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { _ = kv.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// buildExecutor returns nil when trading is disabled. Credentials come from
// the config file or, preferably, the environment.
func buildExecutor(cfg *config.Config, log zerolog.Logger) (monitor.Executor, error) {
	if !cfg.Trading.Enabled {
		return nil, nil
	}
	key := cfg.Exchange.APIKey
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		key = v
	}
	secret := cfg.Exchange.APISecret
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		secret = v
	}
	tr, err := trader.New(cfg.Exchange.RestURL, key, secret, log)
	if err != nil {
		return nil, err
	}
	return tr, nil
}
