// Command backfill brings candle history up to date without starting the
// live stream. Useful for seeding a fresh deployment or repairing gaps.
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

	"github.com/Augly/crypto-monitor/internal/backfill"
	"github.com/Augly/crypto-monitor/internal/config"
	"github.com/Augly/crypto-monitor/internal/exchange"
	"github.com/Augly/crypto-monitor/internal/store"
	"github.com/Augly/crypto-monitor/internal/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
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

	kv, closeKV, err := buildKV(cfg.Storage)
	if err != nil {
		return err
	}
	defer closeKV()
	st := store.New(kv)

	client := exchange.NewClient(cfg.Exchange.RestURL, log)

	symbols := cfg.Exchange.Symbols
	if len(symbols) == 0 {
		symbols, err = client.TopSymbols(ctx, cfg.Exchange.QuoteAsset, cfg.Exchange.TopSymbols)
		if err != nil {
			return err
		}
	}
	log.Info().Int("symbols", len(symbols)).Msg("backfill starting")

	coordinator := backfill.New(client, st, log, backfill.Config{
		Interval:      cfg.Exchange.Interval,
		RetentionDays: cfg.Backfill.RetentionDays,
		PageLimit:     cfg.Backfill.PageLimit,
		PageDelay:     time.Duration(cfg.Backfill.PageDelayMs) * time.Millisecond,
	})
	return coordinator.Run(ctx, symbols)
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
