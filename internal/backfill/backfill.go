// Package backfill populates candle history ahead of (and alongside) live
// streaming, paging through the historical endpoint under a rate-limit delay.
package backfill

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Augly/crypto-monitor/internal/candle"
	"github.com/Augly/crypto-monitor/internal/metrics"
	"github.com/Augly/crypto-monitor/internal/store"
)

// Fetcher is the paged historical-candle endpoint the coordinator consumes.
type Fetcher interface {
	Klines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]candle.Candle, error)
}

// Config carries the catch-up policy knobs.
type Config struct {
	Interval      string
	RetentionDays int
	PageLimit     int
	PageDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval == "" {
		c.Interval = "1h"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 200
	}
	if c.PageLimit <= 0 {
		c.PageLimit = 1000
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 100 * time.Millisecond
	}
	return c
}

// Coordinator drives resumable historical catch-up through the series store.
type Coordinator struct {
	fetcher Fetcher
	store   *store.Store
	log     zerolog.Logger
	cfg     Config
	now     func() time.Time
}

func New(fetcher Fetcher, st *store.Store, log zerolog.Logger, cfg Config) *Coordinator {
	return &Coordinator{
		fetcher: fetcher,
		store:   st,
		log:     log,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// Run backfills every symbol in turn. A symbol that fails is logged and
// skipped; it does not stop the rest.
func (c *Coordinator) Run(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetched, err := c.Sync(ctx, symbol)
		if err != nil {
			c.log.Error().Err(err).Str("symbol", symbol).Msg("backfill failed")
			continue
		}
		if fetched > 0 {
			c.log.Info().Str("symbol", symbol).Int("candles", fetched).Msg("backfill complete")
		}
	}
	return nil
}

// Sync brings one symbol's series up to date and returns how many candles
// were fetched. The start boundary resumes from the last known open time
// plus one; a series already at the live edge costs no network calls.
func (c *Coordinator) Sync(ctx context.Context, symbol string) (int, error) {
	end := c.now().UnixMilli()
	start := end - int64(c.cfg.RetentionDays)*24*60*60*1000

	last, ok, err := c.store.LastKnownTime(ctx, symbol, c.cfg.Interval)
	if err != nil {
		return 0, err
	}
	if ok {
		start = last + 1
	}
	if start >= end {
		return 0, nil
	}

	fetched, err := c.fetchRange(ctx, symbol, start, end)
	if err != nil {
		return 0, err
	}
	if len(fetched) == 0 {
		return 0, nil
	}
	if _, err := c.store.Merge(ctx, symbol, c.cfg.Interval, fetched); err != nil {
		return 0, err
	}
	metrics.BackfillCandlesTotal.WithLabelValues(symbol).Add(float64(len(fetched)))
	return len(fetched), nil
}

// fetchRange pages through [start, end). Each page window is sized so the
// endpoint can return at most PageLimit candles; a short page means the live
// edge was reached and paging stops early.
func (c *Coordinator) fetchRange(ctx context.Context, symbol string, start, end int64) ([]candle.Candle, error) {
	intervalMs, err := intervalMillis(c.cfg.Interval)
	if err != nil {
		return nil, err
	}
	window := int64(c.cfg.PageLimit) * intervalMs

	var all []candle.Candle
	for cursor := start; cursor < end; {
		pageEnd := cursor + window
		if pageEnd > end {
			pageEnd = end
		}
		page, err := c.fetcher.Klines(ctx, symbol, c.cfg.Interval, cursor, pageEnd, c.cfg.PageLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch %s page at %d: %w", symbol, cursor, err)
		}
		all = append(all, candle.Normalize(page)...)
		if len(page) < c.cfg.PageLimit {
			break
		}
		cursor = pageEnd

		select {
		case <-time.After(c.cfg.PageDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return candle.Normalize(all), nil
}

// intervalMillis parses interval tags like 1m, 5m, 1h, 4h, 1d.
func intervalMillis(interval string) (int64, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	value, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	switch interval[len(interval)-1] {
	case 'm':
		return value * 60 * 1000, nil
	case 'h':
		return value * 60 * 60 * 1000, nil
	case 'd':
		return value * 24 * 60 * 60 * 1000, nil
	default:
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
}
