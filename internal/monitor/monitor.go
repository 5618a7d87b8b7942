// Package monitor wires the per-candle pipeline: persist, analyze, gate,
// publish, and (optionally) trade.
package monitor

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Augly/crypto-monitor/internal/candle"
	"github.com/Augly/crypto-monitor/internal/config"
	"github.com/Augly/crypto-monitor/internal/indicator"
	"github.com/Augly/crypto-monitor/internal/metrics"
	"github.com/Augly/crypto-monitor/internal/notify"
	"github.com/Augly/crypto-monitor/internal/score"
	"github.com/Augly/crypto-monitor/internal/store"
	"github.com/Augly/crypto-monitor/internal/trader"
)

// Executor is the slice of the trader the pipeline drives.
type Executor interface {
	OpenPosition(ctx context.Context, symbol string, side trader.Side, quantity float64, opts trader.Options) error
}

// Monitor handles closed candles end to end. Persistence failures abandon
// the cycle so analysis never runs ahead of the stored series; sink and
// order failures are logged and do not stop the stream.
type Monitor struct {
	store    *store.Store
	engine   *score.Engine
	sinks    []notify.Sink
	executor Executor
	trading  config.Trading
	interval string
	log      zerolog.Logger
}

func New(st *store.Store, engine *score.Engine, sinks []notify.Sink, executor Executor, trading config.Trading, interval string, log zerolog.Logger) *Monitor {
	return &Monitor{
		store:    st,
		engine:   engine,
		sinks:    sinks,
		executor: executor,
		trading:  trading,
		interval: interval,
		log:      log,
	}
}

// HandleClose processes one closed candle. Safe for concurrent calls across
// symbols; the store serializes writers per series.
func (m *Monitor) HandleClose(ctx context.Context, symbol string, k candle.Candle) {
	series, err := m.store.Merge(ctx, symbol, m.interval, []candle.Candle{k})
	if err != nil {
		m.log.Error().Err(err).Str("symbol", symbol).Msg("candle persistence failed")
		return
	}

	report := m.analyze(symbol, k, series)
	if !m.engine.ShouldEmit(symbol, report.Signal, report.Time) {
		return
	}
	metrics.SignalsTotal.WithLabelValues(symbol, string(report.Signal)).Inc()

	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, report); err != nil {
			m.log.Error().Err(err).Str("symbol", symbol).Msg("report publish failed")
		}
	}

	m.maybeTrade(ctx, report)
}

func (m *Monitor) analyze(symbol string, k candle.Candle, series []candle.Candle) score.Report {
	snap, err := indicator.Compute(series)
	if err != nil {
		if !errors.Is(err, indicator.ErrInsufficientHistory) {
			m.log.Error().Err(err).Str("symbol", symbol).Msg("indicator computation failed")
		}
		return score.DegradedReport(symbol, k, err.Error())
	}
	return m.engine.Evaluate(symbol, k, snap)
}

// maybeTrade opens a position only for strong signals on healthy reports.
func (m *Monitor) maybeTrade(ctx context.Context, report score.Report) {
	if m.executor == nil || !m.trading.Enabled || report.Degraded() {
		return
	}

	var side trader.Side
	switch report.Signal {
	case score.StrongBuy:
		side = trader.Long
	case score.StrongSell:
		side = trader.Short
	default:
		return
	}

	price := report.Price.Current
	if price <= 0 {
		return
	}
	quantity := m.trading.PositionSize / price

	opts := trader.Options{Leverage: m.trading.Leverage}
	if side == trader.Long {
		opts.StopLoss = price * (1 - m.trading.StopLoss)
		opts.TakeProfit = price * (1 + m.trading.TakeProfit)
	} else {
		opts.StopLoss = price * (1 + m.trading.StopLoss)
		opts.TakeProfit = price * (1 - m.trading.TakeProfit)
	}

	if err := m.executor.OpenPosition(ctx, report.Symbol, side, quantity, opts); err != nil {
		m.log.Error().Err(err).Str("symbol", report.Symbol).Str("side", string(side)).Msg("order failed")
	}
}
