package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Augly/crypto-monitor/internal/candle"
	"github.com/Augly/crypto-monitor/internal/metrics"
)

// State is the lifecycle phase of one batch connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateFailed
)

// atomicState lets the pool report a batch's phase while its goroutine
// mutates it.
type atomicState struct {
	v atomic.Int32
}

func (a *atomicState) set(s State) { a.v.Store(int32(s)) }
func (a *atomicState) get() State  { return State(a.v.Load()) }

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Handler consumes closed candles delivered by the stream pool.
type Handler func(symbol string, k candle.Candle)

// PoolConfig tunes batch sizing, heartbeats, and the reconnect policy.
type PoolConfig struct {
	URL                  string
	Interval             string
	BatchSize            int
	HeartbeatInterval    time.Duration
	PingReplyWindow      time.Duration
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	MaxReconnectAttempts int
	ConnectStagger       time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.URL == "" {
		c.URL = "wss://fstream.binance.com/ws"
	}
	if c.Interval == "" {
		c.Interval = "1h"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 120 * time.Second
	}
	if c.PingReplyWindow <= 0 {
		c.PingReplyWindow = 10 * time.Minute
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = 5 * time.Second
	}
	if c.ReconnectCap <= 0 {
		c.ReconnectCap = 30 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ConnectStagger < 0 {
		c.ConnectStagger = 0
	}
	return c
}

// Pool maintains one websocket per batch of symbols and routes closed
// candles to the handler. Each batch's lifecycle (dial, subscribe,
// heartbeat, read loop, backoff) is owned by a single goroutine, so a stale
// reconnect can never race a newer open for the same index.
type Pool struct {
	cfg     PoolConfig
	log     zerolog.Logger
	handler Handler
	batches []*batchState
	done    chan struct{}
}

// batchState is the per-index connection record. Membership is fixed for
// the batch's lifetime; reconnects always re-subscribe the full set.
type batchState struct {
	index    int
	symbols  []string
	state    atomicState
	attempts int
}

func NewPool(cfg PoolConfig, log zerolog.Logger, handler Handler) *Pool {
	return &Pool{
		cfg:     cfg.withDefaults(),
		log:     log,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start partitions the symbol universe into batches and launches one
// connection goroutine per batch. It returns the number of batches.
func (p *Pool) Start(ctx context.Context, symbols []string) int {
	parts := splitBatches(symbols, p.cfg.BatchSize)
	p.batches = make([]*batchState, len(parts))
	running := make(chan struct{}, len(parts))

	for i, part := range parts {
		b := &batchState{index: i, symbols: part}
		b.state.set(StateConnecting)
		p.batches[i] = b
		stagger := time.Duration(i) * p.cfg.ConnectStagger
		go func(b *batchState, stagger time.Duration) {
			defer func() { running <- struct{}{} }()
			if stagger > 0 {
				select {
				case <-time.After(stagger):
				case <-ctx.Done():
					return
				}
			}
			p.runBatch(ctx, b)
		}(b, stagger)
	}

	go func() {
		for range parts {
			<-running
		}
		close(p.done)
	}()
	return len(parts)
}

// Wait blocks until every batch goroutine has exited.
func (p *Pool) Wait() {
	<-p.done
}

// BatchState reports the lifecycle phase of a batch index.
func (p *Pool) BatchState(index int) State {
	if index < 0 || index >= len(p.batches) {
		return StateFailed
	}
	return p.batches[index].state.get()
}

// runBatch drives one batch through its connection state machine until the
// context is cancelled or the reconnect budget is exhausted.
func (p *Pool) runBatch(ctx context.Context, b *batchState) {
	for {
		err := p.consume(ctx, b)
		if ctx.Err() != nil {
			return
		}

		b.attempts++
		if b.attempts > p.cfg.MaxReconnectAttempts {
			b.state.set(StateFailed)
			metrics.BatchesFailedTotal.WithLabelValues(strconv.Itoa(b.index)).Inc()
			p.log.Error().Int("batch", b.index).Err(err).
				Msg("reconnect budget exhausted, batch going dark")
			return
		}

		delay := backoffDelay(p.cfg.ReconnectBase, p.cfg.ReconnectCap, b.attempts-1)
		b.state.set(StateReconnecting)
		metrics.ReconnectsTotal.WithLabelValues(strconv.Itoa(b.index)).Inc()
		p.log.Warn().Int("batch", b.index).Int("attempt", b.attempts).
			Dur("delay", delay).Err(err).Msg("stream disconnected, reconnecting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// backoffDelay computes min(base*2^failures, limit).
func backoffDelay(base, limit time.Duration, failures int) time.Duration {
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

// consume owns one connection from dial to close. All per-connection timers
// are released before it returns, whatever the exit path.
func (p *Pool) consume(ctx context.Context, b *batchState) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := p.subscribe(conn, b); err != nil {
		return err
	}

	// Successful open resets the reconnect budget for this index.
	b.attempts = 0
	b.state.set(StateOpen)
	p.log.Info().Int("batch", b.index).Int("symbols", len(b.symbols)).Msg("stream open")

	hb := newHeartbeat(conn, p.cfg.HeartbeatInterval, p.cfg.PingReplyWindow,
		p.log.With().Int("batch", b.index).Logger())
	defer hb.Stop()

	closeWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer closeWatch()

	conn.SetReadLimit(1 << 20)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if msgType == websocket.TextMessage && string(data) == "ping" {
			hb.ScheduleReply()
			continue
		}
		p.dispatch(data)
	}
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

func (p *Pool) subscribe(conn *websocket.Conn, b *batchState) error {
	params := make([]string, len(b.symbols))
	for i, sym := range b.symbols {
		params[i] = strings.ToLower(sym) + "@kline_" + p.cfg.Interval
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: b.index})
}

type klineEnvelope struct {
	Event  string       `json:"e"`
	Symbol string       `json:"s"`
	Kline  klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime    int64  `json:"t"`
	CloseTime   int64  `json:"T"`
	Open        string `json:"o"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Close       string `json:"c"`
	Volume      string `json:"v"`
	QuoteVolume string `json:"q"`
	Trades      int64  `json:"n"`
	Closed      bool   `json:"x"`
}

func (k klinePayload) toCandle() (candle.Candle, error) {
	out := candle.Candle{OpenTime: k.OpenTime, CloseTime: k.CloseTime, Trades: k.Trades}
	for _, field := range []struct {
		raw string
		dst *float64
	}{
		{k.Open, &out.Open},
		{k.High, &out.High},
		{k.Low, &out.Low},
		{k.Close, &out.Close},
		{k.Volume, &out.Volume},
		{k.QuoteVolume, &out.QuoteVolume},
	} {
		v, err := strconv.ParseFloat(field.raw, 64)
		if err != nil {
			return candle.Candle{}, err
		}
		*field.dst = v
	}
	return out, nil
}

// dispatch routes a domain event to the handler. Only fully closed candles
// proceed; partial updates are dropped. A panicking handler is contained so
// one bad update cannot take the batch down.
func (p *Pool) dispatch(data []byte) {
	var env klineEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		p.log.Warn().Err(err).Msg("failed to decode stream message")
		return
	}
	if env.Event != "kline" || !env.Kline.Closed {
		return
	}
	k, err := env.Kline.toCandle()
	if err != nil {
		p.log.Warn().Err(err).Str("symbol", env.Symbol).Msg("invalid kline payload")
		return
	}
	metrics.CandlesTotal.WithLabelValues(env.Symbol).Inc()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("symbol", env.Symbol).Msg("handler panicked")
		}
	}()
	p.handler(env.Symbol, k)
}

func splitBatches(symbols []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[start:end])
	}
	return out
}
