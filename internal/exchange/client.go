// Package exchange hosts futures market connectivity: the REST market data
// client and the batched kline stream pool.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Augly/crypto-monitor/internal/candle"
)

const defaultRestURL = "https://fapi.binance.com"

// Client is the REST market data client used for historical klines and
// symbol discovery.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultRestURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// Klines fetches one page of historical candles. The endpoint caps a page at
// the given limit; callers page by advancing start past the window returned.
func (c *Client) Klines(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]candle.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("startTime", strconv.FormatInt(start, 10))
	query.Set("endTime", strconv.FormatInt(end, 10))
	query.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/fapi/v1/klines?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	out := make([]candle.Candle, 0, len(rows))
	for _, row := range rows {
		k, err := parseKlineRow(row)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("skipping malformed kline row")
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

// Kline rows arrive as positional arrays mixing numbers and numeric strings:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...].
func parseKlineRow(row []any) (candle.Candle, error) {
	if len(row) < 9 {
		return candle.Candle{}, fmt.Errorf("kline row has %d fields", len(row))
	}
	openTime, err := rowInt(row[0])
	if err != nil {
		return candle.Candle{}, err
	}
	closeTime, err := rowInt(row[6])
	if err != nil {
		return candle.Candle{}, err
	}
	trades, err := rowInt(row[8])
	if err != nil {
		return candle.Candle{}, err
	}
	floats := make([]float64, 6)
	for i, idx := range []int{1, 2, 3, 4, 5, 7} {
		v, err := rowFloat(row[idx])
		if err != nil {
			return candle.Candle{}, err
		}
		floats[i] = v
	}
	return candle.Candle{
		OpenTime:    openTime,
		Open:        floats[0],
		High:        floats[1],
		Low:         floats[2],
		Close:       floats[3],
		Volume:      floats[4],
		CloseTime:   closeTime,
		QuoteVolume: floats[5],
		Trades:      trades,
	}, nil
}

func rowFloat(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case json.Number:
		return t.Float64()
	default:
		return 0, fmt.Errorf("unexpected kline field type %T", v)
	}
}

func rowInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected kline field type %T", v)
	}
}

type dailyStat struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
	LastPrice   string `json:"lastPrice"`
}

// TopSymbols returns the most actively traded symbols quoted in the given
// asset, ranked by 24h quote volume descending.
func (c *Client) TopSymbols(ctx context.Context, quote string, limit int) ([]string, error) {
	endpoint := c.baseURL + "/fapi/v1/ticker/24hr"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var stats []dailyStat
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode ticker stats: %w", err)
	}

	type ranked struct {
		symbol string
		volume float64
	}
	candidates := make([]ranked, 0, len(stats))
	for _, s := range stats {
		if !strings.HasSuffix(s.Symbol, quote) {
			continue
		}
		volume, err := strconv.ParseFloat(s.QuoteVolume, 64)
		if err != nil {
			continue
		}
		candidates = append(candidates, ranked{symbol: s.Symbol, volume: volume})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].volume > candidates[j].volume })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, r := range candidates {
		out[i] = r.symbol
	}
	return out, nil
}
