// Package trader submits signed futures orders for strong signals. Every
// entry ships with exchange-side stop-loss and take-profit brackets so a
// dropped process never leaves a naked position.
package trader

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Augly/crypto-monitor/internal/metrics"
)

// Side is the position direction.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Options carries the per-order risk parameters.
type Options struct {
	Leverage   int
	StopLoss   float64 // absolute trigger price
	TakeProfit float64 // absolute trigger price
}

// Trader is the signed futures REST client.
type Trader struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
	log     zerolog.Logger
	now     func() time.Time
}

// New fails fast on missing credentials so a half-configured deployment
// cannot silently run unauthenticated.
func New(baseURL, key, secret string, log zerolog.Logger) (*Trader, error) {
	if key == "" || secret == "" {
		return nil, errors.New("trading enabled but api credentials missing")
	}
	return &Trader{
		baseURL: baseURL,
		key:     key,
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
		now:     time.Now,
	}, nil
}

// OpenPosition sets leverage, enters with a market order, then places the
// stop-loss and take-profit brackets as opposite-side closePosition orders.
func (t *Trader) OpenPosition(ctx context.Context, symbol string, side Side, quantity float64, opts Options) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %f", quantity)
	}

	leverage := url.Values{}
	leverage.Set("symbol", symbol)
	leverage.Set("leverage", strconv.Itoa(opts.Leverage))
	if _, err := t.signedPost(ctx, "/fapi/v1/leverage", leverage); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}

	entry := url.Values{}
	entry.Set("symbol", symbol)
	entry.Set("side", orderSide(side))
	entry.Set("type", "MARKET")
	entry.Set("quantity", formatQty(quantity))
	if _, err := t.signedPost(ctx, "/fapi/v1/order", entry); err != nil {
		return fmt.Errorf("entry order: %w", err)
	}
	metrics.OrdersTotal.WithLabelValues(symbol, string(side)).Inc()

	exitSide := orderSide(opposite(side))
	if opts.StopLoss > 0 {
		if err := t.closeTrigger(ctx, symbol, exitSide, "STOP_MARKET", opts.StopLoss); err != nil {
			return fmt.Errorf("stop loss order: %w", err)
		}
	}
	if opts.TakeProfit > 0 {
		if err := t.closeTrigger(ctx, symbol, exitSide, "TAKE_PROFIT_MARKET", opts.TakeProfit); err != nil {
			return fmt.Errorf("take profit order: %w", err)
		}
	}

	t.log.Info().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("quantity", quantity).
		Int("leverage", opts.Leverage).
		Float64("stopLoss", opts.StopLoss).
		Float64("takeProfit", opts.TakeProfit).
		Msg("position opened")
	return nil
}

// ClosePosition flattens an open position with an opposite market order.
func (t *Trader) ClosePosition(ctx context.Context, symbol string, side Side, quantity float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", orderSide(opposite(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", formatQty(quantity))
	params.Set("reduceOnly", "true")
	if _, err := t.signedPost(ctx, "/fapi/v1/order", params); err != nil {
		return fmt.Errorf("close order: %w", err)
	}
	t.log.Info().Str("symbol", symbol).Str("side", string(side)).Msg("position closed")
	return nil
}

func (t *Trader) closeTrigger(ctx context.Context, symbol, side, orderType string, stopPrice float64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", orderType)
	params.Set("stopPrice", formatQty(stopPrice))
	params.Set("closePosition", "true")
	_, err := t.signedPost(ctx, "/fapi/v1/order", params)
	return err
}

// signedPost appends the timestamp, signs the query with HMAC-SHA256, and
// posts with the api key header. The exchange expects the signature over the
// exact encoded query string.
func (t *Trader) signedPost(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(t.now().UnixMilli(), 10))
	query := params.Encode()

	mac := hmac.New(sha256.New, []byte(t.secret))
	mac.Write([]byte(query))
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+path+"?"+query+"&signature="+signature, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", t.key)

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("%s: %s (code %d)", path, apiErr.Msg, apiErr.Code)
		}
		return nil, fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return body, nil
}

func orderSide(side Side) string {
	if side == Long {
		return "BUY"
	}
	return "SELL"
}

func opposite(side Side) Side {
	if side == Long {
		return Short
	}
	return Long
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
