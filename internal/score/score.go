// Package score turns indicator snapshots into bounded category scores, a
// weighted aggregate, a discrete trading signal, and gated analysis reports.
package score

import (
	"math"
	"sync"
	"time"

	"github.com/Augly/crypto-monitor/internal/candle"
	"github.com/Augly/crypto-monitor/internal/config"
	"github.com/Augly/crypto-monitor/internal/indicator"
)

// Signal is the discrete trading recommendation class.
type Signal string

const (
	StrongBuy  Signal = "STRONG_BUY"
	Buy        Signal = "BUY"
	Neutral    Signal = "NEUTRAL"
	Sell       Signal = "SELL"
	StrongSell Signal = "STRONG_SELL"
)

// Risk grades how hostile current volatility is to a new position.
type Risk string

const (
	RiskHigh   Risk = "HIGH"
	RiskMedium Risk = "MEDIUM"
	RiskLow    Risk = "LOW"
)

// Scores holds the five category scores and their weighted aggregate, each
// bounded to [0, 100].
type Scores struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`
	Support    float64 `json:"support"`
	Total      float64 `json:"total"`
}

// Price is the snapshot of the triggering candle.
type Price struct {
	Current float64 `json:"current"`
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
}

// Recommendation is the human-readable reading of a signal.
type Recommendation struct {
	Action     string   `json:"action"`
	Confidence string   `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Report is the per-candle-close analysis emitted to notification sinks and
// the execution trigger. Transient: never persisted.
type Report struct {
	Symbol         string             `json:"symbol"`
	Time           time.Time          `json:"time"`
	Price          Price              `json:"price"`
	Indicators     indicator.Snapshot `json:"indicators"`
	Scores         Scores             `json:"scores"`
	Signal         Signal             `json:"signal"`
	RiskLevel      Risk               `json:"riskLevel"`
	Recommendation Recommendation     `json:"recommendation"`
	Err            string             `json:"error,omitempty"`
}

// Degraded reports carry an error marker instead of scores.
func (r Report) Degraded() bool { return r.Err != "" }

// Engine computes reports and gates their emission on signal changes.
type Engine struct {
	weights    config.Weights
	thresholds config.Thresholds

	mu   sync.Mutex
	last map[string]lastEmission
}

// lastEmission is the per-symbol signal memory. It exists only for the
// equality check against the next computed signal.
type lastEmission struct {
	signal Signal
	at     time.Time
}

func NewEngine(weights config.Weights, thresholds config.Thresholds) *Engine {
	return &Engine{
		weights:    weights,
		thresholds: thresholds,
		last:       make(map[string]lastEmission),
	}
}

// Evaluate builds the full report for one closed candle.
func (e *Engine) Evaluate(symbol string, k candle.Candle, snap indicator.Snapshot) Report {
	scores := Calculate(k, snap, e.weights)
	sig := Classify(scores.Total, e.thresholds)
	return Report{
		Symbol: symbol,
		Time:   time.UnixMilli(k.CloseTime).UTC(),
		Price: Price{
			Current: k.Close,
			Open:    k.Open,
			High:    k.High,
			Low:     k.Low,
		},
		Indicators:     snap,
		Scores:         scores,
		Signal:         sig,
		RiskLevel:      RiskLevel(scores),
		Recommendation: recommend(sig, scores),
	}
}

// DegradedReport builds the error-marker report used when a series cannot
// be scored. The score and signal fields stay zero.
func DegradedReport(symbol string, k candle.Candle, reason string) Report {
	return Report{
		Symbol: symbol,
		Time:   time.UnixMilli(k.CloseTime).UTC(),
		Price:  Price{Current: k.Close, Open: k.Open, High: k.High, Low: k.Low},
		Err:    reason,
	}
}

// ShouldEmit reports whether the computed signal is new or changed for the
// symbol, and records it exactly when it is. Two equal consecutive signals
// produce one emission; any change produces a new one.
func (e *Engine) ShouldEmit(symbol string, sig Signal, at time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.last[symbol]; ok && m.signal == sig {
		return false
	}
	e.last[symbol] = lastEmission{signal: sig, at: at}
	return true
}

// Calculate applies the category rule tables and blends them with the
// configured weights. Weights are used as given; they are expected, but not
// required, to sum to 1.
func Calculate(k candle.Candle, snap indicator.Snapshot, w config.Weights) Scores {
	s := Scores{
		Trend:      trendScore(snap),
		Momentum:   momentumScore(snap.RSI),
		Volatility: volatilityScore(snap.Bollinger),
		Volume:     volumeScore(k.Volume, snap.VolumeSMA),
		Support:    supportScore(k.Close, snap.Bollinger),
	}
	s.Total = s.Trend*w.Trend + s.Momentum*w.Momentum + s.Volatility*w.Volatility +
		s.Volume*w.Volume + s.Support*w.Support
	return s
}

func trendScore(snap indicator.Snapshot) float64 {
	ema5, ema13, ema144 := snap.EMA5, snap.EMA13, snap.EMA144
	switch {
	case ema5 > ema13 && ema13 > ema144:
		return 100
	case ema5 < ema13 && ema13 < ema144:
		return 0
	case ema5 == ema13 && ema13 == ema144:
		return 50
	case ema5 > ema13 && ema13 < ema144:
		return 75
	default:
		return 25
	}
}

func momentumScore(rsi float64) float64 {
	switch {
	case rsi > 70:
		return 100
	case rsi < 30:
		return 0
	default:
		return 50 + (rsi - 50)
	}
}

func volatilityScore(bands indicator.Bands) float64 {
	if bands.Middle == 0 {
		return 0
	}
	width := (bands.Upper - bands.Lower) / bands.Middle
	return math.Min(100, width*100)
}

func volumeScore(volume, volumeSMA float64) float64 {
	if volumeSMA <= 0 {
		return 0
	}
	if volume > volumeSMA {
		return 100
	}
	return volume / volumeSMA * 100
}

func supportScore(price float64, bands indicator.Bands) float64 {
	switch {
	case price > bands.Upper:
		return 100
	case price < bands.Lower:
		return 0
	case bands.Upper == bands.Lower:
		return 50
	default:
		return (price - bands.Lower) / (bands.Upper - bands.Lower) * 100
	}
}

// Classify maps the aggregate score onto the descending threshold bands.
// Guards are evaluated in order; the first match wins.
func Classify(total float64, t config.Thresholds) Signal {
	switch {
	case total >= t.StrongBuy:
		return StrongBuy
	case total >= t.Buy:
		return Buy
	case total >= t.Neutral:
		return Neutral
	case total >= t.Sell:
		return Sell
	default:
		return StrongSell
	}
}

// RiskLevel derives solely from the volatility category score.
func RiskLevel(s Scores) Risk {
	switch {
	case s.Volatility > 80:
		return RiskHigh
	case s.Volatility > 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

func recommend(sig Signal, s Scores) Recommendation {
	var rec Recommendation
	switch sig {
	case StrongBuy:
		rec = Recommendation{Action: "open long", Confidence: "high"}
	case Buy:
		rec = Recommendation{Action: "consider long", Confidence: "medium"}
	case Neutral:
		rec = Recommendation{Action: "stand aside", Confidence: "low"}
	case Sell:
		rec = Recommendation{Action: "consider short", Confidence: "medium"}
	case StrongSell:
		rec = Recommendation{Action: "open short", Confidence: "high"}
	}
	if s.Trend > 70 {
		rec.Reasons = append(rec.Reasons, "strong uptrend")
	}
	if s.Trend < 30 {
		rec.Reasons = append(rec.Reasons, "strong downtrend")
	}
	if s.Momentum > 70 {
		rec.Reasons = append(rec.Reasons, "momentum running hot")
	}
	if s.Momentum < 30 {
		rec.Reasons = append(rec.Reasons, "momentum fading")
	}
	if s.Volume > 70 {
		rec.Reasons = append(rec.Reasons, "volume expanding")
	}
	if s.Volatility > 70 {
		rec.Reasons = append(rec.Reasons, "volatility elevated, watch risk")
	}
	return rec
}
