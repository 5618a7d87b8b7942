package score

import (
	"testing"
	"time"

	"github.com/Augly/crypto-monitor/internal/candle"
	"github.com/Augly/crypto-monitor/internal/config"
	"github.com/Augly/crypto-monitor/internal/indicator"
)

func defaultThresholds() config.Thresholds {
	return config.Thresholds{StrongBuy: 80, Buy: 60, Neutral: 40, Sell: 20}
}

func TestClassifyBands(t *testing.T) {
	thresholds := defaultThresholds()
	cases := map[float64]Signal{
		82: StrongBuy,
		80: StrongBuy,
		79: Buy,
		60: Buy,
		45: Neutral,
		25: Sell,
		15: StrongSell,
	}
	for total, expected := range cases {
		if got := Classify(total, thresholds); got != expected {
			t.Fatalf("score %.0f: expected %s, got %s", total, expected, got)
		}
	}
}

func TestTrendScoreOrderings(t *testing.T) {
	cases := []struct {
		ema5, ema13, ema144 float64
		want                float64
	}{
		{3, 2, 1, 100}, // strictly bullish
		{1, 2, 3, 0},   // strictly bearish
		{2, 2, 2, 50},  // flat
		{3, 2, 4, 75},  // short above, medium below long
		{1, 2, 1.5, 25},
	}
	for _, tc := range cases {
		snap := indicator.Snapshot{EMA5: tc.ema5, EMA13: tc.ema13, EMA144: tc.ema144}
		if got := trendScore(snap); got != tc.want {
			t.Fatalf("ema %v/%v/%v: expected %.0f, got %.0f", tc.ema5, tc.ema13, tc.ema144, tc.want, got)
		}
	}
}

func TestMomentumScore(t *testing.T) {
	cases := map[float64]float64{
		75: 100,
		25: 0,
		50: 50,
		60: 60,
		40: 40,
	}
	for rsi, expected := range cases {
		if got := momentumScore(rsi); got != expected {
			t.Fatalf("rsi %.0f: expected %.0f, got %.0f", rsi, expected, got)
		}
	}
}

func TestVolatilityScoreCapped(t *testing.T) {
	wide := indicator.Bands{Upper: 300, Middle: 100, Lower: 50}
	if got := volatilityScore(wide); got != 100 {
		t.Fatalf("expected cap at 100, got %.2f", got)
	}
	narrow := indicator.Bands{Upper: 105, Middle: 100, Lower: 95}
	if got := volatilityScore(narrow); got != 10 {
		t.Fatalf("expected width score 10, got %.2f", got)
	}
}

func TestVolumeAndSupportScores(t *testing.T) {
	if got := volumeScore(150, 100); got != 100 {
		t.Fatalf("expected 100 above average, got %.2f", got)
	}
	if got := volumeScore(50, 100); got != 50 {
		t.Fatalf("expected ratio score 50, got %.2f", got)
	}

	bands := indicator.Bands{Upper: 110, Lower: 90}
	if got := supportScore(120, bands); got != 100 {
		t.Fatalf("expected 100 above upper band, got %.2f", got)
	}
	if got := supportScore(80, bands); got != 0 {
		t.Fatalf("expected 0 below lower band, got %.2f", got)
	}
	if got := supportScore(100, bands); got != 50 {
		t.Fatalf("expected midpoint score 50, got %.2f", got)
	}
}

func TestCalculateWeightedTotal(t *testing.T) {
	weights := config.Weights{Trend: 0.3, Momentum: 0.2, Volatility: 0.2, Volume: 0.15, Support: 0.15}
	snap := indicator.Snapshot{
		EMA5: 3, EMA13: 2, EMA144: 1, // trend 100
		RSI:       75,                                          // momentum 100
		Bollinger: indicator.Bands{Upper: 120, Middle: 100, Lower: 80}, // volatility 40, support below
		VolumeSMA: 100,
	}
	k := candle.Candle{Close: 120, Volume: 200} // volume 100, support 100
	scores := Calculate(k, snap, weights)

	want := 100*0.3 + 100*0.2 + 40*0.2 + 100*0.15 + 100*0.15
	if scores.Total != want {
		t.Fatalf("expected total %.2f, got %.2f", want, scores.Total)
	}
}

func TestRiskLevelBands(t *testing.T) {
	if got := RiskLevel(Scores{Volatility: 81}); got != RiskHigh {
		t.Fatalf("expected HIGH, got %s", got)
	}
	if got := RiskLevel(Scores{Volatility: 51}); got != RiskMedium {
		t.Fatalf("expected MEDIUM, got %s", got)
	}
	if got := RiskLevel(Scores{Volatility: 50}); got != RiskLow {
		t.Fatalf("expected LOW, got %s", got)
	}
}

func TestShouldEmitGatesOnSignalChange(t *testing.T) {
	engine := NewEngine(config.Weights{}, defaultThresholds())
	now := time.Now()

	if !engine.ShouldEmit("BTCUSDT", Buy, now) {
		t.Fatalf("first signal must emit")
	}
	if engine.ShouldEmit("BTCUSDT", Buy, now.Add(time.Hour)) {
		t.Fatalf("unchanged signal must not emit")
	}
	if !engine.ShouldEmit("BTCUSDT", Sell, now.Add(2*time.Hour)) {
		t.Fatalf("changed signal must emit")
	}
	if !engine.ShouldEmit("BTCUSDT", Buy, now.Add(3*time.Hour)) {
		t.Fatalf("flip back must emit again")
	}
	// Other symbols gate independently.
	if !engine.ShouldEmit("ETHUSDT", Buy, now) {
		t.Fatalf("first signal for another symbol must emit")
	}
}

func TestDegradedReport(t *testing.T) {
	k := candle.Candle{Close: 42, CloseTime: 1700003599999}
	report := DegradedReport("BTCUSDT", k, "insufficient history")
	if !report.Degraded() {
		t.Fatalf("expected degraded report")
	}
	if report.Scores.Total != 0 || report.Signal != "" {
		t.Fatalf("degraded report must carry no scores: %+v", report)
	}
	if report.Price.Current != 42 {
		t.Fatalf("expected price snapshot preserved")
	}
}

func TestEvaluateProducesRecommendation(t *testing.T) {
	engine := NewEngine(config.Weights{Trend: 1}, defaultThresholds())
	snap := indicator.Snapshot{EMA5: 3, EMA13: 2, EMA144: 1}
	report := engine.Evaluate("BTCUSDT", candle.Candle{Close: 10, CloseTime: 1700003599999}, snap)

	if report.Signal != StrongBuy {
		t.Fatalf("expected STRONG_BUY from pure trend weight, got %s", report.Signal)
	}
	if report.Recommendation.Action != "open long" {
		t.Fatalf("unexpected recommendation: %+v", report.Recommendation)
	}
	found := false
	for _, reason := range report.Recommendation.Reasons {
		if reason == "strong uptrend" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected strong uptrend reason, got %v", report.Recommendation.Reasons)
	}
}
