package indicator

import (
	"math"
	"testing"

	"github.com/Augly/crypto-monitor/internal/candle"
)

func syntheticSeries(n int, step float64) []candle.Candle {
	series := make([]candle.Candle, n)
	price := 100.0
	for i := range series {
		price += step
		series[i] = candle.Candle{
			OpenTime: int64(i) * 3600000,
			Open:     price - step,
			High:     price + 0.5,
			Low:      price - step - 0.5,
			Close:    price,
			Volume:   1000 + float64(i%10)*50,
		}
	}
	return series
}

func TestComputeRejectsShortSeries(t *testing.T) {
	_, err := Compute(syntheticSeries(MinHistory-1, 0.1))
	if err != ErrInsufficientHistory {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestComputeRisingSeries(t *testing.T) {
	snap, err := Compute(syntheticSeries(250, 0.5))
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if snap.Price != 225 {
		t.Fatalf("unexpected latest price %.2f", snap.Price)
	}
	// Short averages track a rising series more closely than long ones.
	if !(snap.EMA5 > snap.EMA13 && snap.EMA13 > snap.EMA144) {
		t.Fatalf("expected bullish EMA ordering, got %.2f/%.2f/%.2f", snap.EMA5, snap.EMA13, snap.EMA144)
	}
	if snap.RSI < 90 {
		t.Fatalf("expected saturated RSI on a monotonic rise, got %.2f", snap.RSI)
	}
	if !(snap.Bollinger.Upper > snap.Bollinger.Middle && snap.Bollinger.Middle > snap.Bollinger.Lower) {
		t.Fatalf("expected ordered bands: %+v", snap.Bollinger)
	}
	if snap.SMA51 <= snap.SMA200 {
		t.Fatalf("expected SMA51 above SMA200 on a rising series")
	}
	if snap.ATR <= 0 {
		t.Fatalf("expected positive ATR, got %.4f", snap.ATR)
	}
	for _, v := range []float64{snap.MACD.Line, snap.Stochastic.K, snap.ADX, snap.MFI, snap.OBV} {
		if math.IsNaN(v) {
			t.Fatalf("snapshot contains NaN: %+v", snap)
		}
	}
}

func TestIchimokuMidpoints(t *testing.T) {
	highs := make([]float64, 60)
	lows := make([]float64, 60)
	for i := range highs {
		highs[i] = 10 + float64(i)
		lows[i] = 8 + float64(i)
	}
	cloud := ichimoku(highs, lows, 9, 26, 52)

	// Conversion window covers the last 9 entries: highs 61..69, lows 59..67.
	if cloud.Conversion != 64 {
		t.Fatalf("unexpected conversion %.2f", cloud.Conversion)
	}
	if cloud.Base >= cloud.Conversion {
		t.Fatalf("expected base below conversion on a rising series")
	}
	if cloud.SpanA != (cloud.Conversion+cloud.Base)/2 {
		t.Fatalf("spanA mismatch: %+v", cloud)
	}
}
