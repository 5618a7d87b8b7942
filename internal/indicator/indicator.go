// Package indicator computes the technical snapshot the scorer consumes.
// The formulas themselves come from the TA-Lib port; this package only
// aligns them over a candle series and exposes their latest values.
package indicator

import (
	"errors"

	talib "github.com/markcheno/go-talib"

	"github.com/Augly/crypto-monitor/internal/candle"
)

// MinHistory is the fewest closed candles required before a snapshot is
// meaningful. Shorter series yield ErrInsufficientHistory.
const MinHistory = 100

// ErrInsufficientHistory marks a series too short to analyze.
var ErrInsufficientHistory = errors.New("insufficient candle history")

// MACD is the latest moving average convergence/divergence triple.
type MACD struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Bands is the latest Bollinger band triple.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Stochastic is the latest slow stochastic pair.
type Stochastic struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// Cloud is the latest Ichimoku cloud values.
type Cloud struct {
	Conversion float64 `json:"conversion"`
	Base       float64 `json:"base"`
	SpanA      float64 `json:"spanA"`
	SpanB      float64 `json:"spanB"`
}

// Snapshot carries the current value of every indicator over a series.
// It is a plain value: computed once per candle close and passed around.
type Snapshot struct {
	Price      float64    `json:"price"`
	EMA5       float64    `json:"ema5"`
	EMA13      float64    `json:"ema13"`
	EMA144     float64    `json:"ema144"`
	SMA51      float64    `json:"sma51"`
	SMA99      float64    `json:"sma99"`
	SMA144     float64    `json:"sma144"`
	SMA200     float64    `json:"sma200"`
	VolumeSMA  float64    `json:"volumeSMA"`
	RSI        float64    `json:"rsi"`
	MACD       MACD       `json:"macd"`
	Bollinger  Bands      `json:"bollingerBands"`
	ATR        float64    `json:"atr"`
	OBV        float64    `json:"obv"`
	Stochastic Stochastic `json:"stochastic"`
	Ichimoku   Cloud      `json:"ichimokuCloud"`
	ADX        float64    `json:"adx"`
	MFI        float64    `json:"mfi"`
}

// Compute derives the full snapshot from a closed-candle series.
func Compute(series []candle.Candle) (Snapshot, error) {
	if len(series) < MinHistory {
		return Snapshot{}, ErrInsufficientHistory
	}

	closes := make([]float64, len(series))
	highs := make([]float64, len(series))
	lows := make([]float64, len(series))
	volumes := make([]float64, len(series))
	for i, c := range series {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	macdLine, macdSignal, macdHist := talib.Macd(closes, 12, 26, 9)
	bbUpper, bbMiddle, bbLower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	stochK, stochD := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)

	snap := Snapshot{
		Price:     last(closes),
		EMA5:      last(talib.Ema(closes, 5)),
		EMA13:     last(talib.Ema(closes, 13)),
		EMA144:    last(talib.Ema(closes, 144)),
		SMA51:     last(talib.Sma(closes, 51)),
		SMA99:     last(talib.Sma(closes, 99)),
		SMA144:    last(talib.Sma(closes, 144)),
		SMA200:    last(talib.Sma(closes, 200)),
		VolumeSMA: last(talib.Sma(volumes, 20)),
		RSI:       last(talib.Rsi(closes, 14)),
		MACD: MACD{
			Line:      last(macdLine),
			Signal:    last(macdSignal),
			Histogram: last(macdHist),
		},
		Bollinger: Bands{
			Upper:  last(bbUpper),
			Middle: last(bbMiddle),
			Lower:  last(bbLower),
		},
		ATR: last(talib.Atr(highs, lows, closes, 14)),
		OBV: last(talib.Obv(closes, volumes)),
		Stochastic: Stochastic{
			K: last(stochK),
			D: last(stochD),
		},
		Ichimoku: ichimoku(highs, lows, 9, 26, 52),
		ADX:      last(talib.Adx(highs, lows, closes, 14)),
		MFI:      last(talib.Mfi(highs, lows, closes, volumes, 14)),
	}
	return snap, nil
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// ichimoku computes the latest cloud values. TA-Lib has no Ichimoku, so the
// midpoints are derived directly from the high/low extremes of each window.
func ichimoku(highs, lows []float64, conversionPeriod, basePeriod, spanPeriod int) Cloud {
	conversion := midpoint(highs, lows, conversionPeriod)
	base := midpoint(highs, lows, basePeriod)
	return Cloud{
		Conversion: conversion,
		Base:       base,
		SpanA:      (conversion + base) / 2,
		SpanB:      midpoint(highs, lows, spanPeriod),
	}
}

func midpoint(highs, lows []float64, period int) float64 {
	start := len(highs) - period
	if start < 0 {
		start = 0
	}
	hi := highs[start]
	lo := lows[start]
	for i := start + 1; i < len(highs); i++ {
		if highs[i] > hi {
			hi = highs[i]
		}
		if lows[i] < lo {
			lo = lows[i]
		}
	}
	return (hi + lo) / 2
}
