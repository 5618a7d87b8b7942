// Package candle defines the OHLCV domain types shared between ingestion,
// storage, and analysis layers.
package candle

import "sort"

// Candle is one fixed-interval OHLCV observation. A candle is immutable once
// the originating interval has closed; open (partial) candles never reach
// the store or the scorer.
type Candle struct {
	OpenTime    int64   `json:"openTime"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	CloseTime   int64   `json:"closeTime"`
	QuoteVolume float64 `json:"quoteVolume"`
	Trades      int64   `json:"trades"`
}

// Merge combines an existing series with incoming candles into one series
// with strictly increasing, unique open times. On duplicate OpenTime the
// incoming candle wins over the existing one, and within incoming the later
// entry wins. Neither input needs to be sorted or free of duplicates.
func Merge(existing, incoming []Candle) []Candle {
	byTime := make(map[int64]Candle, len(existing)+len(incoming))
	for _, c := range existing {
		byTime[c.OpenTime] = c
	}
	for _, c := range incoming {
		byTime[c.OpenTime] = c
	}
	out := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out
}

// Normalize deduplicates and sorts a single batch in place of Merge(nil, batch).
func Normalize(batch []Candle) []Candle {
	return Merge(nil, batch)
}
