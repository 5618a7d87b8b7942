// Package store owns candle series persistence: the merge contract that
// keeps every series deduplicated and time-ordered, and the key-value
// backends the series are written through.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Augly/crypto-monitor/internal/candle"
)

// KV is the persistence contract: an ordered candle array per
// (symbol, interval) key with whole-value reads and atomic whole-value
// writes. Read returns (nil, nil) when the key does not exist.
type KV interface {
	Read(ctx context.Context, symbol, interval string) ([]candle.Candle, error)
	Write(ctx context.Context, symbol, interval string, series []candle.Candle) error
	Exists(ctx context.Context, symbol, interval string) (bool, error)
}

// Store is the single point through which any candle, streamed or
// backfilled, is committed to a series. Writes to one key are serialized;
// merges to different keys proceed concurrently.
type Store struct {
	kv    KV
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(kv KV) *Store {
	return &Store{kv: kv, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) keyLock(symbol, interval string) *sync.Mutex {
	key := symbol + ":" + interval
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// Merge combines incoming candles with the persisted series, deduplicating
// by open time (incoming wins), sorting ascending, and persisting the whole
// result. The merged series is returned. Incoming may be unsorted, contain
// duplicates, or overlap entirely with existing data.
func (s *Store) Merge(ctx context.Context, symbol, interval string, incoming []candle.Candle) ([]candle.Candle, error) {
	lock := s.keyLock(symbol, interval)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.kv.Read(ctx, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("read series %s %s: %w", symbol, interval, err)
	}
	merged := candle.Merge(existing, incoming)
	if err := s.kv.Write(ctx, symbol, interval, merged); err != nil {
		return nil, fmt.Errorf("write series %s %s: %w", symbol, interval, err)
	}
	return merged, nil
}

// Load returns the persisted series for a key, or nil when none exists.
func (s *Store) Load(ctx context.Context, symbol, interval string) ([]candle.Candle, error) {
	lock := s.keyLock(symbol, interval)
	lock.Lock()
	defer lock.Unlock()
	series, err := s.kv.Read(ctx, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("read series %s %s: %w", symbol, interval, err)
	}
	return series, nil
}

// LastKnownTime returns the most recent open time present for a key. The
// second return value is false when no data exists.
func (s *Store) LastKnownTime(ctx context.Context, symbol, interval string) (int64, bool, error) {
	series, err := s.Load(ctx, symbol, interval)
	if err != nil {
		return 0, false, err
	}
	if len(series) == 0 {
		return 0, false, nil
	}
	return series[len(series)-1].OpenTime, true, nil
}

// Exists reports whether any data is persisted for a key.
func (s *Store) Exists(ctx context.Context, symbol, interval string) (bool, error) {
	return s.kv.Exists(ctx, symbol, interval)
}
