package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Augly/crypto-monitor/internal/candle"
)

// FileKV persists one JSON file per (symbol, interval) key under a data
// directory. Writes go through a temp file and rename so readers never see
// a partially written series.
type FileKV struct {
	dir string
}

func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(symbol, interval string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s_%s.json", symbol, interval))
}

func (f *FileKV) Read(_ context.Context, symbol, interval string) ([]candle.Candle, error) {
	data, err := os.ReadFile(f.path(symbol, interval))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var series []candle.Candle
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	return series, nil
}

func (f *FileKV) Write(_ context.Context, symbol, interval string, series []candle.Candle) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}
	path := f.path(symbol, interval)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileKV) Exists(_ context.Context, symbol, interval string) (bool, error) {
	_, err := os.Stat(f.path(symbol, interval))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
