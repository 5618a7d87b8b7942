package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Augly/crypto-monitor/internal/candle"
)

// RedisKV persists each series as a JSON blob under klines:<symbol>:<interval>.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(addr, password string, db int) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisKV{client: client}, nil
}

func key(symbol, interval string) string {
	return fmt.Sprintf("klines:%s:%s", symbol, interval)
}

func (r *RedisKV) Read(ctx context.Context, symbol, interval string) ([]candle.Candle, error) {
	data, err := r.client.Get(ctx, key(symbol, interval)).Bytes()
	if errors.Is(err, redis.Nil) {
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

func (r *RedisKV) Write(ctx context.Context, symbol, interval string, series []candle.Candle) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}
	return r.client.Set(ctx, key(symbol, interval), data, 0).Err()
}

func (r *RedisKV) Exists(ctx context.Context, symbol, interval string) (bool, error) {
	n, err := r.client.Exists(ctx, key(symbol, interval)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
