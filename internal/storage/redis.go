package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

const latestResultsKey = "rulecrawl:results:latest"

// RedisResultStore keeps the latest results in Redis as a JSON document
// that expires after a TTL.
type RedisResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResultStore connects to Redis. A ttl of 0 keeps results until
// they are replaced.
func NewRedisResultStore(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisResultStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis: %w", err)
	}
	return &RedisResultStore{client: client, ttl: ttl}, nil
}

// Ping checks the Redis connection.
func (s *RedisResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisResultStore) Replace(ctx context.Context, results []*scrape.PageResult) error {
	if results == nil {
		results = []*scrape.PageResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := s.client.Set(ctx, latestResultsKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store results: %w", err)
	}
	return nil
}

func (s *RedisResultStore) Latest(ctx context.Context) ([]*scrape.PageResult, error) {
	data, err := s.client.Get(ctx, latestResultsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*scrape.PageResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	var results []*scrape.PageResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return results, nil
}

func (s *RedisResultStore) Close() error {
	return s.client.Close()
}
