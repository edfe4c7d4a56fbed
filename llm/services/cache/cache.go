package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nid-27/regnex/internal/config"
	"github.com/nid-27/regnex/internal/metrics"
)

const keyPrefix = "regnex:answer:"

// AnswerCache stores final team answers in redis keyed by the normalized query
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache from configuration
func New(cfg config.CacheConfig) *AnswerCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return NewWithClient(rdb, time.Duration(cfg.TTLSeconds)*time.Second)
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AnswerCache{client: client, ttl: ttl}
}

// Key returns the redis key for a query. Case and whitespace differences
// map to the same key.
func Key(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Ping tests the redis connection
func (c *AnswerCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Get returns the cached answer for query and whether it was found
func (c *AnswerCache) Get(ctx context.Context, query string) (string, bool, error) {
	val, err := c.client.Get(ctx, Key(query)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return "", false, nil
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return "", false, fmt.Errorf("cache get failed: %w", err)
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return val, true, nil
}

// Set stores answer for query with the configured TTL
func (c *AnswerCache) Set(ctx context.Context, query, answer string) error {
	if err := c.client.Set(ctx, Key(query), answer, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Flush removes every cached answer and returns how many were deleted
func (c *AnswerCache) Flush(ctx context.Context) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("cache scan failed: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache flush failed: %w", err)
	}
	return int(n), nil
}

// TTL returns the expiry applied to new entries
func (c *AnswerCache) TTL() time.Duration {
	return c.ttl
}

// Close closes the redis connection
func (c *AnswerCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
