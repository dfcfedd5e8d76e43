// Package cache keeps raw scorelog bodies in Redis so repeated selections
// of the same source skip the backend.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talgya/scorelog-viewer/internal/loader"
)

// DefaultTTL applies when the configured TTL is zero.
const DefaultTTL = 10 * time.Minute

// KeyPrefix namespaces cached bodies.
const KeyPrefix = "scorelog:raw:"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Key returns the cache key for a source.
func Key(sourceID string) string {
	return KeyPrefix + sourceID
}

// Fetcher is a read-through cache in front of another Fetcher. Redis
// errors are logged and fall through to the backend; failed backend
// fetches are never cached.
type Fetcher struct {
	next   loader.Fetcher
	client Client
	ttl    time.Duration
}

// NewFetcher wraps next with the cache.
func NewFetcher(next loader.Fetcher, client Client, ttl time.Duration) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Fetcher{next: next, client: client, ttl: ttl}
}

// Fetch returns the cached body or fetches and stores it.
func (f *Fetcher) Fetch(ctx context.Context, sourceID string) ([]byte, error) {
	key := Key(sourceID)

	body, err := f.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		slog.Debug("scorelog cache hit", "source", sourceID)
		return body, nil
	case !errors.Is(err, redis.Nil):
		slog.Warn("scorelog cache read failed", "source", sourceID, "error", err)
	}

	body, err = f.next.Fetch(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if err := f.client.Set(ctx, key, body, f.ttl).Err(); err != nil {
		slog.Warn("scorelog cache write failed", "source", sourceID, "error", err)
	}
	return body, nil
}
