package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"hotel-panel/utils"
)

// FileCache treats an existing file as a cache hit.
type FileCache struct{}

// Restore reports whether path exists.
func (FileCache) Restore(_ context.Context, _ string, path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("cache: stat %q: %w", path, err)
}

// Store is a no-op: the file on disk is the cache.
func (FileCache) Store(context.Context, string, string) error { return nil }

// RedisCache mirrors raw CSV files into Redis so another machine can hydrate
// its raw directory without downloading. Local files still win.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *utils.Logger
}

// NewRedisCache connects to addr and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, addr, password string, ttl time.Duration, logger *utils.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, ttl: ttl, prefix: "hotel-panel:raw:", logger: logger}, nil
}

func (c *RedisCache) key(name string) string {
	return c.prefix + name
}

// Restore returns true when path exists, or when Redis holds the table and it
// was written to path.
func (c *RedisCache) Restore(ctx context.Context, name, path string) (bool, error) {
	if ok, err := (FileCache{}).Restore(ctx, name, path); ok || err != nil {
		return ok, err
	}

	data, err := c.client.Get(ctx, c.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("cache: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("cache: write %q: %w", path, err)
	}
	if c.logger != nil {
		c.logger.Info("[cache] Restored %s from redis → %s (%d bytes)", name, path, len(data))
	}
	return true, nil
}

// Store copies the file at path into Redis under name.
func (c *RedisCache) Store(ctx context.Context, name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cache: read %q: %w", path, err)
	}
	if err := c.client.Set(ctx, c.key(name), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", name, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
