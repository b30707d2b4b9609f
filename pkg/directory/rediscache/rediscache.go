// Package rediscache wraps a directory with a Redis read-through cache.
// Redis failures never fail a lookup: the wrapped directory is queried
// instead and the failure is logged.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/directory"
)

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 10 * time.Minute

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// TTL bounds how long cached entries live.
	TTL time.Duration

	// Prefix namespaces the cache keys (default "anreicher").
	Prefix string
}

// Cache is a directory.Directory that caches lookups of another directory.
type Cache struct {
	rdb    *goredis.Client
	next   directory.Directory
	ttl    time.Duration
	prefix string
}

// Ensure Cache implements directory.Directory at compile time.
var _ directory.Directory = (*Cache)(nil)

// New connects to Redis and returns a cache in front of next.
func New(ctx context.Context, cfg Config, next directory.Directory) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewWithClient(rdb, cfg, next), nil
}

// NewWithClient builds a cache on an existing client without checking
// connectivity.
func NewWithClient(rdb *goredis.Client, cfg Config, next directory.Directory) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "anreicher"
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl, prefix: prefix}
}

// FindEventByName serves the event from Redis when cached, otherwise from
// the wrapped directory. Absent events are not cached.
func (c *Cache) FindEventByName(ctx context.Context, name string) (*api.Event, error) {
	key := c.eventKey(name)

	var cached api.Event
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	e, err := c.next.FindEventByName(ctx, name)
	if err != nil || e == nil {
		return e, err
	}
	c.set(ctx, key, e)
	return e, nil
}

// FindUsersByTopics serves users from Redis when the same topic set was
// looked up before, otherwise from the wrapped directory.
func (c *Cache) FindUsersByTopics(ctx context.Context, topics []string) ([]api.User, error) {
	wanted := directory.NormalizeTopics(topics)
	if len(wanted) == 0 {
		return nil, nil
	}
	key := c.prefix + ":users:" + strings.Join(wanted, ",")

	var cached []api.User
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	users, err := c.next.FindUsersByTopics(ctx, wanted)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, users)
	return users, nil
}

// HealthCheck pings Redis.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis client. The wrapped directory is left open.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

func (c *Cache) eventKey(name string) string {
	return c.prefix + ":event:" + strings.ToLower(strings.TrimSpace(name))
}

func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		debug.Log("directory", "cache miss", "key", key)
		return false
	}
	if err != nil {
		slog.Warn("redis cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("redis cache entry corrupt", "key", key, "error", err)
		return false
	}
	debug.Log("directory", "cache hit", "key", key)
	return true
}

func (c *Cache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("redis cache write failed", "key", key, "error", err)
	}
}
