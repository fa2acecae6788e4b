// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// FireGuard drops duplicate scheduled fires. Claim reports true only for
// the first caller of a key within ttl.
type FireGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryGuard guards fires within one process.
type MemoryGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{expires: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, exp := range g.expires {
		if !now.Before(exp) {
			delete(g.expires, k)
		}
	}
	if _, held := g.expires[key]; held {
		return false, nil
	}
	g.expires[key] = now.Add(ttl)
	return true, nil
}

// RedisGuard guards fires across every instance sharing one Redis.
type RedisGuard struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedisGuard connects to addr and verifies the connection.
func NewRedisGuard(ctx context.Context, addr string) (*RedisGuard, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisGuard{rdb: rdb, prefix: "circle-sketch:fire:"}, nil
}

func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}
