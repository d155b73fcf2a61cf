package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mapgrid/tileservice/internal/observability"
)

// Redis is an L2 cache tier: a shared, network-reachable store that
// sits behind a Memory or SQLite L1 in a RedisBacked (spec.md domain
// enrichment — sharing warm tiles across service replicas, which a
// purely local cache cannot do). It is not registered as a top-level
// Cache on its own, since spec.md treats the cache as a single tier
// per Service; RedisBacked composes it with an L1.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(addr string, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("cache: redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     32,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) put(ctx context.Context, key string, blob []byte) error {
	return r.rdb.Set(ctx, key, blob, r.ttl).Err()
}

// RedisBacked composes a local L1 (Memory or SQLite) with a shared L2
// Redis tier: reads check L1 first, fall through to L2 on miss and
// backfill L1; writes go to both tiers.
type RedisBacked struct {
	l1    Cache
	l2    *Redis
	ctx   context.Context
}

func NewRedisBacked(l1 Cache, l2 *Redis) *RedisBacked {
	return &RedisBacked{l1: l1, l2: l2, ctx: context.Background()}
}

const tilePrefix = "tileservice:tile:"
const poolPrefix = "tileservice:pool:"

func (c *RedisBacked) GetTileLayerBlob(key MapTileKey) ([]byte, bool, error) {
	if v, ok, err := c.l1.GetTileLayerBlob(key); err != nil {
		return nil, false, err
	} else if ok {
		return v, true, nil
	}
	v, ok, err := c.l2.get(c.ctx, tilePrefix+key.String())
	if err != nil {
		return nil, false, err
	}
	if ok {
		observability.CacheHit("redis")
		_ = c.l1.PutTileLayerBlob(key, v)
		return v, true, nil
	}
	observability.CacheMiss("redis")
	return nil, false, nil
}

func (c *RedisBacked) PutTileLayerBlob(key MapTileKey, blob []byte) error {
	if err := c.l1.PutTileLayerBlob(key, blob); err != nil {
		return err
	}
	return c.l2.put(c.ctx, tilePrefix+key.String(), blob)
}

func (c *RedisBacked) GetStringPoolBlob(nodeID string) ([]byte, bool, error) {
	if v, ok, err := c.l1.GetStringPoolBlob(nodeID); err != nil {
		return nil, false, err
	} else if ok {
		return v, true, nil
	}
	v, ok, err := c.l2.get(c.ctx, poolPrefix+nodeID)
	if err != nil {
		return nil, false, err
	}
	if ok {
		_ = c.l1.PutStringPoolBlob(nodeID, v)
		return v, true, nil
	}
	return nil, false, nil
}

func (c *RedisBacked) PutStringPoolBlob(nodeID string, blob []byte) error {
	if err := c.l1.PutStringPoolBlob(nodeID, blob); err != nil {
		return err
	}
	return c.l2.put(c.ctx, poolPrefix+nodeID, blob)
}

func (c *RedisBacked) ForEachTileLayerBlob(fn func(key MapTileKey, blob []byte) bool) error {
	return c.l1.ForEachTileLayerBlob(fn)
}

func (c *RedisBacked) Evict(key MapTileKey) error {
	if err := c.l1.Evict(key); err != nil {
		return err
	}
	return c.l2.rdb.Del(c.ctx, tilePrefix+key.String()).Err()
}

func (c *RedisBacked) Stats() Stats { return c.l1.Stats() }
