package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"crewlink/ingestion-service/internal/model"
)

// SnapshotCache memoises the fully processed candidate set. Granularity is
// whole-result: Set overwrites the previous snapshot and Get either returns
// all of it or misses — callers never see a partially-stale merge.
type SnapshotCache interface {
	Get(ctx context.Context) ([]model.ExternalJob, bool)
	Set(ctx context.Context, jobs []model.ExternalJob)
}

// MemoryCache is the single-instance snapshot cache: one guarded slot with
// a fixed TTL from write time.
type MemoryCache struct {
	mu        sync.Mutex
	data      []model.ExternalJob
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewMemoryCache returns an empty cache whose entries expire ttl after Set.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

// Get returns the cached snapshot, or a miss when empty or past its TTL.
func (c *MemoryCache) Get(_ context.Context) ([]model.ExternalJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil || c.now().Sub(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return c.data, true
}

// Set replaces the snapshot wholesale and restarts the TTL window.
func (c *MemoryCache) Set(_ context.Context, jobs []model.ExternalJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = jobs
	c.fetchedAt = c.now()
}

const redisSnapshotKey = "ingestion:external_jobs_snapshot"

// RedisCache shares one snapshot across service instances under a single
// TTL'd key, so scaled-out deployments serve a coherent candidate set.
// Cache failures degrade to a miss — never to an error for the caller.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

// NewRedisCache wraps rdb as a snapshot cache with the given TTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

// Get returns the shared snapshot, treating any read or decode failure as
// a miss.
func (c *RedisCache) Get(ctx context.Context) ([]model.ExternalJob, bool) {
	raw, err := c.rdb.Get(ctx, redisSnapshotKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warnw("cache read failed", "err", err)
		}
		return nil, false
	}

	var jobs []model.ExternalJob
	if err := json.Unmarshal(raw, &jobs); err != nil {
		c.log.Warnw("cache snapshot corrupt, discarding", "err", err)
		return nil, false
	}
	return jobs, true
}

// Set replaces the shared snapshot. Write failures are logged, not raised:
// the cache is an optimisation, never a data dependency.
func (c *RedisCache) Set(ctx context.Context, jobs []model.ExternalJob) {
	raw, err := json.Marshal(jobs)
	if err != nil {
		c.log.Warnw("cache snapshot marshal failed", "err", err)
		return
	}
	if err := c.rdb.Set(ctx, redisSnapshotKey, raw, c.ttl).Err(); err != nil {
		c.log.Warnw("cache write failed", "err", err)
	}
}

var (
	_ SnapshotCache = (*MemoryCache)(nil)
	_ SnapshotCache = (*RedisCache)(nil)
)
