package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"automation/pkg/logger"
)

const (
	keyWorkflows = "automation:workflows"
	keyAnalytics = "automation:analytics"

	// fillTimeout bounds a shared fill, which outlives any single caller's context.
	fillTimeout = 30 * time.Second
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automation_workflow_cache_lookups_total",
	Help: "Workflow cache lookups by key and outcome",
}, []string{"key", "outcome"})

// CachedStore is a read-through Redis cache in front of another Store.
// Redis failures are logged and fall through to the backing store.
type CachedStore struct {
	next  Store
	redis *redis.Client
	ttl   time.Duration
	log   logger.Sugared
	group singleflight.Group
}

// WithCache wraps next; a nil client or non-positive ttl returns next unchanged.
func WithCache(next Store, cli *redis.Client, ttl time.Duration, log logger.Sugared) Store {
	if cli == nil || ttl <= 0 {
		return next
	}
	return &CachedStore{next: next, redis: cli, ttl: ttl, log: logger.Named(log, "cache")}
}

func (c *CachedStore) FindAll(ctx context.Context) ([]Workflow, error) {
	var out []Workflow
	err := c.load(ctx, keyWorkflows, &out, func(ctx context.Context) (any, error) {
		return c.next.FindAll(ctx)
	})
	return out, err
}

func (c *CachedStore) Analytics(ctx context.Context) (Analytics, error) {
	var out Analytics
	err := c.load(ctx, keyAnalytics, &out, func(ctx context.Context) (any, error) {
		return c.next.Analytics(ctx)
	})
	return out, err
}

// Invalidate drops both cached entries.
func (c *CachedStore) Invalidate(ctx context.Context) error {
	return c.redis.Del(ctx, keyWorkflows, keyAnalytics).Err()
}

func (c *CachedStore) load(ctx context.Context, key string, dst any, fetch func(context.Context) (any, error)) error {
	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jerr := json.Unmarshal(raw, dst); jerr == nil {
			cacheLookups.WithLabelValues(key, "hit").Inc()
			return nil
		}
		c.log.Warnw("discarding corrupt cache entry", "key", key)
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warnw("redis get failed", "key", key, "err", err)
	}
	cacheLookups.WithLabelValues(key, "miss").Inc()

	b, err, _ := c.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if serr := c.redis.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.log.Warnw("redis set failed", "key", key, "err", serr)
		}
		return b, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(b.([]byte), dst)
}
