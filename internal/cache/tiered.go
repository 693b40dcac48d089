package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// TieredCacheConfig holds the TTLs for both tiers.
type TieredCacheConfig struct {
	// L1TTL is the in-process tier lifetime.
	L1TTL time.Duration `json:"l1_ttl" yaml:"l1_ttl"`
	// L1CleanupInterval drives the in-process janitor.
	L1CleanupInterval time.Duration `json:"l1_cleanup_interval" yaml:"l1_cleanup_interval"`
	// L2TTL is the durable tier lifetime.
	L2TTL time.Duration `json:"l2_ttl" yaml:"l2_ttl"`
}

// DefaultTieredCacheConfig returns the grounding service defaults:
// one hour in process, seven days durable.
func DefaultTieredCacheConfig() TieredCacheConfig {
	return TieredCacheConfig{
		L1TTL:             time.Hour,
		L1CleanupInterval: 5 * time.Minute,
		L2TTL:             7 * 24 * time.Hour,
	}
}

// TieredCache layers the in-process tier over an optional redis tier.
// With a nil redis tier the cache works correctly, only slower across
// process restarts. Values round-trip through JSON.
type TieredCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	config  TieredCacheConfig
	metrics *Metrics
	log     *logrus.Logger
}

// NewTieredCache builds the two-tier cache. l2 may be nil.
func NewTieredCache(l2 *RedisCache, config TieredCacheConfig, log *logrus.Logger) *TieredCache {
	if log == nil {
		log = logrus.New()
	}
	def := DefaultTieredCacheConfig()
	if config.L1TTL <= 0 {
		config.L1TTL = def.L1TTL
	}
	if config.L1CleanupInterval <= 0 {
		config.L1CleanupInterval = def.L1CleanupInterval
	}
	if config.L2TTL <= 0 {
		config.L2TTL = def.L2TTL
	}

	return &TieredCache{
		l1:      NewMemoryCache(config.L1CleanupInterval),
		l2:      l2,
		config:  config,
		metrics: &Metrics{},
		log:     log,
	}
}

// Get unmarshals the cached value for key into dest. An L2 hit is
// promoted back into L1. Returns false on a miss in both tiers.
func (t *TieredCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if data, ok := t.l1.Get(key); ok {
		t.metrics.l1Hit()
		return true, json.Unmarshal(data, dest)
	}
	t.metrics.l1Miss()

	if t.l2 == nil {
		return false, nil
	}

	data, ok, err := t.l2.Get(ctx, key)
	if err != nil {
		t.metrics.l2Error()
		t.log.WithError(err).Debug("tier-2 cache read failed")
		return false, nil
	}
	if !ok {
		t.metrics.l2Miss()
		return false, nil
	}

	t.metrics.l2Hit()
	t.l1.Set(key, data, t.config.L1TTL)
	return true, json.Unmarshal(data, dest)
}

// Set stores value in both tiers. A tier-2 write failure is logged and
// swallowed; the in-process tier alone keeps the cache functional.
func (t *TieredCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	t.l1.Set(key, data, t.config.L1TTL)
	t.metrics.set()

	if t.l2 != nil {
		if err := t.l2.Set(ctx, key, data, t.config.L2TTL); err != nil {
			t.metrics.l2Error()
			t.log.WithError(err).Debug("tier-2 cache write failed")
		}
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (t *TieredCache) Stats() MetricsSnapshot {
	return t.metrics.snapshot()
}

// Close stops the janitor and closes the redis tier if present.
func (t *TieredCache) Close() error {
	t.l1.Close()
	if t.l2 != nil {
		return t.l2.Close()
	}
	return nil
}
