package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront-api/internal/metrics"
)

const (
	// localWriteCeiling bounds how long any single entry may live in the
	// local tier, so no entry dominates local memory.
	localWriteCeiling = 5 * time.Minute

	// backfillTTL is the short lifetime given to local copies created
	// from a distributed hit. It is also the cross-process staleness
	// bound after an invalidation that a local tier missed.
	backfillTTL = 60 * time.Second
)

// TwoTier unifies the local and distributed tiers behind read, write and
// invalidate operations. It never returns errors: cache failures are
// absorbed and logged, and the only caller-visible effect is a miss.
type TwoTier struct {
	local  *Local
	remote *Redis // nil when distributed caching is disabled
	log    *zap.Logger
}

// NewTwoTier builds the facade. remote may be nil, in which case every
// distributed-tier operation is skipped.
func NewTwoTier(local *Local, remote *Redis, logger *zap.Logger) *TwoTier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwoTier{local: local, remote: remote, log: logger}
}

// Read checks the local tier first, then the distributed tier when
// useDistributed is set. A distributed hit is backfilled into the local
// tier with a short TTL before being returned.
func (t *TwoTier) Read(ctx context.Context, key string, useDistributed bool) ([]byte, bool) {
	if v, ok, err := t.local.Get(ctx, key); err == nil && ok {
		metrics.CacheHitsTotal.WithLabelValues("local").Inc()
		return v, true
	}

	if useDistributed && t.remote != nil {
		if v, ok, _ := t.remote.Get(ctx, key); ok {
			metrics.CacheHitsTotal.WithLabelValues("distributed").Inc()
			if err := t.local.Set(ctx, key, v, backfillTTL); err != nil {
				t.log.Warn("local backfill failed", zap.String("key", key), zap.Error(err))
			}
			return v, true
		}
	}

	metrics.CacheMissesTotal.Inc()
	return nil, false
}

// Write stores the value in the local tier with min(ttl, local ceiling)
// and, when useDistributed is set, in the distributed tier with the full
// TTL. The two writes are independent; partial success is not rolled
// back.
func (t *TwoTier) Write(ctx context.Context, key string, value []byte, ttl time.Duration, useDistributed bool) {
	if ttl <= 0 {
		return
	}

	localTTL := ttl
	if localTTL > localWriteCeiling {
		localTTL = localWriteCeiling
	}
	if err := t.local.Set(ctx, key, value, localTTL); err != nil {
		t.log.Warn("local cache write failed", zap.String("key", key), zap.Error(err))
	}

	if useDistributed && t.remote != nil {
		if err := t.remote.Set(ctx, key, value, ttl); err != nil {
			t.log.Warn("distributed cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Invalidate removes every key containing the substring from both tiers,
// regardless of which tier a given key lives in, and returns the
// combined count.
func (t *TwoTier) Invalidate(ctx context.Context, pattern string) int {
	removed, _ := t.local.DeleteMatching(ctx, pattern)

	if t.remote != nil {
		n, err := t.remote.DeleteMatching(ctx, pattern)
		if err != nil {
			t.log.Warn("distributed invalidation failed",
				zap.String("pattern", pattern), zap.Error(err))
		}
		removed += n
	}

	if removed > 0 {
		metrics.KeysInvalidatedTotal.Add(float64(removed))
		t.log.Debug("cache invalidated",
			zap.String("pattern", pattern), zap.Int("removed", removed))
	}
	return removed
}

// FlushAll empties both tiers. Administrative only.
func (t *TwoTier) FlushAll(ctx context.Context) {
	_ = t.local.FlushAll(ctx)
	if t.remote != nil {
		_ = t.remote.FlushAll(ctx)
	}
}

// Stats snapshots local counters and distributed connectivity. Pure
// read, no side effects.
func (t *TwoTier) Stats() Stats {
	s := Stats{
		Local:            t.local.Stats(),
		DistributedState: "disabled",
	}
	if t.remote != nil {
		s.DistributedEnabled = true
		if t.remote.Connected() {
			s.DistributedState = "connected"
		} else {
			s.DistributedState = "disconnected"
		}
	}
	return s
}

// Close releases both tiers.
func (t *TwoTier) Close() error {
	_ = t.local.Close()
	if t.remote != nil {
		return t.remote.Close()
	}
	return nil
}
