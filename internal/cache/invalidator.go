package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const invalidateTimeout = 5 * time.Second

// Invalidator decouples cache eviction from the request-response
// lifecycle. Domain writes enqueue patterns and return to the caller
// immediately; a worker applies them against both tiers in the
// background. A full queue drops the pattern with a log line rather than
// blocking the write path; TTL expiry is the backstop for anything
// dropped.
type Invalidator struct {
	cache *TwoTier
	log   *zap.Logger
	q     chan string
	wg    sync.WaitGroup
	once  sync.Once
}

// NewInvalidator starts the background worker. qlen <= 0 defaults to
// 1024 pending patterns.
func NewInvalidator(cache *TwoTier, logger *zap.Logger, qlen int) *Invalidator {
	if qlen <= 0 {
		qlen = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	inv := &Invalidator{
		cache: cache,
		log:   logger,
		q:     make(chan string, qlen),
	}

	inv.wg.Add(1)
	go func() {
		defer inv.wg.Done()
		for pattern := range inv.q {
			ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
			inv.cache.Invalidate(ctx, pattern)
			cancel()
		}
	}()

	return inv
}

// Enqueue schedules pattern invalidations without blocking. Failure to
// enqueue is logged, never surfaced to the write that triggered it.
func (i *Invalidator) Enqueue(patterns ...string) {
	for _, p := range patterns {
		select {
		case i.q <- p:
		default:
			i.log.Warn("invalidation queue full, dropping pattern",
				zap.String("pattern", p))
		}
	}
}

// Close drains the queue and stops the worker. Tests use it as the
// completion hook: after Close returns, every enqueued pattern has been
// applied.
func (i *Invalidator) Close() {
	i.once.Do(func() {
		close(i.q)
		i.wg.Wait()
	})
}
