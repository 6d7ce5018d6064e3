package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxEntries    = 5000
	defaultSweepInterval = 60 * time.Second
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
	storedAt  time.Time
}

func (e localEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

var _ Store = (*Local)(nil)

// Local is the in-process tier: a capacity-bounded map with per-entry TTL
// and a background sweep for expired entries. It is owned by a single
// process and never shared across instances.
type Local struct {
	mu         sync.RWMutex
	entries    map[string]localEntry
	maxEntries int
	bytes      int64
	hits       uint64
	misses     uint64

	sweepInterval time.Duration
	stopSweep     chan struct{}
	closeOnce     sync.Once
}

// NewLocal creates the in-process tier. maxEntries <= 0 and
// sweepInterval <= 0 fall back to defaults (5000 entries, 60s sweep).
func NewLocal(maxEntries int, sweepInterval time.Duration) *Local {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	c := &Local{
		entries:       make(map[string]localEntry),
		maxEntries:    maxEntries,
		sweepInterval: sweepInterval,
		stopSweep:     make(chan struct{}),
	}

	go c.sweepExpired()

	return c
}

// Get retrieves a value. A miss is never an error; expired entries are
// removed lazily on read.
func (c *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	now := time.Now()
	if !ok || entry.expired(now) {
		c.mu.Lock()
		if e, exists := c.entries[key]; exists && e.expired(now) {
			c.removeLocked(key, e)
		}
		c.misses++
		c.mu.Unlock()
		return nil, false, nil
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()

	return entry.value, true, nil
}

// Set stores a value with the given TTL, overwriting any existing entry.
// When the store is full and key is new, the least-recently-set entry is
// evicted so memory stays bounded. ttl <= 0 removes the key.
func (c *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		if e, ok := c.entries[key]; ok {
			c.removeLocked(key, e)
		}
		return nil
	}

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	now := time.Now()
	if old, ok := c.entries[key]; ok {
		c.bytes -= int64(len(old.value))
	}
	c.entries[key] = localEntry{
		value:     valueCopy,
		expiresAt: now.Add(ttl),
		storedAt:  now,
	}
	c.bytes += int64(len(valueCopy))

	return nil
}

// DeleteMatching removes every key containing the given substring and
// returns the number removed.
func (c *Local) DeleteMatching(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if strings.Contains(k, pattern) {
			c.removeLocked(k, e)
			removed++
		}
	}
	return removed, nil
}

// FlushAll empties the store unconditionally.
func (c *Local) FlushAll(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]localEntry)
	c.bytes = 0
	c.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the tier's counters.
func (c *Local) Stats() LocalStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return LocalStats{
		Hits:          c.hits,
		Misses:        c.misses,
		Entries:       len(c.entries),
		BytesEstimate: c.bytes,
	}
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (c *Local) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopSweep)
	})
	return nil
}

// removeLocked deletes an entry and keeps the byte estimate in step.
// Caller must hold the write lock.
func (c *Local) removeLocked(key string, e localEntry) {
	c.bytes -= int64(len(e.value))
	delete(c.entries, key)
}

// evictOldestLocked drops the least-recently-set entry. Caller must hold
// the write lock and have at least one entry present.
func (c *Local) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldest) {
			oldestKey = k
			oldest = e.storedAt
			first = false
		}
	}
	if !first {
		c.removeLocked(oldestKey, c.entries[oldestKey])
	}
}

// sweepExpired runs periodically so stale entries do not hold memory
// between reads.
func (c *Local) sweepExpired() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if e.expired(now) {
					c.removeLocked(k, e)
				}
			}
			c.mu.Unlock()
		case <-c.stopSweep:
			return
		}
	}
}
