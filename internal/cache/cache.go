// Package cache implements the two-tier response cache: a capacity-bounded
// in-process store in front of a shared Redis store, unified behind TwoTier.
// Values are opaque byte payloads; encoding is left to the caller.
package cache

import (
	"context"
	"time"
)

// Key namespaces. Every cached key carries one of these prefixes so that
// pattern invalidation can target one kind of entry without touching the
// others.
const (
	// ResponseKeyPrefix namespaces full HTTP response payloads cached by
	// the response middleware.
	ResponseKeyPrefix = "response:"

	// AppKeyPrefix namespaces application-level caches (aggregates,
	// rankings) populated directly by handlers.
	AppKeyPrefix = "app:"
)

// Store is the contract each cache tier implements.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get returns (nil, false, nil) on a clean miss. An error means the
//     tier itself failed; callers treat it as a miss.
//   - Set always stores with an expiration; ttl <= 0 is a no-op.
//   - DeleteMatching removes every key containing the substring and
//     returns the number removed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int, error)
	FlushAll(ctx context.Context) error
}

// LocalStats is a snapshot of the in-process tier's counters.
type LocalStats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Entries       int    `json:"entries"`
	BytesEstimate int64  `json:"bytes_estimate"`
}

// Stats combines both tiers for the management surface.
type Stats struct {
	Local              LocalStats `json:"local"`
	DistributedEnabled bool       `json:"distributed_enabled"`
	DistributedState   string     `json:"distributed_state"` // connected | disconnected | disabled
}
