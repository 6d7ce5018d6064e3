package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultConnectTimeout = 10 * time.Second

	// maxConsecutiveFailures is how many operations in a row may fail
	// before the tier stops talking to Redis until the next Connect.
	maxConsecutiveFailures = 5
)

// RedisConfig holds connection settings for the distributed tier.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	KeyPrefix      string // namespacing within the shared instance
	ConnectTimeout time.Duration
}

var _ Store = (*Redis)(nil)

// Redis is the distributed tier, shared by every server instance. It is
// strictly best-effort: when the connection is down every operation
// degrades to a miss or a skipped write, never an error that reaches the
// request path.
type Redis struct {
	client    *redis.Client
	prefix    string
	log       *zap.Logger
	timeout   time.Duration
	available atomic.Bool
	failures  atomic.Int64
}

// NewRedis builds the tier without connecting. Call Connect before first
// use; until it succeeds the tier reports disconnected and all operations
// are no-ops.
func NewRedis(cfg RedisConfig, logger *zap.Logger) *Redis {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	})

	return &Redis{
		client:  client,
		prefix:  cfg.KeyPrefix,
		log:     logger,
		timeout: cfg.ConnectTimeout,
	}
}

// NewRedisFromClient wraps an existing client; used by tests.
func NewRedisFromClient(client *redis.Client, prefix string, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:  client,
		prefix:  prefix,
		log:     logger,
		timeout: defaultConnectTimeout,
	}
}

// Connect pings the server under the configured timeout. Failure leaves
// the tier disconnected but is not fatal; the caller decides whether to
// continue local-only.
func (r *Redis) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.available.Store(false)
		return fmt.Errorf("redis connect: %w", err)
	}

	r.failures.Store(0)
	if !r.available.Swap(true) {
		r.log.Info("redis cache connected")
	}
	return nil
}

// Connected reports whether the tier is currently usable.
func (r *Redis) Connected() bool {
	return r.available.Load()
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + k
}

// Get retrieves a value. Misses and tier failures both come back as
// (nil, false, nil); the scrubbed error is logged here so callers never
// have to care.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !r.available.Load() {
		return nil, false, nil
	}

	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		r.failures.Store(0)
		return nil, false, nil
	}
	if err != nil {
		r.operationFailed("get", err)
		return nil, false, nil
	}

	r.failures.Store(0)
	return b, true, nil
}

// Set stores a value with a mandatory TTL; ttl <= 0 skips the write.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !r.available.Load() || ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		r.operationFailed("set", err)
		return nil
	}

	r.failures.Store(0)
	return nil
}

// DeleteMatching scans for keys containing the substring and deletes them
// in one batch. Scan-then-delete is not atomic against concurrent
// writers; keys created in between survive until their TTL expires.
func (r *Redis) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	if !r.available.Load() {
		return 0, nil
	}

	iter := r.client.Scan(ctx, 0, r.key("*"+pattern+"*"), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.operationFailed("scan", err)
		return 0, nil
	}

	if len(keys) == 0 {
		r.failures.Store(0)
		return 0, nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.operationFailed("del", err)
		return 0, nil
	}

	r.failures.Store(0)
	return len(keys), nil
}

// FlushAll clears the logical database used by this service.
// Administrative only.
func (r *Redis) FlushAll(ctx context.Context) error {
	if !r.available.Load() {
		return nil
	}

	if err := r.client.FlushDB(ctx).Err(); err != nil {
		r.operationFailed("flushdb", err)
		return nil
	}

	r.failures.Store(0)
	return nil
}

func (r *Redis) Close() error {
	r.available.Store(false)
	return r.client.Close()
}

// operationFailed counts consecutive failures and takes the tier offline
// once the bound is hit. The transition is logged once, not per request.
func (r *Redis) operationFailed(op string, err error) {
	n := r.failures.Add(1)
	if n >= maxConsecutiveFailures && r.available.Swap(false) {
		r.log.Error("redis cache unavailable, degrading to local-only",
			zap.String("op", op),
			zap.Int64("consecutive_failures", n),
			zap.Error(err),
		)
		return
	}
	r.log.Debug("redis cache operation failed",
		zap.String("op", op),
		zap.Error(err),
	)
}
