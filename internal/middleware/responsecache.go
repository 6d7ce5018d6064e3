package middleware

import (
	"bytes"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storefront-api/internal/cache"
	"storefront-api/pkg/logging"
)

// ResponseCache serves cached JSON payloads for idempotent reads. Only
// GET requests are considered; anything else passes through untouched.
// The key is derived from the full path plus query string, so distinct
// filter/sort/page combinations cache independently. A hit bypasses the
// handler entirely; on a miss the first 2xx payload is captured and
// written through the facade before reaching the caller. The TTL is
// fixed per route at wiring time.
func ResponseCache(c *cache.TwoTier, ttl time.Duration, useDistributed bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := cache.ResponseKeyPrefix + r.URL.Path
			if r.URL.RawQuery != "" {
				key += "?" + r.URL.RawQuery
			}

			ctx := r.Context()
			if payload, ok := c.Read(ctx, key, useDistributed); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(payload)
				return
			}

			rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// Only successful responses are worth replaying.
			if rec.status >= 200 && rec.status < 300 && rec.buf.Len() > 0 {
				c.Write(ctx, key, rec.buf.Bytes(), ttl, useDistributed)
			} else if rec.status >= 300 {
				logging.L(ctx).Debug("response not cached",
					zap.String("key", key),
					zap.Int("status", rec.status),
				)
			}
		})
	}
}

// captureWriter tees the response body into a buffer while forwarding
// it to the client unchanged.
type captureWriter struct {
	http.ResponseWriter
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func (cw *captureWriter) WriteHeader(code int) {
	if cw.wroteHeader {
		return
	}
	cw.wroteHeader = true
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(p []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	cw.buf.Write(p)
	return cw.ResponseWriter.Write(p)
}
