package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"storefront-api/internal/cache"
)

// AdminHandler exposes the cache-management surface for operators.
type AdminHandler struct {
	cache       *cache.TwoTier
	startedAt   time.Time
	environment string
}

func NewAdminHandler(c *cache.TwoTier, env string) *AdminHandler {
	return &AdminHandler{
		cache:       c,
		startedAt:   time.Now(),
		environment: env,
	}
}

// Performance handles GET /api/performance.
func (h *AdminHandler) Performance(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  h.cache.Stats(),
		"memory": map[string]any{
			"alloc_bytes": mem.Alloc,
			"sys_bytes":   mem.Sys,
			"num_gc":      mem.NumGC,
		},
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"environment":    h.environment,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// CacheClear handles DELETE /api/cache/clear. With ?pattern= it
// invalidates matching keys in both tiers; without, it flushes both
// tiers entirely.
func (h *AdminHandler) CacheClear(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")

	if pattern != "" {
		removed := h.cache.Invalidate(r.Context(), pattern)
		writeJSON(w, r, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("invalidated %d keys matching %q", removed, pattern),
		})
		return
	}

	h.cache.FlushAll(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "cache flushed",
	})
}

// Health handles GET /health, including distributed-cache connectivity.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"cache":     stats.DistributedState,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
