package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"storefront-api/internal/cache"
)

func newTestCache(t *testing.T) *cache.TwoTier {
	t.Helper()
	local := cache.NewLocal(100, time.Minute)
	tt := cache.NewTwoTier(local, nil, zap.NewNop())
	t.Cleanup(func() { tt.Close() })
	return tt
}

func TestResponseCache_HitSkipsHandler(t *testing.T) {
	tt := newTestCache(t)

	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"products":[],"call":%d}`, calls)
	})

	wrapped := ResponseCache(tt, 5*time.Minute, false)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=x", nil)
	rr1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr1, req)

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr1.Code)
	}

	// Second identical request within the TTL must be served from cache:
	// byte-identical body, handler never runs again.
	rr2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/api/v1/products?category=x", nil))

	if calls != 1 {
		t.Fatalf("expected cached response to skip handler, ran %d times", calls)
	}
	if rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("cached payload differs: %q vs %q", rr2.Body.String(), rr1.Body.String())
	}
	if rr2.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected X-Cache HIT header")
	}
}

func TestResponseCache_DistinctQueriesAreDistinctEntries(t *testing.T) {
	tt := newTestCache(t)

	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"query":%q}`, r.URL.RawQuery)
	})

	wrapped := ResponseCache(tt, time.Minute, false)(handler)

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/p?page=1", nil))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/p?page=2", nil))

	if calls != 2 {
		t.Fatalf("distinct query strings must not share a cache entry; handler ran %d times", calls)
	}
}

func TestResponseCache_NonGETPassesThrough(t *testing.T) {
	tt := newTestCache(t)

	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	wrapped := ResponseCache(tt, time.Minute, false)(handler)

	for i := 0; i < 2; i++ {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/p", nil))
	}

	if calls != 2 {
		t.Fatalf("POST requests must never be cached; handler ran %d times", calls)
	}
}

func TestResponseCache_ErrorsNotCached(t *testing.T) {
	tt := newTestCache(t)

	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	wrapped := ResponseCache(tt, time.Minute, false)(handler)

	rr1 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr1, httptest.NewRequest(http.MethodGet, "/p", nil))
	if rr1.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr1.Code)
	}

	// The failed response was not cached; the handler runs again and its
	// success is what gets stored.
	rr2 := httptest.NewRecorder()
	wrapped.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/p", nil))
	if calls != 2 {
		t.Fatalf("expected handler to rerun after non-2xx, ran %d times", calls)
	}
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr2.Code)
	}
}

func TestResponseCache_KeyDerivation(t *testing.T) {
	tt := newTestCache(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	wrapped := ResponseCache(tt, time.Minute, false)(handler)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products?page=2", nil))

	// The stored key is the fixed prefix plus path and query, so pattern
	// invalidation by entity name reaches it.
	key := cache.ResponseKeyPrefix + "/api/v1/products?page=2"
	if _, ok := tt.Read(context.Background(), key, false); !ok {
		t.Fatalf("expected entry under %q", key)
	}

	if removed := tt.Invalidate(context.Background(), "products"); removed != 1 {
		t.Fatalf("expected pattern invalidation to remove the response entry, removed %d", removed)
	}
}
