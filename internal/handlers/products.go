package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"storefront-api/internal/cache"
	"storefront-api/internal/store"
	"storefront-api/pkg/logging"
)

// Cache keys and TTLs for product data computed in the handlers
// themselves, as opposed to full responses cached by the middleware.
// The keys all contain "products" on purpose: a single broad
// invalidation after a write sweeps responses, dropdowns and rankings
// in one pass.
const (
	popularCacheKey  = cache.AppKeyPrefix + "products:popular"
	dropdownCacheKey = cache.AppKeyPrefix + "products:dropdown"

	popularCacheTTL  = 10 * time.Minute
	dropdownCacheTTL = time.Hour

	popularLimit = 10
)

// productInvalidation is the substring swept after any product write.
var productInvalidation = []string{"products"}

// ProductHandler serves the catalog endpoints. Reads go through the
// cache facade; every successful write enqueues pattern invalidation so
// cached reads cannot go stale past the local backfill window.
type ProductHandler struct {
	store          store.ProductStore
	cache          *cache.TwoTier
	invalidator    *cache.Invalidator
	useDistributed bool
}

func NewProductHandler(s store.ProductStore, c *cache.TwoTier, inv *cache.Invalidator, useDistributed bool) *ProductHandler {
	return &ProductHandler{
		store:          s,
		cache:          c,
		invalidator:    inv,
		useDistributed: useDistributed,
	}
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	Active      *bool   `json:"active"`
}

// List handles GET /api/v1/products. The response cache middleware sits
// in front of it; by the time this runs, both tiers have missed.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	products, total, err := h.store.List(r.Context(), store.ListFilter{
		Category: q.Get("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		logging.L(r.Context()).Error("product list failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	totalPages := (total + limit - 1) / limit
	writeJSON(w, r, http.StatusOK, map[string]any{
		"products": products,
		"pagination": map[string]any{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": totalPages,
		},
	})
}

// GetByID handles GET /api/v1/products/{id}.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		logging.L(r.Context()).Error("product get failed", zap.String("id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"product": p})
}

// Popular handles GET /api/v1/products/popular with an application-level
// cache: the ranking is computed, marshaled once and reused until a
// product write invalidates it or the TTL runs out.
func (h *ProductHandler) Popular(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if payload, ok := h.cache.Read(ctx, popularCacheKey, h.useDistributed); ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
		return
	}

	products, err := h.store.Popular(ctx, popularLimit)
	if err != nil {
		logging.L(ctx).Error("popular ranking failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	payload, err := json.Marshal(map[string]any{"products": products})
	if err != nil {
		logging.L(ctx).Error("marshal popular ranking failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.cache.Write(ctx, popularCacheKey, payload, popularCacheTTL, h.useDistributed)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// FormData handles GET /api/v1/products/form-data: the aggregated
// category/brand dropdowns. Near-static reference data, so it gets the
// long TTL.
func (h *ProductHandler) FormData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if payload, ok := h.cache.Read(ctx, dropdownCacheKey, h.useDistributed); ok {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
		return
	}

	categories, err := h.store.Categories(ctx)
	if err != nil {
		logging.L(ctx).Error("category aggregate failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	brands, err := h.store.Brands(ctx)
	if err != nil {
		logging.L(ctx).Error("brand aggregate failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"categories": categories,
		"brands":     brands,
	})
	if err != nil {
		logging.L(ctx).Error("marshal form data failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.cache.Write(ctx, dropdownCacheKey, payload, dropdownCacheTTL, h.useDistributed)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// Create handles POST /api/v1/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.Price < 0 {
		writeError(w, r, http.StatusBadRequest, "name is required and price must be non-negative")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p := &store.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Brand:       req.Brand,
		Active:      active,
	}
	if err := h.store.Create(r.Context(), p); err != nil {
		logging.L(r.Context()).Error("product create failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.invalidator.Enqueue(productInvalidation...)
	writeJSON(w, r, http.StatusCreated, map[string]any{"success": true, "product": p})
}

// Update handles PUT /api/v1/products/{id}.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.Price < 0 {
		writeError(w, r, http.StatusBadRequest, "name is required and price must be non-negative")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p := &store.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Brand:       req.Brand,
		Active:      active,
	}
	err := h.store.Update(r.Context(), id, p)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		logging.L(r.Context()).Error("product update failed", zap.String("id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.invalidator.Enqueue(productInvalidation...)
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "product": p})
}

// Delete handles DELETE /api/v1/products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		logging.L(r.Context()).Error("product delete failed", zap.String("id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.invalidator.Enqueue(productInvalidation...)
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}

// SetStatus handles PATCH /api/v1/products/{id}/status.
func (h *ProductHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "body must be {\"active\": true|false}")
		return
	}

	err := h.store.SetActive(r.Context(), id, *req.Active)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		logging.L(r.Context()).Error("product status change failed", zap.String("id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.invalidator.Enqueue(productInvalidation...)
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "active": *req.Active})
}
