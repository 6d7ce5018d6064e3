package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"storefront-api/internal/cache"
	"storefront-api/internal/store"
	"storefront-api/pkg/logging"
)

// categoryInvalidation deliberately uses the "categor" stem so one sweep
// covers category responses and the product form-data aggregate, whose
// payload embeds categories. The dropdown key does not contain the stem,
// so it is listed explicitly.
var categoryInvalidation = []string{"categor", "products:dropdown"}

// CategoryHandler serves the category reference data.
type CategoryHandler struct {
	store       store.ProductStore
	invalidator *cache.Invalidator
}

func NewCategoryHandler(s store.ProductStore, inv *cache.Invalidator) *CategoryHandler {
	return &CategoryHandler{store: s, invalidator: inv}
}

// List handles GET /api/v1/categories. Near-static; the route is
// response-cached with the long TTL.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.Categories(r.Context())
	if err != nil {
		logging.L(r.Context()).Error("category list failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"categories": categories})
}

// Create handles POST /api/v1/categories.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	c := &store.Category{Name: req.Name}
	if err := h.store.CreateCategory(r.Context(), c); err != nil {
		logging.L(r.Context()).Error("category create failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	h.invalidator.Enqueue(categoryInvalidation...)
	writeJSON(w, r, http.StatusCreated, map[string]any{"success": true, "category": c})
}
