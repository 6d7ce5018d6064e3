package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"storefront-api/internal/cache"
	"storefront-api/internal/handlers"
	"storefront-api/internal/metrics"
	"storefront-api/internal/middleware"
)

// Response-cache TTL policy per route: volatile listings stay minutes,
// near-static reference data an hour.
const (
	productListTTL  = 5 * time.Minute
	categoryListTTL = time.Hour
)

// Deps carries everything the router wires together.
type Deps struct {
	Logger         *zap.Logger
	Cache          *cache.TwoTier
	UseDistributed bool
	Products       *handlers.ProductHandler
	Categories     *handlers.CategoryHandler
	Admin          *handlers.AdminHandler
}

func SetupRouter(r *chi.Mux, d Deps) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(d.Logger))
	r.Use(middleware.Recoverer())               // panic recovery
	r.Use(middleware.Timeout(15 * time.Second)) // request timeout
	r.Use(middleware.MaxBodySize(512 * 1024))   // 512 KB max body

	listCache := middleware.ResponseCache(d.Cache, productListTTL, d.UseDistributed)
	refCache := middleware.ResponseCache(d.Cache, categoryListTTL, d.UseDistributed)

	// routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			// popular and form-data cache their payloads themselves
			r.Get("/popular", d.Products.Popular)
			r.Get("/form-data", d.Products.FormData)

			r.With(listCache).Get("/", d.Products.List)
			r.With(listCache).Get("/{id}", d.Products.GetByID)

			r.Post("/", d.Products.Create)
			r.Put("/{id}", d.Products.Update)
			r.Delete("/{id}", d.Products.Delete)
			r.Patch("/{id}/status", d.Products.SetStatus)
		})

		r.Route("/categories", func(r chi.Router) {
			r.With(refCache).Get("/", d.Categories.List)
			r.Post("/", d.Categories.Create)
		})
	})

	// management surface
	r.Get("/api/performance", d.Admin.Performance)
	r.Delete("/api/cache/clear", d.Admin.CacheClear)
	r.Get("/health", d.Admin.Health)

	r.Handle("/metrics", metrics.Handler())
}
