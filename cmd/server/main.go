package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront-api/internal/cache"
	"storefront-api/internal/handlers"
	"storefront-api/internal/httpserver"
	"storefront-api/internal/metrics"
	"storefront-api/internal/store"
	"storefront-api/pkg/logging"
)

type Config struct {
	Port          string
	Environment   string
	RedisAddr     string // empty => local-only caching
	RedisPassword string
	RedisDB       int
	CachePrefix   string
	LocalMaxKeys  int
}

func LoadConfig() Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getenv("REDIS_DB", "0"))
	localMax, _ := strconv.Atoi(getenv("CACHE_LOCAL_MAX_KEYS", "5000"))

	return Config{
		Port:          getenv("PORT", "8080"),
		Environment:   getenv("ENV", "production"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		CachePrefix:   getenv("CACHE_PREFIX", "storefront:"),
		LocalMaxKeys:  localMax,
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	useDistributed := cfg.RedisAddr != ""

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.Bool("distributed_cache", useDistributed),
		zap.String("redis_addr", cfg.RedisAddr),
	)

	// ----- Cache tiers -----
	local := cache.NewLocal(cfg.LocalMaxKeys, 60*time.Second)

	var remote *cache.Redis
	if useDistributed {
		remote = cache.NewRedis(cache.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.CachePrefix,
		}, logger)

		// A down distributed tier is not fatal; the service runs
		// local-only until a later Connect succeeds.
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := remote.Connect(ctx); err != nil {
			logger.Error("distributed cache unavailable at startup", zap.Error(err))
		}
		cancel()
	}

	twoTier := cache.NewTwoTier(local, remote, logger)
	defer twoTier.Close()

	invalidator := cache.NewInvalidator(twoTier, logger, 1024)
	defer invalidator.Close()

	// ----- Store -----
	catalog := store.NewMemoryStore()

	// ----- Handlers -----
	productHandler := handlers.NewProductHandler(catalog, twoTier, invalidator, useDistributed)
	categoryHandler := handlers.NewCategoryHandler(catalog, invalidator)
	adminHandler := handlers.NewAdminHandler(twoTier, cfg.Environment)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.Deps{
		Logger:         logger,
		Cache:          twoTier,
		UseDistributed: useDistributed,
		Products:       productHandler,
		Categories:     categoryHandler,
		Admin:          adminHandler,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting server",
		zap.String("addr", srv.Addr),
		zap.Bool("distributed_cache", useDistributed),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
