package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/davidboeke/catalog-scraper/internal/api"
	"github.com/davidboeke/catalog-scraper/internal/browser"
	"github.com/davidboeke/catalog-scraper/internal/config"
	"github.com/davidboeke/catalog-scraper/internal/database"
	"github.com/davidboeke/catalog-scraper/internal/scraper"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Browser session. Launch is lazy; the first extraction pays for it.
	browserSession := browser.NewSession(&browser.Options{
		Visible:        cfg.Browser.Visible,
		NavTimeout:     cfg.Browser.NavTimeout,
		ActionTimeout:  cfg.Browser.ActionTimeout,
		UserAgent:      cfg.Scraper.UserAgents[0],
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	defer func() {
		if err := browserSession.Shutdown(); err != nil {
			logger.Error("failed to shut down browser", "error", err)
		}
	}()

	// Redis client for the session event relay
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(db.Pool(), redisClient, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	// Stores
	cacheStore := database.NewCacheStore(db.Pool(), "web_catalog")
	sessionStore := database.NewSessionStore(db.Pool(), cfg.Redis.Stream)

	// Periodic cache retention
	go purgeLoop(ctx, cacheStore, cfg.Scraper.PurgeInterval, cfg.Scraper.RetentionDays, logger)

	// Extraction pipeline
	extractor := scraper.NewExtractor(cfg.Scraper.MinPrimaryCount, baseURLOf(cfg.Scraper.DefaultTargetURL))
	paginator := scraper.NewPaginator(extractor, cfg.Scraper.ScrollSettle)
	lightFetcher := scraper.NewLightFetcher(cfg.Scraper.UserAgents[0], cfg.Scraper.FetchTimeout)
	targets := scraper.NewStaticTargets(cfg.Scraper.DefaultTargetURL)

	service := scraper.NewService(browserSession, extractor, paginator, lightFetcher,
		cacheStore, sessionStore, targets, scraper.Options{
			Source:          "web_catalog",
			FreshnessTTL:    cfg.Scraper.FreshnessTTL,
			StaleMultiplier: cfg.Scraper.StaleMultiplier,
			ScrollIncrement: cfg.Scraper.ScrollIncrement,
			MaxScrollRounds: cfg.Scraper.MaxScrollRounds,
			Retry: scraper.RetryPolicy{
				MaxAttempts: cfg.Scraper.MaxAttempts,
				BaseDelay:   cfg.Scraper.BaseDelay,
			},
		})

	// Initialize API handlers
	handlers := api.NewHandlers(service, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		pendingCount, _ := relay.PendingCount(context.Background())
		deadLetterCount, _ := relay.DeadLetterCount(context.Background())

		health := map[string]interface{}{
			"status": "ok",
			"outbox": map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			},
		}

		status := http.StatusOK
		if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", handlers.GetRecords)
		r.Get("/records/detail", handlers.GetRecordDetail)
		r.Get("/fallback", handlers.GetStaticFallback)
		r.Get("/session/status", handlers.GetSessionStatus)
		r.Post("/session/mode", handlers.SetSessionMode)
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// purgeLoop deletes rows past the retention window on a fixed interval.
func purgeLoop(ctx context.Context, store *database.CacheStore, interval time.Duration, retentionDays int, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Purge(ctx, retentionDays)
			if err != nil {
				logger.Error("failed to purge stale records", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("purged stale records", "removed", removed, "retention_days", retentionDays)
			}
		}
	}
}

func baseURLOf(target string) string {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
