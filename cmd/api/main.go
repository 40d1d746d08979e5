// auctioncompare-api is the compare-pipeline backend: normalizes noisy
// auction titles, fetches comparable listings, and returns a worth-it
// verdict backed by a relational cache and credits ledger.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auctioncompare/api/internal/api"
	"github.com/auctioncompare/api/internal/auth"
	"github.com/auctioncompare/api/internal/cachestore"
	"github.com/auctioncompare/api/internal/compare"
	"github.com/auctioncompare/api/internal/config"
	"github.com/auctioncompare/api/internal/db"
	"github.com/auctioncompare/api/internal/dedup"
	"github.com/auctioncompare/api/internal/ledger"
	"github.com/auctioncompare/api/internal/normalize"
	"github.com/auctioncompare/api/internal/ratelimit"
	"github.com/auctioncompare/api/internal/shopping"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("starting auctioncompare-api", "env", cfg.Server.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gdb, err := db.Open(cfg.Database.Path, !cfg.IsProduction())
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gdb,
		&cachestore.CompareCacheEntry{}, &cachestore.SearchHistory{},
		&ledger.UserCredits{}, &ledger.CreditLedger{}, &ledger.Purchase{}, &ledger.ProcessedEvent{},
		&auth.APIToken{}, &auth.Session{},
	); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	store := cachestore.New(gdb, cfg.CacheTTL(), cfg.LooseCacheWindow())
	creditLedger := ledger.New(gdb, cfg.Compare.FreeFreshFetchAllowance)
	packs := ledger.LoadCreditPacks("eur")
	registry := ledger.NewRegistry(packs)
	webhookIntake := ledger.NewWebhookIntake(gdb, creditLedger, registry, cfg.Stripe.WebhookSecret)
	authGate := auth.New(gdb, cfg.Security.APITokenSalt)

	normalizer := buildNormalizer(cfg)
	shoppingProvider := shopping.NewHTTPProvider(cfg.Shopping.BaseURL, cfg.Shopping.APIKey)
	rateGate := ratelimit.NewGate(cfg.RateLimit.UserPerMinute, cfg.RateLimit.IPPerMinute)
	deduper := dedup.New()

	orchestrator := compare.New(rateGate, normalizer, shoppingProvider, store, creditLedger, deduper, compare.Config{
		MarginThreshold:  cfg.Compare.VerdictMarginPercent,
		CacheTTL:         cfg.CacheTTL(),
		LooseCacheWindow: cfg.LooseCacheWindow(),
	})

	startCacheCleanupLoop(ctx, store)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	apiHandler := api.NewHandler(cfg, orchestrator, store, creditLedger, registry, webhookIntake, authGate)
	router.Use(apiHandler.RequestLogger())
	registerRoutes(router, apiHandler)

	server := &http.Server{
		Addr:           ":" + cfg.GetPort(),
		Handler:        router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		slog.Info("starting HTTP server", "port", cfg.GetPort())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}

func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// buildNormalizer wires the AI provider (if configured) behind the
// heuristic fallback and the normalization LRU cache, per spec.md §4.C/D/E.
func buildNormalizer(cfg *config.Config) normalize.Provider {
	heuristic := normalize.NewHeuristic()
	aiProvider := normalize.NewAIProviderFromConfig(cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.OllamaHost)
	composite := normalize.NewComposite(heuristic, aiProvider)
	cache := normalize.NewCache()
	return normalize.NewCachedProvider(composite, cache)
}

// startCacheCleanupLoop sweeps expired compare-cache entries periodically,
// the background counterpart to cachestore.CleanupExpiredCache (spec.md §4.H).
func startCacheCleanupLoop(ctx context.Context, store *cachestore.Store) {
	ticker := time.NewTicker(time.Hour)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := store.CleanupExpiredCache(); err != nil {
					slog.Error("cache cleanup failed", "error", err)
				} else if n > 0 {
					slog.Info("cache cleanup removed expired entries", "count", n)
				}
			}
		}
	}()
}

func registerRoutes(router *gin.Engine, handler *api.Handler) {
	router.GET("/healthz", handler.HealthCheck)

	v1 := router.Group("/api")
	{
		v1.POST("/stripe/webhook", handler.StripeWebhook)
		v1.GET("/billing/credit-packs", handler.CreditPacks)

		authed := v1.Group("")
		authed.Use(handler.AuthMiddleware())
		{
			authed.POST("/compare", handler.Compare)
			authed.GET("/history", handler.History)
			authed.GET("/me/credits", handler.MeCredits)
			authed.POST("/billing/credit-packs/checkout", handler.CreditPacksCheckout)
		}
	}
}
