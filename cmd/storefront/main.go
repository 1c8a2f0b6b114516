// Storefront checkout server: cart, checkout and payment endpoints in front
// of the marketplace API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/gateway"
	"storefront-checkout/internal/handler"
	"storefront-checkout/internal/marketplace"
	"storefront-checkout/internal/middleware"
	"storefront-checkout/internal/persist"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/storefront"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development reads a .env file; real environment variables win.
	_ = godotenv.Load(".env")

	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("storefront_id", cfg.StorefrontID),
		slog.String("environment", cfg.Environment),
		slog.String("marketplace", cfg.Marketplace.APIBaseURL),
		slog.String("gateway", cfg.Gateway.Provider),
		slog.Bool("redis", cfg.Redis.Addr != ""),
	)

	store, closeStore, err := createStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer closeStore()

	client, err := marketplace.New(marketplace.Config{
		BaseURL:     cfg.Marketplace.APIBaseURL,
		Token:       cfg.Marketplace.APIToken,
		Fingerprint: cfg.Marketplace.Fingerprint,
		Breaker: marketplace.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating marketplace client: %w", err)
	}

	// Payment gateway is optional; without one only COD orders can be placed.
	var (
		hub      *gateway.CallbackHub
		payments *gateway.Adapter
		opts     = handler.Options{ClientVersion: cfg.ClientVersion}
	)
	if widget := createWidget(cfg, &hub); widget != nil {
		payments = gateway.NewAdapter(gateway.Config{
			Widget:   widget,
			Payments: client,
			Pending:  persist.NewPendingVerifications(store),
			Logger:   logger,
		})
		if snap, ok := widget.(*gateway.SnapWidget); ok {
			opts.Notifications = snap
		}
	}

	registry := storefront.NewRegistry(storefront.Config{
		Marketplace: client,
		States:      persist.NewCartStates(store),
		Engine:      cfg.Engine(),
		Coupons:     pricing.NewCoupons(cfg.Coupons),
		Gateway:     payments,
		Logger:      logger,
	})

	h := handler.New(registry, hub, opts, logger)

	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logging(logger),
	)(h.Routes())

	// Create HTTP server with timeouts. No write timeout: MCP streams and
	// long polls stay open.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}

		// Submissions already past the widget still need to reach the
		// order service.
		if err := registry.Wait(shutdownCtx); err != nil {
			logger.Warn("background work still running at exit", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
	return nil
}

// createStore returns Redis-backed persistence when configured, otherwise
// an in-memory store.
func createStore(ctx context.Context, cfg *config.Config) (persist.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return persist.NewMemoryStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := persist.NewRedisStore(rdb)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}
	return store, func() { rdb.Close() }, nil
}

// createWidget builds the configured payment widget. hub is set whenever
// the widget needs callbacks routed to it.
func createWidget(cfg *config.Config, hub **gateway.CallbackHub) gateway.Widget {
	switch cfg.Gateway.Provider {
	case config.ProviderSnap:
		*hub = gateway.NewCallbackHub()
		return gateway.NewSnapWidget(gateway.SnapConfig{
			ServerKey:  cfg.Gateway.ServerKey,
			Production: !cfg.Gateway.Sandbox,
		}, *hub)
	case config.ProviderHosted:
		*hub = gateway.NewCallbackHub()
		return gateway.NewHostedWidget(*hub)
	default:
		return nil
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
