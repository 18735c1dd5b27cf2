package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/curelink/patient-portal/internal/api/router"
	"github.com/curelink/patient-portal/internal/cart"
	"github.com/curelink/patient-portal/internal/checkout"
	appconfig "github.com/curelink/patient-portal/internal/config"
	"github.com/curelink/patient-portal/internal/http/handlers"
	"github.com/curelink/patient-portal/internal/observability/metrics"
	"github.com/curelink/patient-portal/internal/portalapi"
	"github.com/curelink/patient-portal/internal/push"
	"github.com/curelink/patient-portal/internal/realtime"
	"github.com/curelink/patient-portal/pkg/logging"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting patient portal",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Redis holds cart state.
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)

	// In-process bus carries cart update broadcasts to page subscribers.
	bus := EventBus.New()

	cartMetrics := metrics.NewCartMetrics(nil)
	realtimeMetrics := metrics.NewRealtimeMetrics(nil)

	carts := cart.NewStore(redisClient, bus,
		cart.WithKeyPrefix(cfg.CartKeyPrefix),
		cart.WithTTL(cfg.CartTTL),
		cart.WithStrictErrors(cfg.StrictErrors),
		cart.WithLogger(logger.WithComponent("cart")),
	)

	backend := portalapi.NewClient(cfg.BackendBaseURL, os.Getenv("BACKEND_SERVICE_TOKEN"),
		portalapi.WithLogger(logger.WithComponent("portalapi")))
	checkoutSvc := checkout.NewService(carts, backend, int64(cfg.DeliveryFeeCents),
		logger.WithComponent("checkout"))

	bridge := realtime.NewBridge(cfg.PushGatewayURL, logger.WithComponent("realtime"),
		realtime.WithMaxRetries(cfg.RealtimeMaxRetries),
		realtime.WithBackoffBase(cfg.RealtimeBackoffBase),
		realtime.WithConnectTimeout(cfg.RealtimeConnectTimeout),
		realtime.WithMetrics(realtimeMetrics),
		realtime.WithStrict(cfg.StrictErrors),
	)
	if token := os.Getenv("PUSH_GATEWAY_TOKEN"); token != "" {
		if _, err := bridge.Initialize(token); err != nil {
			logger.Warn("push gateway unavailable, continuing without live updates", "error", err)
		}
	}

	cartHandler := handlers.NewCartHandler(carts, checkoutSvc, cartMetrics, logger.WithComponent("cart"))

	// Browser fan-out: gateway events and cart updates reach open tabs.
	hub := push.NewHub(logger)
	detachBridge := hub.AttachBridge(bridge)
	defer detachBridge()
	detachCart := hub.AttachCartBus(bus)
	defer detachCart()

	r := router.New(&router.Config{
		Logger:             logger,
		CartHandler:        cartHandler,
		PushHub:            hub,
		MetricsHandler:     promhttp.Handler(),
		PatientJWTSecret:   cfg.PatientJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	bridge.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("closing redis client", "error", err)
	}

	logger.Info("server stopped")
}
