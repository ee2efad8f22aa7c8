package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/hospitalintelligence/internal/adapters/cache"
	"github.com/zatekoja/hospitalintelligence/internal/adapters/events"
	"github.com/zatekoja/hospitalintelligence/internal/adapters/predictors"
	"github.com/zatekoja/hospitalintelligence/internal/api/handlers"
	"github.com/zatekoja/hospitalintelligence/internal/api/middleware"
	"github.com/zatekoja/hospitalintelligence/internal/api/routes"
	"github.com/zatekoja/hospitalintelligence/internal/application/services"
	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/clients/redis"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/notifications"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
	"github.com/zatekoja/hospitalintelligence/pkg/retry"
)

func main() {
	configPath := flag.String("config", "", "path to an optional config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Logging.Env, cfg.Logging.Level)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			observability.BridgeToOTel()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Models are loaded once; a missing or corrupt artifact stops startup
	modelStore := predictors.NewModelStore(cfg.Models)
	if _, err := modelStore.Load(); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Models.Dir).Msg("Failed to load models")
	}

	// Redis backs the upload rate limit and the alert bus when configured
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis, retry.DefaultConfig())
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, falling back to in-process cache and event bus")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryAdapter()
		eventBus = events.NewMemoryEventBus()
	}

	// Critical alert delivery
	var dispatchService *services.AlertDispatchService
	notifier, err := notifications.NewNotifier(cfg.Alerts)
	if err != nil {
		log.Fatal().Err(err).Str("channel", cfg.Alerts.Channel).Msg("Failed to initialize alert notifier")
	}
	if notifier != nil {
		dispatchService = services.NewAlertDispatchService(eventBus, notifier)
		if err := dispatchService.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start alert dispatch service")
			dispatchService = nil
		}
	}

	// Initialize services
	alertPublisher := services.NewAlertPublisher(eventBus, metrics)
	predictionService := services.NewPredictionService(modelStore, cfg.Prediction, alertPublisher, metrics)
	batchService := services.NewBatchService(modelStore, cfg.Prediction, cfg.Batch, alertPublisher, metrics)

	// Initialize handlers
	renderer, err := handlers.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load templates")
	}
	dashboardHandler := handlers.NewDashboardHandler(
		predictionService,
		batchService,
		handlers.NewUploadLimiter(cacheProvider, cfg.Batch.UploadsPerHour, metrics),
		renderer,
	)
	healthHandler := handlers.NewHealthHandler(modelStore)

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid trusted proxies")
	}

	router := routes.NewRouter(
		dashboardHandler,
		healthHandler,
		cfg.Batch.MaxUploadBytes(),
		trustedProxies,
		metrics,
	)

	server := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	// Close event bus, then stop alert dispatch
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}
	if dispatchService != nil {
		dispatchService.Stop()
	}

	log.Info().Msg("Server stopped")
}
