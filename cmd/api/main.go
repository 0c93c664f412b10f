package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/callboardhq/callboard/internal/analytics"
	"github.com/callboardhq/callboard/internal/api/router"
	"github.com/callboardhq/callboard/internal/audit"
	"github.com/callboardhq/callboard/internal/booking"
	"github.com/callboardhq/callboard/internal/calls"
	appconfig "github.com/callboardhq/callboard/internal/config"
	"github.com/callboardhq/callboard/internal/http/handlers"
	"github.com/callboardhq/callboard/internal/interactions"
	"github.com/callboardhq/callboard/internal/messaging"
	"github.com/callboardhq/callboard/internal/observability/metrics"
	"github.com/callboardhq/callboard/internal/tenancy"
	"github.com/callboardhq/callboard/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting callboard API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	} else {
		logger.Warn("REDIS_ADDR not set, analytics caching disabled")
	}

	// Stores
	tenancyStore := tenancy.NewStore(pool)
	resolver := tenancy.NewResolver(tenancyStore, cfg.DevFallbackBusinessID, cfg.IsProduction())
	callStore := calls.NewStore(pool)
	interactionStore := interactions.NewStore(pool)
	auditStore := audit.NewStore(pool, logger)
	bookingStore := booking.NewStore(pool)

	// Analytics
	statsRepo := analytics.NewRepository(pool)
	statsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL, cfg.AnalyticsStaleTTL)
	statsService := analytics.NewService(statsRepo, statsCache, logger, cfg.RepeatCallerTopN)

	webhookMetrics := metrics.NewWebhookMetrics(nil)

	// Outbound SMS is optional: without Twilio credentials the dashboard
	// send endpoint reports the provider as unconfigured.
	smsSendCfg := handlers.SMSSendConfig{
		Interactions: interactionStore,
		Resolver:     resolver,
		Logger:       logger,
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		smsSendCfg.Sender = messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	} else {
		logger.Warn("Twilio credentials not set, outbound SMS disabled")
	}

	routerCfg := &router.Config{
		Logger: logger,
		VoiceWebhook: handlers.NewVoiceWebhookHandler(handlers.VoiceWebhookConfig{
			Calls:    callStore,
			Audit:    auditStore,
			Resolver: resolver,
			Logger:   logger,
			Metrics:  webhookMetrics,
		}),
		SMSWebhook: handlers.NewSMSWebhookHandler(handlers.SMSWebhookConfig{
			Interactions: interactionStore,
			Resolver:     resolver,
			Logger:       logger,
			Metrics:      webhookMetrics,
		}),
		SMSSend:   handlers.NewSMSSendHandler(smsSendCfg),
		Tools:     handlers.NewToolsHandler(bookingStore, auditStore, logger),
		Analytics: handlers.NewAnalyticsHandler(statsService, logger),
		CallsAPI: handlers.NewCallsAPIHandler(handlers.CallsAPIConfig{
			Summaries: callStore,
			History:   interactionStore,
			Events:    auditStore,
			Logger:    logger,
		}),
		Admin:               handlers.NewAdminHandler(tenancyStore, logger),
		ToolToken:           cfg.ToolsBearerToken,
		DashboardAuthSecret: cfg.DashboardJWTSecret,
		MetricsHandler:      promhttp.Handler(),
		CORSAllowedOrigins:  cfg.CORSOrigins(),
	}
	r := router.New(routerCfg)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
