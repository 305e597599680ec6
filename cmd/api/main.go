package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/zapleads/engage-platform/internal/api/router"
	"github.com/zapleads/engage-platform/internal/assistant"
	"github.com/zapleads/engage-platform/internal/channels/webchat"
	appconfig "github.com/zapleads/engage-platform/internal/config"
	"github.com/zapleads/engage-platform/internal/conversation"
	"github.com/zapleads/engage-platform/internal/crm"
	"github.com/zapleads/engage-platform/internal/events"
	"github.com/zapleads/engage-platform/internal/http/handlers"
	"github.com/zapleads/engage-platform/internal/inbound"
	"github.com/zapleads/engage-platform/internal/llm"
	"github.com/zapleads/engage-platform/internal/messaging"
	"github.com/zapleads/engage-platform/internal/observability/metrics"
	"github.com/zapleads/engage-platform/internal/phone"
	"github.com/zapleads/engage-platform/internal/voice"
	"github.com/zapleads/engage-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting engage-platform API server", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(reg)

	// Persistence. Without DATABASE_URL everything runs in memory, which is
	// enough for local development and the widget demo.
	var store crm.Store
	var processed conversation.ProcessedMarker
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = crm.NewPostgresStore(pool)
		processedStore := events.NewProcessedStore(pool)
		processed = processedStore
		go processedStore.RunPurgeLoop(ctx, time.Hour, cfg.ProcessedEventRetention, logger)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = crm.NewMemoryStore()
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}

	invoker, err := buildInvoker(ctx, cfg)
	if err != nil {
		logger.Error("llm setup failed", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}

	hub := webchat.NewHub(logger)
	sendRouter := messaging.NewRouter()
	sendRouter.Register(string(inbound.ChannelWhatsApp), messaging.NewZAPISender(cfg.ZAPIBaseURL, cfg.ZAPIInstanceID, cfg.ZAPIToken, logger))
	sendRouter.Register(string(inbound.ChannelWebchat), hub)

	dispatcher := conversation.NewDispatcher(store, store, sendRouter, engineMetrics, logger)
	selector := assistant.NewSelector(store, store, store, logger)
	resolver := crm.NewResolver(store, store, selector, dispatcher, logger)
	history := conversation.NewHistoryCache(rdb, store, cfg.HistoryTTL, otel.Tracer("engage"))

	engine := conversation.NewEngine(conversation.EngineDeps{
		Parser:    inbound.NewParser(),
		Phones:    phone.ForCountryCode(cfg.DefaultCountryCode),
		Store:     store,
		Resolver:  resolver,
		Selector:  selector,
		Invoker:   invoker,
		Dispatch:  dispatcher,
		History:   history,
		Processed: processed,
		Metrics:   engineMetrics,
		Logger:    logger,
		LLMName:   cfg.LLMProvider,
	})

	funnel := voice.NewEngine(store, store, store, engineMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		WhatsAppWebhook:    handlers.NewWhatsAppWebhookHandler(engine, cfg.WhatsAppVerifyToken, logger),
		VoiceCallback:      handlers.NewVoiceCallbackHandler(store, funnel, logger),
		AdminConversations: handlers.NewAdminConversationsHandler(store, dispatcher, logger),
		Webchat:            webchat.NewHandler(hub, engine, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func buildInvoker(ctx context.Context, cfg *appconfig.Config) (llm.Invoker, error) {
	switch cfg.LLMProvider {
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, err
		}
		return llm.NewBedrockInvoker(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
	case "webhook":
		return llm.NewWebhookInvoker(cfg.LLMWebhookURL, cfg.LLMTimeout)
	default:
		return llm.NewGeminiInvoker(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	}
}
