package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/krishna-platform/quotad/internal/api"
	"github.com/krishna-platform/quotad/internal/auth"
	"github.com/krishna-platform/quotad/internal/clock"
	"github.com/krishna-platform/quotad/internal/config"
	"github.com/krishna-platform/quotad/internal/database"
	inats "github.com/krishna-platform/quotad/internal/nats"
	"github.com/krishna-platform/quotad/internal/quota"
	iredis "github.com/krishna-platform/quotad/internal/redis"
	"github.com/krishna-platform/quotad/internal/server"
	"github.com/krishna-platform/quotad/internal/subscriptions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it, cache invalidation stays in-process and
	// peers converge on TTL expiry.
	var natsClient *inats.Client
	var publisher *inats.Publisher
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = inats.NewPublisher(natsClient.JetStream())
	}

	// Quota engine
	clk := clock.System{}
	limits := quota.NewLimits(cfg.Quota.FreeDailyLimit, cfg.Quota.Tier2DailyLimit)
	cache := quota.NewFallbackCache(cfg.Quota.PlanCacheTTL, cfg.Quota.CounterCacheTTL, cfg.Quota.CounterGrace)
	counters := quota.NewRedisCounterStore(redisClient, cfg.Quota.CounterGrace)

	subRepo := subscriptions.NewRepository(pool)
	resolver := quota.NewPlanResolver(subRepo, cache, clk, cfg.Quota.StoreTimeout)
	engine := quota.NewEngine(resolver, counters, cache, clk, limits, cfg.Quota.StoreTimeout)
	quotaHandler := quota.NewHandler(engine)

	// Subscriptions
	subSvc := subscriptions.NewService(subRepo, engine, publisher)
	subHandler := subscriptions.NewHandler(subSvc)

	// Cross-instance invalidation consumer
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if natsClient != nil {
		consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
		consumer := subscriptions.NewConsumer(engine, consumerMgr, uuid.NewString())
		go func() {
			if err := consumer.Start(consumerCtx); err != nil {
				slog.Error("subscription consumer stopped", "error", err)
			}
		}()
	}

	// Auth
	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry)

	// Router
	router := api.NewRouter(pool, redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}, api.HandlerSet{
		QuotaStatus:  quotaHandler.GetStatus,
		ConsumeQuota: quotaHandler.Consume,

		UpsertSubscription: subHandler.Upsert,
		GetSubscription:    subHandler.Get,

		AuthMiddleware:  auth.Middleware(jwtManager),
		QuotaMiddleware: quota.Middleware(engine),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(stopConsumer); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
