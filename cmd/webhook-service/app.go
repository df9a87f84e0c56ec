package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/inbound"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/internal/management"
	"github.com/xkayo32/pytake-sub002/internal/queue"
	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/internal/webhook"
	"github.com/xkayo32/pytake-sub002/internal/worker"
	"github.com/xkayo32/pytake-sub002/pkg/bootstrap"
	"github.com/xkayo32/pytake-sub002/pkg/circuitbreaker"
	"github.com/xkayo32/pytake-sub002/pkg/health"
	"github.com/xkayo32/pytake-sub002/pkg/metrics"
	"github.com/xkayo32/pytake-sub002/pkg/middleware"
	"github.com/xkayo32/pytake-sub002/pkg/ratelimit"
	"github.com/xkayo32/pytake-sub002/pkg/tracing"
)

type App struct {
	*bootstrap.Base

	redisConnector *bootstrap.RedisConnector
	redis          *redis.Client
	queue          *queue.Queue
	registry       *tenant.Registry
	dispatcher     *webhook.Dispatcher
	worker         *worker.RetryWorker
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:           bootstrap.NewBase(cfg, log),
		redisConnector: bootstrap.NewRedisConnector(cfg.Redis, log),
		registry:       tenant.NewRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterWebhookMetrics()
	metrics.RegisterQueueMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterManagementMetrics()

	if err := a.initQueue(ctx); err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}

	if err := a.initTenants(ctx); err != nil {
		return fmt.Errorf("failed to load tenants: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initDispatcher()

	if a.Config.Worker.Enabled {
		a.worker = worker.NewRetryWorker(a.queue, a.dispatcher, a.Config.Worker, worker.WithLogger(a.Logger))
	}

	a.initRouter(ctx)
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	return nil
}

func (a *App) initQueue(ctx context.Context) error {
	rdb, err := a.redisConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	a.queue = queue.New(queue.NewRedisStore(rdb),
		queue.WithKeyPrefix(a.Config.Queue.KeyPrefix),
		queue.WithPromoteBatchSize(a.Config.Queue.PromoteBatchSize),
		queue.WithLogger(a.Logger),
	)
	return nil
}

func (a *App) initTenants(ctx context.Context) error {
	for _, tc := range a.Config.Tenants {
		if err := a.registry.Configure(tc.ToTenant(a.Config.Delivery.DefaultRetryPolicy)); err != nil {
			return fmt.Errorf("tenant %s: %w", tc.ID, err)
		}
	}
	a.Logger.InfowCtx(ctx, "Tenants loaded", "count", len(a.Config.Tenants))
	return nil
}

func (a *App) initDispatcher() {
	senderOpts := []webhook.SenderOption{
		webhook.WithUserAgent(a.Config.Delivery.UserAgent),
	}

	if cb := a.Config.CircuitBreaker; cb.Enabled {
		base := circuitbreaker.DefaultConfig("webhook")
		base.MaxRequests = cb.MaxRequests
		base.Interval = cb.Interval
		base.Timeout = cb.Timeout
		base.FailureRatio = cb.FailureRatio
		base.MinRequests = cb.MinRequests
		base.OnStateChange = func(name string, from, to gobreaker.State) {
			a.Logger.Warnw("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}
		senderOpts = append(senderOpts, webhook.WithCircuitBreakers(circuitbreaker.NewGroup(base)))
	}

	sender := webhook.NewSender(a.Config.Delivery.Timeout, senderOpts...)
	a.dispatcher = webhook.NewDispatcher(a.registry, a.queue, sender,
		webhook.WithPublisher(a.Publisher),
		webhook.WithLogger(a.Logger),
	)
}

func (a *App) initRouter(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redis))
	healthRegistry.Register(health.NewQueueChecker(a.queue))
	router.GET("/health", healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	inboundRoutes := router.Group("")
	adminRoutes := router.Group("")
	if rl := a.Config.Management.RateLimit; rl.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
		}
		adminRoutes.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))

		// Meta calls from a shared pool of addresses, so inbound traffic is limited per tenant.
		rateLimitConfig.Key = ratelimit.PathParam("tenant_id")
		inboundRoutes.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	inbound.NewHandler(a.dispatcher, a.registry, a.Config.WhatsApp, a.Logger).RegisterRoutes(inboundRoutes)

	svc := management.NewService(a.registry, a.dispatcher, a.queue,
		management.WithDefaultRetryPolicy(a.Config.Delivery.DefaultRetryPolicy),
		management.WithLogger(a.Logger),
	)
	management.NewHandler(svc, a.Logger).RegisterRoutes(adminRoutes)

	a.router = router
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		timeout := a.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = constants.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	if a.worker != nil {
		g.Go(func() error {
			return a.worker.Run(gCtx)
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down webhook service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.redisConnector.Shutdown(a.redis)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
