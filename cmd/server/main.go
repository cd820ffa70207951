package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"stock_quote/internal/app/config"
	"stock_quote/internal/app/di"
	"stock_quote/internal/app/router"
	quotehandler "stock_quote/internal/feature/quote/transport/handler"
	"stock_quote/internal/feature/quote/usecase"
	platformhttp "stock_quote/internal/platform/http"
	"stock_quote/internal/platform/http/handler"
	"stock_quote/internal/platform/logger"
	"stock_quote/internal/platform/metrics"
	platformredis "stock_quote/internal/platform/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Log)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Redis は予算共有のための任意依存
	var rdb *redis.Client
	var checks []handler.Check
	if cfg.Redis.Enabled() {
		client, err := platformredis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable. Running with a local upstream budget.", "addr", cfg.Redis.Addr(), "error", err)
		} else {
			rdb = client
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Error("failed to close Redis client", "error", err)
				}
			}()
			checks = append(checks, handler.Check{
				Name: "redis",
				Fn:   func(ctx context.Context) error { return platformredis.Ping(ctx, rdb) },
			})
		}
	}

	var limiterClient redis.UniversalClient
	if rdb != nil {
		limiterClient = rdb
	}
	limiter := di.NewBudgetLimiter(limiterClient, cfg.Budget)
	if limiter != nil {
		log.Info("upstream budget enabled", "limit", cfg.Budget.String(), "shared", rdb != nil)
	}

	providers, err := di.NewProviders(cfg, platformhttp.NewHTTPClient(cfg.UpstreamTimeout), limiter, log)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	var rec usecase.Recorder
	if cfg.MetricsEnabled {
		m = metrics.New()
		rec = m
	}

	quoteCache := di.NewQuoteCache(cfg)
	if cfg.Cache.SweepInterval > 0 {
		go quoteCache.Run(ctx, cfg.Cache.SweepInterval)
	}

	resolver, err := di.NewResolver(cfg, providers, quoteCache, rec, log)
	if err != nil {
		return err
	}

	r := router.NewRouter(router.Options{
		Logger:      log,
		Quote:       quotehandler.NewQuoteHandler(resolver),
		Metrics:     m,
		Readiness:   checks,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "providers", cfg.Providers, "cache_ttl", cfg.Cache.TTL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
