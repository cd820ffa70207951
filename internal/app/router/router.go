package router

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	quotehandler "stock_quote/internal/feature/quote/transport/handler"
	"stock_quote/internal/platform/http/handler"
	"stock_quote/internal/platform/metrics"
	"stock_quote/internal/platform/middleware"
)

// Options はルータの組み立てに必要な依存をまとめたものです。
type Options struct {
	Logger      *slog.Logger
	Quote       *quotehandler.QuoteHandler
	Metrics     *metrics.Metrics // nil なら /metrics を公開しない
	Readiness   []handler.Check
	CORSOrigins []string
}

func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(opts.Logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.OPTIONS("/healthz", handler.Health)
	r.GET("/readyz", handler.Readiness(opts.Readiness...))

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	r.GET("/stock/:symbol", opts.Quote.GetQuote)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
