// Package metrics はクオートサービスの Prometheus 指標を提供します。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stock_quote/internal/feature/quote/usecase"
)

const namespace = "stock_quote"

// Metrics は指標の集合です。専用の Registry に登録されます。
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups    *prometheus.CounterVec
	upstreamResults *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var _ usecase.Recorder = (*Metrics)(nil)

// New はすべての指標を作成して登録します。Go ランタイムとプロセスの指標も含みます。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Quote cache lookups by result.",
		}, []string{"result"}),
		upstreamResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_results_total",
			Help:      "Provider fetch results by provider and outcome.",
		}, []string{"provider", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Quote resolutions by outcome.",
		}, []string{"outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.cacheLookups,
		m.upstreamResults,
		m.resolutions,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry は指標が登録されている Registry を返します。
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// CacheHit は usecase.Recorder を実装します。
func (m *Metrics) CacheHit() { m.cacheLookups.WithLabelValues("hit").Inc() }

// CacheMiss は usecase.Recorder を実装します。
func (m *Metrics) CacheMiss() { m.cacheLookups.WithLabelValues("miss").Inc() }

// Upstream は usecase.Recorder を実装します。
func (m *Metrics) Upstream(provider, outcome string) {
	m.upstreamResults.WithLabelValues(provider, outcome).Inc()
}

// Resolution は usecase.Recorder を実装します。
func (m *Metrics) Resolution(outcome string) {
	m.resolutions.WithLabelValues(outcome).Inc()
}

// Handler は Registry を Prometheus のテキスト形式で公開します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware はルートテンプレート単位でリクエスト処理時間を記録します。
// /stock/:symbol はシンボルによらず1系列になります。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
