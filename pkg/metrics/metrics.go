// Package metrics 定义全部 Prometheus 指标（promauto 注册到默认 Registry）。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 重算
	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoprec_recompute_duration_seconds",
			Help:    "Duration of a per-user recommendation recompute",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_recompute_total",
			Help: "Total number of recomputes by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	RecomputeCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shoprec_recompute_candidates",
			Help:    "Number of recommendations written per recompute",
			Buckets: []float64{0, 1, 5, 10, 15, 20, 50},
		},
	)

	// 读路径
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_recommendations_served_total",
			Help: "Total number of recommendation reads by source",
		},
		[]string{"source"}, // "personalized", "popular"
	)

	// 写路径
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_interactions_total",
			Help: "Total number of recorded interactions by action",
		},
		[]string{"action"},
	)

	RelationsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_relations_recorded_total",
			Help: "Total number of recorded co-occurrences by origin",
		},
		[]string{"origin"}, // "api", "miner"
	)

	// 异步重算队列
	RefreshEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoprec_refresh_enqueued_total",
			Help: "Total number of recompute requests published to the refresh queue",
		},
	)

	RefreshDebounced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoprec_refresh_debounced_total",
			Help: "Total number of recompute requests collapsed by the debounce window",
		},
	)

	RefreshPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoprec_refresh_pending",
			Help: "Users waiting for a debounced recompute",
		},
	)

	// 热门兜底
	PopularityCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_popularity_cache_total",
			Help: "Popularity list lookups by cache result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	PopularityBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shoprec_popularity_breaker_open",
			Help: "1 when the popularity source circuit breaker is open",
		},
	)

	// 共现挖掘
	CooccurOrdersProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoprec_cooccur_orders_processed_total",
			Help: "Total number of completed orders consumed by the co-occurrence miner",
		},
	)

	CooccurRunErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shoprec_cooccur_run_errors_total",
			Help: "Total number of failed co-occurrence miner runs",
		},
	)

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoprec_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
