package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gas estimator
type Metrics struct {
	// Estimation metrics
	EstimatesServed  prometheus.Counter
	EstimatesFailed  *prometheus.CounterVec
	EstimateDuration prometheus.Histogram

	// RPC Pool metrics
	RPCRequestsTotal  *prometheus.CounterVec
	RPCRequestsFailed *prometheus.CounterVec
	RPCLatency        *prometheus.HistogramVec
	RPCHealthyNodes   prometheus.Gauge

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics returns the singleton Metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		EstimatesServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "estimator_estimates_served_total",
			Help: "Total number of gas estimates successfully served",
		}),
		EstimatesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estimator_estimates_failed_total",
			Help: "Total number of failed estimation requests by reason",
		}, []string{"reason"}),
		EstimateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "estimator_estimate_duration_seconds",
			Help:    "Duration of complete estimation requests",
			Buckets: prometheus.DefBuckets,
		}),
		RPCRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estimator_rpc_requests_total",
			Help: "Total RPC requests by endpoint and method",
		}, []string{"endpoint", "method"}),
		RPCRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estimator_rpc_requests_failed_total",
			Help: "Failed RPC requests by endpoint and method",
		}, []string{"endpoint", "method"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "estimator_rpc_latency_seconds",
			Help:    "RPC request latency by endpoint and method",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "method"}),
		RPCHealthyNodes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "estimator_rpc_healthy_nodes",
			Help: "Number of RPC endpoints currently considered alive",
		}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estimator_cache_hits_total",
			Help: "Cache hits by key class",
		}, []string{"class"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "estimator_cache_misses_total",
			Help: "Cache misses by key class",
		}, []string{"class"}),
	}
}
