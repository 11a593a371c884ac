// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_total",
			Help: "Publish operations by kind (publish, rollback) and outcome (ok, error).",
		}, []string{"kind", "outcome"})

	PublishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "publish_duration_seconds",
			Help:    "Wall time of publish and rollback operations.",
			Buckets: prometheus.DefBuckets,
		})

	AutosaveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autosave_sessions",
			Help: "Number of per-site autosave coordinators currently held in memory.",
		})

	AutosaveFlushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosave_flush_total",
			Help: "Autosave flush cycles by outcome (ok, partial).",
		}, []string{"outcome"})

	AutosaveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosave_writes_total",
			Help: "Individual autosave writes by target kind and outcome.",
		}, []string{"kind", "outcome"})

	AutosaveEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autosave_evict_total",
			Help: "Cumulative number of idle autosave sessions closed.",
		})

	ResolverCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_cache_total",
			Help: "Public resolver cache lookups by result (hit, miss, error).",
		}, []string{"result"})

	ResolverInvalidateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resolver_invalidate_total",
			Help: "Cumulative number of cached sites invalidated by publish events.",
		})

	HostingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hosting_requests_total",
			Help: "Calls to the hosting API by operation and status class.",
		}, []string{"op", "status"})

	RenderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_total",
			Help: "Public page renders by result (hit, miss, error).",
		}, []string{"result"})

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(
		PublishTotal,
		PublishDuration,
		AutosaveSessions,
		AutosaveFlushTotal,
		AutosaveWritesTotal,
		AutosaveEvictTotal,
		ResolverCacheTotal,
		ResolverInvalidateTotal,
		HostingRequestsTotal,
		RenderTotal,
		HTTPRequestDuration,
	)
}
