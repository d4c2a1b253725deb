package catalog

import "github.com/prometheus/client_golang/prometheus"

var (
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "catalog",
		Name:      "upstream_requests_total",
		Help:      "Requests sent to the exercise catalog grouped by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	upstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fittracker",
		Subsystem: "catalog",
		Name:      "upstream_request_seconds",
		Help:      "Latency of exercise catalog requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "catalog",
		Name:      "cache_hits_total",
		Help:      "Catalog responses served from cache.",
	}, []string{"endpoint"})

	cacheErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "catalog",
		Name:      "cache_errors_total",
		Help:      "Cache read or write failures.",
	})
)

func init() {
	prometheus.MustRegister(upstreamRequests, upstreamLatency, cacheHits, cacheErrors)
}
