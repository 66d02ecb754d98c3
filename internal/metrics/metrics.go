// Package metrics exposes the Prometheus collectors shared by the proxy's
// outbound fetch layer, its caches, the token provider and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ahoy"

// Collector is safe for concurrent use. All Record methods are no-ops on a
// nil receiver so callers can leave metrics unset.
type Collector struct {
	downstreamRequests *prometheus.CounterVec
	downstreamDuration *prometheus.HistogramVec
	downstreamInFlight *prometheus.GaugeVec
	retriesTotal       *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	tokenExchanges      *prometheus.CounterVec
	enrichmentFallbacks *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	buildInfo *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewCollector creates a collector on a fresh registry that also carries the
// Go runtime and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewCollectorWithRegistry(registry)
}

// NewCollectorWithRegistry registers every collector on registry.
func NewCollectorWithRegistry(registry *prometheus.Registry) *Collector {
	factory := promauto.With(registry)
	return &Collector{
		downstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downstream_requests_total",
				Help:      "Total number of outbound HTTP attempts",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		downstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "downstream_request_duration_seconds",
				Help:      "Duration of outbound HTTP calls including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		downstreamInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "downstream_requests_in_flight",
				Help:      "Number of outbound HTTP calls currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downstream_retries_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downstream_errors_total",
				Help:      "Total number of outbound errors by type",
			},
			[]string{"type", "endpoint"},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
		cacheSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_size",
				Help:      "Current number of entries in cache, expired ones included",
			},
			[]string{"cache"},
		),
		tokenExchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_exchanges_total",
				Help:      "Access token acquisitions by outcome",
			},
			[]string{"outcome"},
		),
		enrichmentFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_fallbacks_total",
				Help:      "Listings returned with default data instead of enriched data",
			},
			[]string{"reason"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Inbound HTTP requests served",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Inbound HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build metadata, value is always 1",
			},
			[]string{"version", "commit", "go_version"},
		),
		registry: registry,
	}
}

// RecordDownstream records one outbound attempt.
func (c *Collector) RecordDownstream(method, endpoint string, statusCode int) {
	if c == nil {
		return
	}
	c.downstreamRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordDownstreamDuration observes a whole call, retries included.
func (c *Collector) RecordDownstreamDuration(method, endpoint string, duration time.Duration) {
	if c == nil {
		return
	}
	c.downstreamDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (c *Collector) RecordDownstreamStart(method, endpoint string) {
	if c == nil {
		return
	}
	c.downstreamInFlight.WithLabelValues(method, endpoint).Inc()
}

func (c *Collector) RecordDownstreamEnd(method, endpoint string) {
	if c == nil {
		return
	}
	c.downstreamInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (c *Collector) RecordRetry(method, endpoint string, attempt int) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordError increments error counter by type.
func (c *Collector) RecordError(errorType, endpoint string) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordCircuitBreakerState sets the gauge from the breaker's state name.
func (c *Collector) RecordCircuitBreakerState(name, state string) {
	if c == nil {
		return
	}

	var value float64
	switch state {
	case "open":
		value = 1
	case "half-open":
		value = 2
	}
	c.circuitBreakerState.WithLabelValues(name).Set(value)
}

func (c *Collector) RecordCacheHit(cache string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cache).Inc()
}

func (c *Collector) RecordCacheMiss(cache string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cache).Inc()
}

func (c *Collector) RecordCacheSize(cache string, size int) {
	if c == nil {
		return
	}
	c.cacheSize.WithLabelValues(cache).Set(float64(size))
}

// RecordTokenExchange counts token acquisitions; outcome is "success" or the
// failing stage.
func (c *Collector) RecordTokenExchange(outcome string) {
	if c == nil {
		return
	}
	c.tokenExchanges.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordEnrichmentFallback(reason string) {
	if c == nil {
		return
	}
	c.enrichmentFallbacks.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records one inbound request against its route pattern.
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) SetBuildInfo(version, commit, goVersion string) {
	if c == nil {
		return
	}
	c.buildInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// Registry exposes the underlying prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
