// Package metrics exposes pipeline counters and latencies in the
// Prometheus exposition format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPrefix namespaces every metric.
const DefaultPrefix = "tagwriting"

// Run outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeNoDirective = "no_directive"
	OutcomeRewritten   = "rewritten"
	OutcomeDuplicate   = "duplicate"
	OutcomeFailed      = "failed"
)

// Collector owns a private registry so tests and multiple watchers do not
// collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	rewrites      prometheus.Counter
	fetches       *prometheus.CounterVec
	cacheHits     *prometheus.CounterVec
	generation    *prometheus.HistogramVec
	runDuration   prometheus.Histogram
	lastSuccessTS prometheus.Gauge
}

// NewCollector creates and registers the metrics under prefix.
func NewCollector(prefix string) *Collector {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		rewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "rewrites_total",
			Help:      "Alias tags rewritten into prompt directives.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "reference_fetches_total",
			Help:      "Remote reference lookups by kind and outcome.",
		}, []string{"kind", "outcome"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Name:      "reference_cache_hits_total",
			Help:      "Reference lookups answered from the cache.",
		}, []string{"kind"}),
		generation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prefix,
			Name:      "generation_duration_seconds",
			Help:      "Latency of generation requests.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"directive", "outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: prefix,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prefix,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that changed a document.",
		}),
	}

	c.registry.MustRegister(
		c.runs,
		c.rewrites,
		c.fetches,
		c.cacheHits,
		c.generation,
		c.runDuration,
		c.lastSuccessTS,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRun records the outcome and duration of one pipeline run.
func (c *Collector) ObserveRun(outcome string, d time.Duration) {
	c.runs.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(d.Seconds())
	if outcome == OutcomeSuccess {
		c.lastSuccessTS.SetToCurrentTime()
	}
}

// ObserveRewrite counts an applied rewrite rule.
func (c *Collector) ObserveRewrite() {
	c.rewrites.Inc()
}

// ObserveGeneration records one generation request.
func (c *Collector) ObserveGeneration(directive string, d time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	c.generation.WithLabelValues(directive, outcome).Observe(d.Seconds())
}

// ObserveFetch counts a remote reference lookup.
func (c *Collector) ObserveFetch(kind, outcome string) {
	c.fetches.WithLabelValues(kind, outcome).Inc()
}

// ObserveCacheHit counts a lookup served from the cache.
func (c *Collector) ObserveCacheHit(kind string) {
	c.cacheHits.WithLabelValues(kind).Inc()
}

// Handler serves /metrics and a trivial /healthz.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
