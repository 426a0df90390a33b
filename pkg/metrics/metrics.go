// Package metrics instruments the evolutionary loop with Prometheus
// collectors, grounded in the teacher pack's
// internal/service/metrics_service.go (noah-isme-sma-adp-api): a private
// registry, promhttp handler, and nil-receiver methods so an unwired
// *Collector is always safe to call.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments the evolutionary loop
// reports to.
type Collector struct {
	registry    *prometheus.Registry
	handler     http.Handler
	generations prometheus.Counter
	bestFitness prometheus.Gauge
	runDuration prometheus.Histogram
	runsTotal   *prometheus.CounterVec
}

// New registers the scheduling-run collectors against a fresh registry.
func New() *Collector {
	registry := prometheus.NewRegistry()

	generations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ga_generations_total",
		Help: "Total number of evolutionary-loop generations evaluated across all runs",
	})

	bestFitness := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ga_best_fitness",
		Help: "Best (lowest) fitness score observed in the most recent run",
	})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ga_run_duration_seconds",
		Help:    "Wall-clock duration of a full engine run",
		Buckets: prometheus.DefBuckets,
	})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ga_runs_total",
		Help: "Total number of engine runs by outcome",
	}, []string{"status"})

	registry.MustRegister(generations, bestFitness, runDuration, runsTotal)

	return &Collector{
		registry:    registry,
		handler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		generations: generations,
		bestFitness: bestFitness,
		runDuration: runDuration,
		runsTotal:   runsTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return c.handler
}

// ObserveGeneration records one completed generation and its best score so
// far, called once per generation boundary from the evolutionary loop.
func (c *Collector) ObserveGeneration(bestScore float64) {
	if c == nil {
		return
	}
	c.generations.Inc()
	c.bestFitness.Set(bestScore)
}

// ObserveRun records the wall-clock duration and terminal status
// ("success", "degraded", "cancelled") of a finished engine run.
func (c *Collector) ObserveRun(status string, durationSeconds float64) {
	if c == nil {
		return
	}
	c.runDuration.Observe(durationSeconds)
	c.runsTotal.WithLabelValues(status).Inc()
}

// Observer adapts a Collector to evolution.Observer, reporting each
// generation boundary without imposing any cancellation policy of its
// own; wrap it alongside a caller-supplied cancellation check if needed.
type Observer struct {
	Collector *Collector
	Cancel    func() bool
}

func (o Observer) OnGeneration(generation int, bestScore float64) {
	o.Collector.ObserveGeneration(bestScore)
}

func (o Observer) Cancelled() bool {
	if o.Cancel == nil {
		return false
	}
	return o.Cancel()
}
