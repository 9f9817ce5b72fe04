package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studyplan"

// Collector holds the service's Prometheus metrics on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Turns              *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	Searches           *prometheus.CounterVec
	RoadmapsSaved      *prometheus.CounterVec
	RoadmapItems       prometheus.Counter
	ItemToggles        *prometheus.CounterVec
	PersistenceMode    prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Chat turns handled, by outcome.",
			},
			[]string{"outcome"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Latency of language model generation calls.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
		),
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Web searches run for search directives, by result.",
			},
			[]string{"result"},
		),
		RoadmapsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "roadmaps_saved_total",
				Help:      "Roadmap save attempts, by status.",
			},
			[]string{"status"},
		),
		RoadmapItems: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "roadmap_items_saved_total",
				Help:      "Roadmap items written.",
			},
		),
		ItemToggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_toggles_total",
				Help:      "Item completion changes, by new state.",
			},
			[]string{"completed"},
		),
		PersistenceMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "persistence_degraded",
				Help:      "1 when persistence has fallen back to memory.",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		c.Turns,
		c.GenerationDuration,
		c.Searches,
		c.RoadmapsSaved,
		c.RoadmapItems,
		c.ItemToggles,
		c.PersistenceMode,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
	)
	return c
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) TurnHandled(outcome string, generation time.Duration) {
	if c == nil {
		return
	}
	c.Turns.WithLabelValues(outcome).Inc()
	c.GenerationDuration.Observe(generation.Seconds())
}

func (c *Collector) SearchRan(results int) {
	if c == nil {
		return
	}
	if results == 0 {
		c.Searches.WithLabelValues("empty").Inc()
		return
	}
	c.Searches.WithLabelValues("hit").Inc()
}

func (c *Collector) RoadmapSaved(status string, items int) {
	if c == nil {
		return
	}
	c.RoadmapsSaved.WithLabelValues(status).Inc()
	if status == "ok" {
		c.RoadmapItems.Add(float64(items))
	}
}

func (c *Collector) ItemToggled(completed bool) {
	if c == nil {
		return
	}
	c.ItemToggles.WithLabelValues(strconv.FormatBool(completed)).Inc()
}

func (c *Collector) SetDegraded(degraded bool) {
	if c == nil {
		return
	}
	if degraded {
		c.PersistenceMode.Set(1)
		return
	}
	c.PersistenceMode.Set(0)
}

func (c *Collector) HTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
