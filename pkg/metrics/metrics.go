// Package metrics owns the service's Prometheus collectors. All methods are
// safe on a nil *Registry, which records nothing.
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

const namespace = "supportbot"

// DefaultBuckets are the latency buckets (in seconds).
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Registry holds the collectors on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	questions      *prometheus.CounterVec
	confidence     prometheus.Histogram
	processingTime prometheus.Histogram
	strategies     *prometheus.CounterVec
	sourceOutcomes *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	events         *prometheus.CounterVec
	configUpdates  *prometheus.CounterVec
}

// New creates a Registry with process and Go runtime collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		questions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"outcome"}),
		confidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_confidence",
			Help:      "Confidence attached to answers.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		processingTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_processing_seconds",
			Help:      "Time spent answering one question.",
			Buckets:   DefaultBuckets,
		}),
		strategies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fusion_strategy_total",
			Help:      "Fusion strategies selected.",
		}, []string{"strategy"}),
		sourceOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_search_total",
			Help:      "Source searches, by source and status.",
		}, []string{"source", "status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   DefaultBuckets,
		}, []string{"method", "route"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_events_total",
			Help:      "Answer events handed to the publisher, by result.",
		}, []string{"result"}),
		configUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_updates_total",
			Help:      "Runtime setting updates, by result.",
		}, []string{"result"}),
	}
}

// ObserveAnswer records one answered question.
func (r *Registry) ObserveAnswer(outcome string, confidence float64, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.questions.WithLabelValues(outcome).Inc()
	r.confidence.Observe(confidence)
	r.processingTime.Observe(elapsed.Seconds())
}

// ObserveStrategy records a fusion strategy selection.
func (r *Registry) ObserveStrategy(strategy string) {
	if r == nil {
		return
	}
	r.strategies.WithLabelValues(strategy).Inc()
}

// ObserveSource records the status of one source search.
func (r *Registry) ObserveSource(source, status string) {
	if r == nil {
		return
	}
	r.sourceOutcomes.WithLabelValues(source, status).Inc()
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveEvent records an answer event publication attempt.
func (r *Registry) ObserveEvent(err error) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(result(err)).Inc()
}

// ObserveConfigUpdate records a runtime settings update attempt.
func (r *Registry) ObserveConfigUpdate(err error) {
	if r == nil {
		return
	}
	r.configUpdates.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler returns an http.Handler that serves /metrics.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
