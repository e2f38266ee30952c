package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sla_consultant"

// Metrics owns the service collectors. It is an event sink for
// consultation events and an observer for outbound HTTP calls.
type Metrics struct {
	registry *prometheus.Registry

	events           *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	completions      prometheus.Counter
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	liveConsultation prometheus.GaugeFunc
}

// New registers the collectors. live reports the number of open
// consultations and may be nil.
func New(live func() int) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Consultation events by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Detected stage transitions by target stage number.",
		}, []string{"to_stage"}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consultations_completed_total",
			Help:      "Consultations that reached the completed state.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_requests_total",
			Help:      "Outbound HTTP requests by service, method and status code.",
		}, []string{"service", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbound_request_duration_seconds",
			Help:      "Outbound HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.transitions,
		m.completions,
		m.requests,
		m.requestDuration,
	)

	if live != nil {
		m.liveConsultation = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_consultations",
			Help:      "Consultations currently held in memory.",
		}, func() float64 { return float64(live()) })
		reg.MustRegister(m.liveConsultation)
	}

	return m
}

func (m *Metrics) Publish(_ context.Context, event entity.ConsultationEvent) {
	m.events.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case entity.EventTypeTransition:
		if event.Transition != nil {
			m.transitions.WithLabelValues(strconv.Itoa(event.Transition.ToStageNumber)).Inc()
		}
	case entity.EventTypeCompleted:
		m.completions.Inc()
	}
}

func (m *Metrics) ObserveRequest(service, method string, status int, duration time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(service, method, code).Inc()
	m.requestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
