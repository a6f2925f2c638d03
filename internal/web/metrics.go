package web

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics exposes Prometheus collectors that report query API activity and
// agenda reloads.
type Metrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	agendaEvents prometheus.Gauge
	reloads      *prometheus.CounterVec
}

// NewMetrics registers the API collectors, plus the Go runtime and process
// collectors, on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agendacal",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Query API requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "agendacal",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Time spent answering query API requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		agendaEvents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "agendacal",
				Name:      "agenda_events",
				Help:      "Number of events in the served agenda.",
			},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agendacal",
				Name:      "agenda_reloads_total",
				Help:      "Agenda reload attempts by result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(
		m.requests,
		m.latency,
		m.agendaEvents,
		m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observeRequest(route string, code int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) setAgendaEvents(n int) {
	m.agendaEvents.Set(float64(n))
}

func (m *Metrics) observeReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}
