// Package metrics provides Prometheus metrics for the tipe service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/store"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	ActiveLeads       prometheus.Gauge
	ResponseRate      prometheus.Gauge
	MeetingsScheduled prometheus.Gauge
	ConversionRate    prometheus.Gauge
	ApprovalRate      prometheus.Gauge
	StoreVersion      prometheus.Gauge

	ActionsTotal    *prometheus.CounterVec
	SyncsTotal      *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry

	mu      sync.Mutex
	applied uint64 // version of the stats currently in the gauges
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	m := &Metrics{
		ActiveLeads:       gauge("tipe_active_leads", "Leads waiting for review."),
		ResponseRate:      gauge("tipe_response_rate_percent", "Active conversations per approved lead, in percent."),
		MeetingsScheduled: gauge("tipe_meetings_scheduled", "Meetings in the scheduled state."),
		ConversionRate:    gauge("tipe_conversion_rate_percent", "Completed meetings per approved lead, in percent."),
		ApprovalRate:      gauge("tipe_approval_rate_percent", "Approved leads over all leads, in percent."),
		StoreVersion:      gauge("tipe_store_version", "Number of mutations applied to the store."),
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipe_store_actions_total",
				Help: "Store mutations by action.",
			},
			[]string{"action"},
		),
		SyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipe_lead_syncs_total",
				Help: "Lead source fetches by source and result code.",
			},
			[]string{"source", "result"},
		),
		SyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tipe_lead_sync_duration_seconds",
				Help:    "Lead source fetch duration.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tipe_http_requests_total",
				Help: "HTTP requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tipe_http_request_duration_seconds",
				Help:    "HTTP request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.ActiveLeads, m.ResponseRate, m.MeetingsScheduled, m.ConversionRate, m.ApprovalRate,
		m.StoreVersion, m.ActionsTotal, m.SyncsTotal, m.SyncDuration,
		m.RequestsTotal, m.RequestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one store change. It is meant to be passed to store.Subscribe.
// Changes can arrive out of order; stats older than the ones shown are ignored.
func (m *Metrics) Observe(c store.Change) {
	m.ActionsTotal.WithLabelValues(string(c.Action)).Inc()
	m.setStats(c.Version, c.Stats)
}

func (m *Metrics) setStats(version uint64, s crm.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version < m.applied {
		return
	}
	m.applied = version
	m.StoreVersion.Set(float64(version))
	m.ActiveLeads.Set(float64(s.ActiveLeads))
	m.ResponseRate.Set(s.ResponseRate)
	m.MeetingsScheduled.Set(float64(s.MeetingsScheduled))
	m.ConversionRate.Set(s.ConversionRate)
	m.ApprovalRate.Set(s.ApprovalRate)
}

// Attach subscribes m to st and seeds the gauges with the current stats.
func (m *Metrics) Attach(st *store.Store) func() {
	m.setStats(st.Version(), st.Stats())
	return st.Subscribe(m.Observe)
}

// ObserveSync records a lead source fetch. Errors are labeled by code.
func (m *Metrics) ObserveSync(source string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(errors.ErrInternal)
		if tErr, ok := errors.As(err); ok {
			result = string(tErr.Code)
		}
	}
	m.SyncsTotal.WithLabelValues(source, result).Inc()
	m.SyncDuration.WithLabelValues(source).Observe(took.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, took time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(took.Seconds())
}
