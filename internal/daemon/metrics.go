package daemon

import (
	"net/http"

	"github.com/dbaasd/dbaasd/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters for dbaasd.
type Metrics struct {
	registry                 *prometheus.Registry
	databaseTransitionsTotal *prometheus.CounterVec
	idRetriesTotal           prometheus.Counter
	casesOpenedTotal         *prometheus.CounterVec
	caseResolutionsTotal     *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	databaseTransitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbaasd",
			Subsystem: "database",
			Name:      "transitions_total",
			Help:      "Total number of database lifecycle transitions.",
		},
		[]string{"from", "to"},
	)
	idRetriesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dbaasd",
			Subsystem: "database",
			Name:      "id_retries_total",
			Help:      "Total number of id allocations retried after a collision.",
		},
	)
	casesOpenedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbaasd",
			Subsystem: "helpdesk",
			Name:      "cases_opened_total",
			Help:      "Total helpdesk cases opened, by requested action.",
		},
		[]string{"action"},
	)
	caseResolutionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dbaasd",
			Subsystem: "helpdesk",
			Name:      "case_resolutions_total",
			Help:      "Total background helpdesk case resolutions, by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		databaseTransitionsTotal,
		idRetriesTotal,
		casesOpenedTotal,
		caseResolutionsTotal,
	)

	return &Metrics{
		registry:                 registry,
		databaseTransitionsTotal: databaseTransitionsTotal,
		idRetriesTotal:           idRetriesTotal,
		casesOpenedTotal:         casesOpenedTotal,
		caseResolutionsTotal:     caseResolutionsTotal,
	}
}

// Handler returns an HTTP handler that serves the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncTransition(from, to models.DatabaseStatus) {
	if m == nil {
		return
	}
	m.databaseTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) IncIDRetry() {
	if m == nil {
		return
	}
	m.idRetriesTotal.Inc()
}

func (m *Metrics) IncCaseOpened(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.casesOpenedTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) IncCaseResolution(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.caseResolutionsTotal.WithLabelValues(result).Inc()
}
