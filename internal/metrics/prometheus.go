package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Record operations counted by RecordsTotal.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	RecordsTotal        *prometheus.CounterVec
	RowsExportedTotal   prometheus.Counter
	TokensIssuedTotal   prometheus.Counter
	AuthFailuresTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stats_records_total",
			Help: "Total number of search statistic records written, by operation.",
		}, []string{"operation"}),
		RowsExportedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stats_csv_rows_exported_total",
			Help: "Total number of CSV data rows streamed to clients.",
		}),
		TokensIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stats_tokens_issued_total",
			Help: "Total number of access tokens issued.",
		}),
		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stats_auth_failures_total",
			Help: "Total number of rejected credentials and tokens.",
		}, []string{"kind"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stats_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	if reg == nil {
		return m
	}

	for name, c := range map[string]prometheus.Collector{
		"RecordsTotal":        m.RecordsTotal,
		"RowsExportedTotal":   m.RowsExportedTotal,
		"TokensIssuedTotal":   m.TokensIssuedTotal,
		"AuthFailuresTotal":   m.AuthFailuresTotal,
		"HTTPRequestDuration": m.HTTPRequestDuration,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")

	return m
}

// RecordWritten counts a successful record operation.
func (m *Metrics) RecordWritten(op string) {
	m.RecordsTotal.WithLabelValues(op).Inc()
}

// AuthFailed counts a rejected credential or token by error kind.
func (m *Metrics) AuthFailed(kind string) {
	m.AuthFailuresTotal.WithLabelValues(kind).Inc()
}
