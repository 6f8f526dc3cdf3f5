package utils

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics collects per-run counters for the batch pipeline. Each run owns its
// own registry so nothing leaks between runs or tests.
type Metrics struct {
	Registry       *prometheus.Registry
	SourceRows     *prometheus.GaugeVec
	SourceFailures *prometheus.CounterVec
	StageDuration  *prometheus.GaugeVec
	PanelRows      *prometheus.GaugeVec
}

// NewMetrics registers the pipeline collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SourceRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hotel_panel_source_rows",
			Help: "Rows produced by each source loader in the last run.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotel_panel_source_failures_total",
			Help: "Source loads that degraded to an empty table.",
		}, []string{"source"}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hotel_panel_stage_duration_seconds",
			Help: "Wall time of each pipeline stage.",
		}, []string{"stage"}),
		PanelRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hotel_panel_rows",
			Help: "Rows in each written panel.",
		}, []string{"panel"}),
	}
	m.Registry.MustRegister(m.SourceRows, m.SourceFailures, m.StageDuration, m.PanelRows)
	return m
}

// ObserveStage records the duration of a stage that started at start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Set(time.Since(start).Seconds())
}

// SourceLoaded records the row count of a source, counting empty results as failures.
func (m *Metrics) SourceLoaded(source string, rows int) {
	if m == nil {
		return
	}
	m.SourceRows.WithLabelValues(source).Set(float64(rows))
	if rows == 0 {
		m.SourceFailures.WithLabelValues(source).Inc()
	}
}

// Push sends the registry to a Prometheus Pushgateway. An empty url is a no-op.
func (m *Metrics) Push(url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.Registry).Push(); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}

// PanelWritten records the row count of a written panel.
func (m *Metrics) PanelWritten(panel string, rows int) {
	if m == nil {
		return
	}
	m.PanelRows.WithLabelValues(panel).Set(float64(rows))
}
