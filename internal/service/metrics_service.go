package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsService exposes Prometheus instruments for the reporting pipeline.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	reportSeconds *prometheus.HistogramVec
	scheduledRuns *prometheus.CounterVec
	emailsSent    *prometheus.CounterVec
	exportJobs    *prometheus.CounterVec
}

// NewMetricsService registers all collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	m := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		reportSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "report_generation_seconds",
			Help:    "Report generation duration by report type.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"type"}),
		scheduledRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduled_runs_total",
			Help: "Scheduled report runs by terminal status.",
		}, []string{"status"}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_emails_total",
			Help: "Report delivery attempts by outcome.",
		}, []string{"outcome"}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "export_jobs_total",
			Help: "Export jobs by terminal status.",
		}, []string{"status"}),
	}

	registry.MustRegister(m.httpRequests, m.httpDuration, m.reportSeconds,
		m.scheduledRuns, m.emailsSent, m.exportJobs)
	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records one completed HTTP request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveReportGeneration records one report generation duration.
func (m *MetricsService) ObserveReportGeneration(reportType string, duration time.Duration) {
	m.reportSeconds.WithLabelValues(reportType).Observe(duration.Seconds())
}

// CountScheduledRun records a terminal scheduled run status.
func (m *MetricsService) CountScheduledRun(status string) {
	m.scheduledRuns.WithLabelValues(status).Inc()
}

// CountEmail records a delivery attempt outcome.
func (m *MetricsService) CountEmail(outcome string) {
	m.emailsSent.WithLabelValues(outcome).Inc()
}

// CountExportJob records a terminal export job status.
func (m *MetricsService) CountExportJob(status string) {
	m.exportJobs.WithLabelValues(status).Inc()
}
