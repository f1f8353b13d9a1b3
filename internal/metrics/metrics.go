// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	NotificationsCreated *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	AttendanceChanges    *prometheus.CounterVec
	StorageOps           *prometheus.CounterVec
	EmailsQueued         *prometheus.CounterVec
	EmailDeliveries      *prometheus.CounterVec
	SSEClients           prometheus.Gauge
}

// New registers the application collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyhub_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		NotificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_notifications_created_total",
			Help: "Notifications persisted, by type.",
		}, []string{"type"}),
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_notification_failures_total",
			Help: "Notification fan-outs that failed to persist, by type.",
		}, []string{"type"}),
		AttendanceChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_attendance_transitions_total",
			Help: "Attendance writes by outcome (created, changed, unchanged).",
		}, []string{"outcome"}),
		StorageOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_storage_operations_total",
			Help: "File store operations by driver, operation and result.",
		}, []string{"driver", "op", "result"}),
		EmailsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_emails_total",
			Help: "Emails handed to the task queue, by kind and result.",
		}, []string{"kind", "result"}),
		EmailDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_email_deliveries_total",
			Help: "Delivery attempts by mailer and result.",
		}, []string{"mailer", "result"}),
		SSEClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "studyhub_sse_clients",
			Help: "Connected notification stream clients.",
		}),
	}
}

var (
	registry *prometheus.Registry
	defaults *Metrics
	once     sync.Once
)

func initDefault() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		defaults = New(registry)
	})
}

// Default returns the process-wide collectors.
func Default() *Metrics {
	initDefault()
	return defaults
}

// Registry is the registry served on /metrics.
func Registry() *prometheus.Registry {
	initDefault()
	return registry
}
