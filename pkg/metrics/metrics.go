package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Error reporting metrics
	ErrorsTotal      *prometheus.CounterVec
	AlertsSent       *prometheus.CounterVec
	AlertsSuppressed *prometheus.CounterVec

	// Retry metrics
	RetryAttempts *prometheus.CounterVec

	// Health check metrics
	HealthCheckStatus   *prometheus.GaugeVec
	HealthCheckDuration *prometheus.HistogramVec
	HealthCycles        prometheus.Counter

	registry *prometheus.Registry
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Subsystem string `json:"subsystem"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "opswatch",
		Subsystem: "",
		Enabled:   true,
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	m := &Metrics{
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "errors_total",
				Help:      "Total number of errors reported",
			},
			[]string{"domain", "severity"},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "alerts_sent_total",
				Help:      "Total number of alert notifications dispatched",
			},
			[]string{"severity"},
		),
		AlertsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "alerts_suppressed_total",
				Help:      "Total number of alert notifications suppressed by the cooldown",
			},
			[]string{"severity"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "health_check_status",
				Help:      "Current health check status (0=healthy, 1=warning, 2=critical, 3=error)",
			},
			[]string{"check"},
		),
		HealthCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "health_check_duration_seconds",
				Help:      "Health check probe duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"check"},
		),
		HealthCycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "health_cycles_total",
				Help:      "Total number of completed health check cycles",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	// Register all metrics on an instance registry so multiple
	// instances can coexist in tests
	m.registry.MustRegister(
		m.ErrorsTotal,
		m.AlertsSent,
		m.AlertsSuppressed,
		m.RetryAttempts,
		m.HealthCheckStatus,
		m.HealthCheckDuration,
		m.HealthCycles,
	)

	return m
}

// RecordError records a classified error
func (m *Metrics) RecordError(domain, severity string) {
	if m.ErrorsTotal == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(domain, severity).Inc()
}

// RecordAlert records an alert dispatch decision
func (m *Metrics) RecordAlert(severity string, sent bool) {
	if m.AlertsSent == nil {
		return
	}
	if sent {
		m.AlertsSent.WithLabelValues(severity).Inc()
	} else {
		m.AlertsSuppressed.WithLabelValues(severity).Inc()
	}
}

// RecordRetryAttempt records a single retry attempt outcome
func (m *Metrics) RecordRetryAttempt(operation, outcome string) {
	if m.RetryAttempts == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordHealthCheck records the result of a single probe run
func (m *Metrics) RecordHealthCheck(check string, statusValue float64, duration time.Duration) {
	if m.HealthCheckStatus == nil {
		return
	}
	m.HealthCheckStatus.WithLabelValues(check).Set(statusValue)
	m.HealthCheckDuration.WithLabelValues(check).Observe(duration.Seconds())
}

// RecordHealthCycle records a completed health check cycle
func (m *Metrics) RecordHealthCycle() {
	if m.HealthCycles == nil {
		return
	}
	m.HealthCycles.Inc()
}

// Handler returns a Gin handler serving the metrics endpoint
func (m *Metrics) Handler() gin.HandlerFunc {
	if m.registry == nil {
		return func(c *gin.Context) {
			c.Status(404)
		}
	}
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
