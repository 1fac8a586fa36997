package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// NoopMetrics discards observations.
type NoopMetrics struct{}

// Observe implements MetricsRecorder.
func (NoopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// PrometheusMetrics exports operation counters and latency histograms.
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusMetrics builds the collectors and registers them with reg.
// Collectors already registered by an earlier call are reused.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calibtrack",
		Name:      "operations_total",
		Help:      "Service operations by outcome.",
	}, []string{"operation", "status"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "calibtrack",
		Name:      "operation_duration_seconds",
		Help:      "Service operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	var err error
	if ops, err = register(reg, ops); err != nil {
		return nil, err
	}
	if durations, err = register(reg, durations); err != nil {
		return nil, err
	}
	return &PrometheusMetrics{operations: ops, durations: durations}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe implements MetricsRecorder.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}
