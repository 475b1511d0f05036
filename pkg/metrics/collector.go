// Package metrics exposes prometheus collectors for the widget engine: step
// transitions, gateway calls, commands, and surfaced errors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxr/airtime-widget/internal/flow"
	"github.com/fluxr/airtime-widget/internal/gateway"
)

var (
	widgetCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_commands_total",
			Help: "Total number of widget commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	stepTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "step_transitions_total",
			Help: "Total number of checkout step transitions",
		},
		[]string{"from", "to"},
	)
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of gateway calls labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	gatewayRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of surfaced errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
)

func init() {
	flow.RegisterTransitionRecorder(RecordStepTransition)
	gateway.RegisterRequestRecorder(RecordGatewayRequest)
}

// RecordCommand increments command counters.
func RecordCommand(command, status string) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	widgetCommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordStepTransition tracks flow transitions.
func RecordStepTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stepTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordGatewayRequest tracks gateway call counts and latency.
func RecordGatewayRequest(operation, status string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	gatewayRequestsTotal.WithLabelValues(operation, status).Inc()
	gatewayRequestDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}
