package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nimbusfs/nimbus/pkg/drive"
)

// driveMetrics is the Prometheus implementation of drive.Metrics.
type driveMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	contentBytes      *prometheus.CounterVec
}

// NewDriveMetrics creates a Prometheus-backed drive.Metrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called), so callers can pass the result to drive.WithMetrics
// unconditionally.
func NewDriveMetrics() drive.Metrics {
	if !IsEnabled() {
		return noopDriveMetrics{}
	}

	reg := GetRegistry()

	return &driveMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_drive_operations_total",
				Help: "Total number of drive operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nimbus_drive_operation_duration_seconds",
				Help: "Duration of drive operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.025,  // 25ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.25,   // 250ms
					0.5,    // 500ms
					1.0,    // 1s
					2.5,    // 2.5s
				},
			},
			[]string{"operation"},
		),
		contentBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbus_drive_content_bytes_total",
				Help: "Total content payload bytes moved, by direction (read, write)",
			},
			[]string{"direction"},
		),
	}
}

func (m *driveMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *driveMetrics) AddContentBytes(direction string, n int64) {
	if n <= 0 {
		return
	}
	m.contentBytes.WithLabelValues(direction).Add(float64(n))
}

// noopDriveMetrics is a no-op implementation of drive.Metrics with zero
// overhead.
type noopDriveMetrics struct{}

func (noopDriveMetrics) ObserveOperation(operation string, duration time.Duration, err error) {}
func (noopDriveMetrics) AddContentBytes(direction string, n int64)                            {}
