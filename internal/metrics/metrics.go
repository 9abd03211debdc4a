// Package metrics holds the Prometheus counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sentryroute"

// Reasons a route skips a whole batch.
const (
	ReasonEmpty    = "empty"
	ReasonNoClient = "no_client"
	ReasonFiltered = "filtered"
)

var (
	recordsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_received_total",
		Help:      "The number of log records handed to a route",
	}, []string{"route"})

	recordsForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_forwarded_total",
		Help:      "The number of log records captured by the reporting client",
	}, []string{"route", "severity"})

	batchesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_skipped_total",
		Help:      "The number of batches a route did not forward",
	}, []string{"route", "reason"})

	captureErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_errors_total",
		Help:      "The number of capture calls that failed",
	}, []string{"route"})
)

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(recordsReceived, recordsForwarded, batchesSkipped, captureErrors)
}

// InitRoute pre-creates the label sets of a route so they are exported as zero.
func InitRoute(route string) {
	recordsReceived.WithLabelValues(route).Add(0)
	captureErrors.WithLabelValues(route).Add(0)
	for _, reason := range []string{ReasonEmpty, ReasonNoClient, ReasonFiltered} {
		batchesSkipped.WithLabelValues(route, reason).Add(0)
	}
}

func RecordsReceived(route string, n int) {
	recordsReceived.WithLabelValues(route).Add(float64(n))
}

func RecordForwarded(route, severity string) {
	recordsForwarded.WithLabelValues(route, severity).Inc()
}

func BatchSkipped(route, reason string) {
	batchesSkipped.WithLabelValues(route, reason).Inc()
}

func CaptureError(route string) {
	captureErrors.WithLabelValues(route).Inc()
}
