// Package metrics holds the Prometheus collectors of the service.  They are
// registered with the default registry and served on GET /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_operations_total",
			Help: "Reservation operations by name and outcome code",
		},
		[]string{"operation", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_operation_duration_seconds",
			Help:    "Duration of reservation units of work",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	waitlistOffers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_offers_total",
			Help: "Waitlist entries moved to NOTIFIED",
		},
	)

	waitlistExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_offers_expired_total",
			Help: "Waitlist offers that lapsed without confirmation",
		},
	)

	locksSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seat_locks_swept_total",
			Help: "Expired seat lock rows removed by the sweep",
		},
	)

	notificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Notifications that could not be published",
		},
		[]string{"channel"},
	)

	invariantViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seat_invariant_violations_total",
			Help: "Seats found with more than one active occupant",
		},
	)

	streamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_stream_clients",
			Help: "Open server-sent event streams",
		},
	)
)

// ObserveOperation records one reservation operation.
func ObserveOperation(op, result string, started time.Time) {
	operations.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func WaitlistOffered(n int) { waitlistOffers.Add(float64(n)) }

func WaitlistExpired(n int) { waitlistExpired.Add(float64(n)) }

func LocksSwept(n int64) { locksSwept.Add(float64(n)) }

// NotificationFailed counts a failed publish on channel (queue or stream).
func NotificationFailed(channel string) { notificationFailures.WithLabelValues(channel).Inc() }

func InvariantViolation() { invariantViolations.Inc() }

// StreamOpened and StreamClosed track open SSE connections.
func StreamOpened() { streamClients.Inc() }

func StreamClosed() { streamClients.Dec() }
