package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	holdsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prohair",
			Name:      "holds_created_total",
			Help:      "Count of slot holds successfully created.",
		},
	)

	slotConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prohair",
			Name:      "slot_conflicts_total",
			Help:      "Count of hold attempts rejected because the slot was taken.",
		},
		[]string{"detected"}, // application or constraint
	)

	bookingsConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prohair",
			Name:      "bookings_confirmed_total",
			Help:      "Count of holds confirmed into bookings.",
		},
	)

	bookingsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prohair",
			Name:      "bookings_cancelled_total",
			Help:      "Count of appointments cancelled by admins.",
		},
	)

	holdsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prohair",
			Name:      "holds_swept_total",
			Help:      "Count of expired holds removed by the sweeper.",
		},
	)

	emailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "prohair",
			Name:      "confirmation_email_failures_total",
			Help:      "Count of confirmation emails that failed to send.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			holdsCreated, slotConflicts, bookingsConfirmed,
			bookingsCancelled, holdsSwept, emailFailures,
		)
	})
}

func IncHoldCreated() {
	holdsCreated.Inc()
}

// IncSlotConflict records a rejected hold; detected is "application" when
// the overlap check caught it, "constraint" when the unique index did.
func IncSlotConflict(detected string) {
	slotConflicts.WithLabelValues(detected).Inc()
}

func IncBookingConfirmed() {
	bookingsConfirmed.Inc()
}

func AddBookingsCancelled(n int64) {
	bookingsCancelled.Add(float64(n))
}

func AddHoldsSwept(n int64) {
	holdsSwept.Add(float64(n))
}

func IncEmailFailure() {
	emailFailures.Inc()
}
