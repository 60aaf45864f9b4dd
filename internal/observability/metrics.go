package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vetbook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	bookingOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Subsystem: "booking",
			Name:      "outcomes_total",
			Help:      "Booking attempts by outcome.",
		},
		[]string{"outcome", "home_visit"},
	)
	appointmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Subsystem: "booking",
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions.",
		},
		[]string{"status"},
	)
	generatedSlots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Subsystem: "schedule",
			Name:      "slots_total",
			Help:      "Slots considered by mass schedule generation.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bookingOutcomes, appointmentTransitions, generatedSlots)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordBooking counts one booking attempt; outcome is "booked", "conflict",
// "invalid" or "error".
func RecordBooking(outcome string, homeVisit bool) {
	RegisterMetrics()
	bookingOutcomes.WithLabelValues(outcome, strconv.FormatBool(homeVisit)).Inc()
}

func RecordAppointmentTransition(status string) {
	RegisterMetrics()
	appointmentTransitions.WithLabelValues(status).Inc()
}

// RecordGeneratedSlots counts one generation run. Vet ids are caller input and
// stay out of the labels.
func RecordGeneratedSlots(created, skippedExisting, skippedPast int) {
	RegisterMetrics()
	generatedSlots.WithLabelValues("created").Add(float64(created))
	generatedSlots.WithLabelValues("existing").Add(float64(skippedExisting))
	generatedSlots.WithLabelValues("past").Add(float64(skippedPast))
}
