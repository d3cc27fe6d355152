// Package metrics provides Prometheus metrics for the reservation core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics.
type Metrics struct {
	SlotsGenerated  prometheus.Counter
	SlotsPersisted  prometheus.Counter
	SlotsRejected   prometheus.Counter
	BookingsTotal   *prometheus.CounterVec
	BookingDuration prometheus.Histogram
	JoinChecksTotal *prometheus.CounterVec
}

// Booking outcome label values.
const (
	OutcomeBooked        = "booked"
	OutcomeNotFound      = "slot_not_found"
	OutcomeAlreadyBooked = "slot_already_booked"
	OutcomeInPast        = "slot_in_past"
	OutcomeError         = "error"
)

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SlotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slots_generated_total",
			Help: "Slot candidates emitted by the recurring generator",
		}),
		SlotsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slots_persisted_total",
			Help: "Slots successfully written to the store",
		}),
		SlotsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slots_rejected_total",
			Help: "Slot candidates dropped because they were in the past",
		}),
		BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Booking attempts by outcome",
		}, []string{"outcome"}),
		BookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_duration_seconds",
			Help:    "Duration of the atomic reservation operation",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		JoinChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "join_checks_total",
			Help: "Join-window checks by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.SlotsGenerated,
		m.SlotsPersisted,
		m.SlotsRejected,
		m.BookingsTotal,
		m.BookingDuration,
		m.JoinChecksTotal,
	)

	return m
}
