package metrics

import (
	coremetrics "github.com/parkade/parkade/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records parking events in Prometheus metrics.
type PromSink struct {
	entries      *prometheus.CounterVec
	exits        *prometheus.CounterVec
	fines        *prometheus.CounterVec
	reservations *prometheus.CounterVec
	revenue      prometheus.Counter
	occupancy    prometheus.Gauge
}

// NewPromSink registers the parking metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_entries_total",
		Help: "Vehicles admitted, by class and spot category",
	}, []string{"class", "category"})
	exits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_exits_total",
		Help: "Vehicles released, by spot category and payment method",
	}, []string{"category", "method"})
	fines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_fines_issued_total",
		Help: "Violation fines issued, by kind",
	}, []string{"kind"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_reservations_total",
		Help: "Reservation lifecycle changes, by action",
	}, []string{"action"})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_revenue_total",
		Help: "Total amount collected at exits",
	})
	occupancy := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_occupied_spots",
		Help: "Number of currently occupied spots",
	})

	for _, c := range []prometheus.Collector{entries, exits, fines, reservations, revenue, occupancy} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	s := &PromSink{entries: entries, exits: exits, fines: fines, reservations: reservations, revenue: revenue, occupancy: occupancy}
	return s, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// RecordEntry counts an admission and bumps the occupancy gauge.
func (s *PromSink) RecordEntry(ev coremetrics.EntryEvent) error {
	s.entries.WithLabelValues(ev.Class.String(), ev.Category.String()).Inc()
	s.occupancy.Inc()
	return nil
}

// RecordExit counts a release, adds the collected amount and drops the
// occupancy gauge.
func (s *PromSink) RecordExit(ev coremetrics.ExitEvent) error {
	s.exits.WithLabelValues(ev.Category.String(), ev.Method.String()).Inc()
	s.revenue.Add(ev.Total)
	s.occupancy.Dec()
	return nil
}

// RecordFine counts an issued fine by kind.
func (s *PromSink) RecordFine(ev coremetrics.FineEvent) error {
	s.fines.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}

// RecordReservation counts a reservation lifecycle change by action.
func (s *PromSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	s.reservations.WithLabelValues(ev.Action).Inc()
	return nil
}

// RecordOccupancy sets the gauge from a full facility count.
func (s *PromSink) RecordOccupancy(occupied, _ int) error {
	s.occupancy.Set(float64(occupied))
	return nil
}
