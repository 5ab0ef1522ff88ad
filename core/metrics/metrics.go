// Package metrics defines the observability contracts of the parking
// engine. Sinks (Prometheus, InfluxDB) live in infra/metrics.
package metrics

import (
	"time"

	"github.com/parkade/parkade/core/model"
)

// EntryEvent is recorded when a vehicle is admitted.
type EntryEvent struct {
	Plate    string
	Class    model.VehicleClass
	SpotID   string
	Category model.SpotCategory
	Time     time.Time
}

// ExitEvent is recorded when a vehicle leaves and pays.
type ExitEvent struct {
	Plate         string
	SpotID        string
	Category      model.SpotCategory
	DurationHours int
	ParkingFee    float64
	FineAmount    float64
	Total         float64
	Method        model.PaymentMethod
	Time          time.Time
}

// FineEvent is recorded when a violation fine is issued.
type FineEvent struct {
	Plate  string
	Kind   model.FineKind
	Amount float64
	Time   time.Time
}

// ReservationEvent is recorded for reservation lifecycle activity.
type ReservationEvent struct {
	SpotID string
	Action string // created, confirmed, cancelled, completed, expired
	Time   time.Time
}

// Sink records parking lifecycle events.
type Sink interface {
	RecordEntry(ev EntryEvent) error
	RecordExit(ev ExitEvent) error
	RecordFine(ev FineEvent) error
}

// ReservationRecorder is implemented by sinks that track reservations.
type ReservationRecorder interface {
	RecordReservation(ev ReservationEvent) error
}

// OccupancyRecorder is implemented by sinks that export the occupancy
// gauge.
type OccupancyRecorder interface {
	RecordOccupancy(occupied, total int) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordEntry(EntryEvent) error             { return nil }
func (NopSink) RecordExit(ExitEvent) error               { return nil }
func (NopSink) RecordFine(FineEvent) error               { return nil }
func (NopSink) RecordReservation(ReservationEvent) error { return nil }
func (NopSink) RecordOccupancy(int, int) error           { return nil }
