package metrics

import (
	"errors"

	coremetrics "github.com/parkade/parkade/core/metrics"
)

// MultiSink fans events out to several sinks, collecting all errors.
type MultiSink struct {
	sinks []coremetrics.Sink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordEntry(ev coremetrics.EntryEvent) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordEntry(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordExit(ev coremetrics.ExitEvent) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordExit(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordFine(ev coremetrics.FineEvent) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.RecordFine(ev))
	}
	return errors.Join(errs...)
}

// RecordReservation forwards to every sink that tracks reservations.
func (m *MultiSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if rec, ok := s.(coremetrics.ReservationRecorder); ok {
			errs = append(errs, rec.RecordReservation(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordOccupancy forwards to every sink that tracks occupancy.
func (m *MultiSink) RecordOccupancy(occupied, total int) error {
	var errs []error
	for _, s := range m.sinks {
		if rec, ok := s.(coremetrics.OccupancyRecorder); ok {
			errs = append(errs, rec.RecordOccupancy(occupied, total))
		}
	}
	return errors.Join(errs...)
}
