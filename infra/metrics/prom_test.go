package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/parkade/parkade/core/metrics"
	"github.com/parkade/parkade/core/model"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	now := time.Now()
	if err := sink.RecordEntry(coremetrics.EntryEvent{
		Plate: "ABC-1", Class: model.ClassCar, SpotID: "F1-R1", Category: model.SpotRegular, Time: now,
	}); err != nil {
		t.Fatalf("record entry: %v", err)
	}
	if got := testutil.ToFloat64(sink.occupancy); got != 1 {
		t.Errorf("occupancy after entry = %v", got)
	}

	if err := sink.RecordFine(coremetrics.FineEvent{
		Plate: "ABC-1", Kind: model.FineOverstay, Amount: 50, Time: now,
	}); err != nil {
		t.Fatalf("record fine: %v", err)
	}

	if err := sink.RecordExit(coremetrics.ExitEvent{
		Plate: "ABC-1", SpotID: "F1-R1", Category: model.SpotRegular,
		DurationHours: 2, ParkingFee: 10, FineAmount: 50, Total: 60,
		Method: model.PayCard, Time: now,
	}); err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if got := testutil.ToFloat64(sink.occupancy); got != 0 {
		t.Errorf("occupancy after exit = %v", got)
	}
	if got := testutil.ToFloat64(sink.revenue); got != 60 {
		t.Errorf("revenue = %v", got)
	}

	if err := sink.RecordReservation(coremetrics.ReservationEvent{
		SpotID: "F1-V1", Action: "created", Time: now,
	}); err != nil {
		t.Fatalf("record reservation: %v", err)
	}
	if got := testutil.ToFloat64(sink.reservations.WithLabelValues("created")); got != 1 {
		t.Errorf("reservations created = %v", got)
	}

	if err := sink.RecordOccupancy(5, 34); err != nil {
		t.Fatalf("record occupancy: %v", err)
	}
	if got := testutil.ToFloat64(sink.occupancy); got != 5 {
		t.Errorf("occupancy snapshot = %v", got)
	}
}

func TestPromSinkDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(reg); err != nil {
		t.Fatalf("second register should tolerate existing collectors: %v", err)
	}
}
