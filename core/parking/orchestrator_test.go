package parking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/fine"
	"github.com/parkade/parkade/core/metrics"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/core/registry"
	"github.com/parkade/parkade/core/reservation"
	"github.com/parkade/parkade/infra/logger"
	"github.com/parkade/parkade/store"
	"github.com/parkade/parkade/store/memory"
)

var entryAt = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	orch   *Orchestrator
	ledger *reservation.Ledger
	fines  *fine.Service
	stores store.Stores
	clock  *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T, policy fine.Policy, spots ...model.ParkingSpot) *fixture {
	t.Helper()
	return newFixtureWithSink(t, policy, nil, spots...)
}

func newFixtureWithSink(t *testing.T, policy fine.Policy, sink metrics.Sink, spots ...model.ParkingSpot) *fixture {
	t.Helper()
	stores := memory.New()
	ctx := context.Background()
	for _, s := range spots {
		if err := stores.Spots.Save(ctx, s); err != nil {
			t.Fatalf("seed spot %s: %v", s.ID, err)
		}
	}
	clock := &fakeClock{t: entryAt}
	reg := registry.New(stores.Spots, logger.NopLogger{})
	ledger := reservation.New(stores.Reservations, nil, nil, logger.NopLogger{})
	ledger.SetClock(clock.Now)
	fines := fine.NewService(stores.Fines, policy, logger.NopLogger{})
	orch := New(Config{}, reg, ledger, fines,
		stores.Vehicles, stores.Tickets, stores.Payments, sink, nil, logger.NopLogger{})
	orch.SetClock(clock.Now)
	return &fixture{orch: orch, ledger: ledger, fines: fines, stores: stores, clock: clock}
}

func mustSpot(t *testing.T, id string, cat model.SpotCategory, rate float64) model.ParkingSpot {
	t.Helper()
	s, err := model.NewParkingSpot(id, cat, rate)
	if err != nil {
		t.Fatalf("new spot: %v", err)
	}
	return *s
}

func TestEntryValidation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-R1", model.SpotRegular, 5.0))

	if _, err := fx.orch.ProcessEntry(ctx, "  ", model.ClassCar, "F1-R1"); !fault.IsKind(err, fault.KindInvalidArgument) {
		t.Errorf("empty plate: %v", err)
	}
	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.VehicleClass(99), "F1-R1"); !fault.IsKind(err, fault.KindInvalidArgument) {
		t.Errorf("bad class: %v", err)
	}
	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "missing"); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("unknown spot: %v", err)
	}
	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassBus, "F1-R1"); !fault.IsKind(err, fault.KindIncompatible) {
		t.Errorf("bus in regular spot: %v", err)
	}
}

func TestEntryOccupiedSpot(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-R1", model.SpotRegular, 5.0))

	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err != nil {
		t.Fatalf("first entry: %v", err)
	}
	_, err := fx.orch.ProcessEntry(ctx, "XYZ-2", model.ClassCar, "F1-R1")
	if !fault.IsKind(err, fault.KindInvalidState) {
		t.Fatalf("occupied spot should be InvalidState, got %v", err)
	}
}

func TestShortStayBillsCeilingHours(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-R1", model.SpotRegular, 5.0))

	if _, err := fx.orch.ProcessEntry(ctx, "abc-1", model.ClassCar, "F1-R1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	fx.clock.Advance(90 * time.Minute)

	rcpt, err := fx.orch.ProcessExit(ctx, "ABC-1", model.PayCard)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if rcpt.DurationHours != 2 {
		t.Errorf("duration = %d, want 2", rcpt.DurationHours)
	}
	if rcpt.ParkingFee != 10.0 {
		t.Errorf("fee = %v, want 10.0", rcpt.ParkingFee)
	}
	if rcpt.FineAmount != 0 {
		t.Errorf("fine = %v, want 0", rcpt.FineAmount)
	}
	if rcpt.Total != 10.0 {
		t.Errorf("total = %v", rcpt.Total)
	}

	// Spot is free again and the session is closed.
	spot, _ := fx.orch.FindSpotByPlate(ctx, "ABC-1")
	if spot != nil {
		t.Error("plate should no longer occupy a spot")
	}
	v, _ := fx.orch.FindVehicle(ctx, "ABC-1")
	if v != nil {
		t.Error("session should be closed")
	}
}

func TestZeroMinuteStayBillsOneHour(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-C1", model.SpotCompact, 2.0))

	if _, err := fx.orch.ProcessEntry(ctx, "M-1", model.ClassMotorcycle, "F1-C1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	rcpt, err := fx.orch.ProcessExit(ctx, "M-1", model.PayCash)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if rcpt.DurationHours != 1 || rcpt.ParkingFee != 2.0 {
		t.Errorf("duration=%d fee=%v, want minimum one hour", rcpt.DurationHours, rcpt.ParkingFee)
	}
}

func TestExitWithoutEntry(t *testing.T) {
	fx := newFixture(t, fine.NewFixed())
	_, err := fx.orch.ProcessExit(context.Background(), "GHOST", model.PayCash)
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestHandicappedPricing(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(),
		mustSpot(t, "F1-H1", model.SpotHandicapped, 2.0),
		mustSpot(t, "F1-R1", model.SpotRegular, 5.0),
	)

	// Free in a handicapped spot.
	if _, err := fx.orch.ProcessEntry(ctx, "H-1", model.ClassHandicapped, "F1-H1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	fx.clock.Advance(3 * time.Hour)
	rcpt, err := fx.orch.ProcessExit(ctx, "H-1", model.PayCash)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if rcpt.ParkingFee != 0 {
		t.Errorf("handicapped spot fee = %v, want 0", rcpt.ParkingFee)
	}

	// Flat special rate in any other spot, ignoring the listed rate.
	if _, err := fx.orch.ProcessEntry(ctx, "H-1", model.ClassHandicapped, "F1-R1"); err != nil {
		t.Fatalf("second entry: %v", err)
	}
	fx.clock.Advance(3 * time.Hour)
	rcpt, err = fx.orch.ProcessExit(ctx, "H-1", model.PayCash)
	if err != nil {
		t.Fatalf("second exit: %v", err)
	}
	if rcpt.HourlyRate != 2.0 || rcpt.ParkingFee != 6.0 {
		t.Errorf("rate=%v fee=%v, want flat 2.0/hr", rcpt.HourlyRate, rcpt.ParkingFee)
	}
}

func TestReservedSpotViolation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-V1", model.SpotReserved, 10.0))

	// No reservation: the bus still parks but draws the violation fine.
	if _, err := fx.orch.ProcessEntry(ctx, "BUS-1", model.ClassBus, "F1-V1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	sum, err := fx.fines.SumUnpaid(ctx, "BUS-1")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 100.0 {
		t.Fatalf("violation fine = %v, want 100.0", sum)
	}

	fx.clock.Advance(time.Hour)
	rcpt, err := fx.orch.ProcessExit(ctx, "BUS-1", model.PayCard)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if rcpt.FineAmount != 100.0 {
		t.Errorf("collected fine = %v, want 100.0", rcpt.FineAmount)
	}
	if rcpt.Total != rcpt.ParkingFee+100.0 {
		t.Errorf("total = %v", rcpt.Total)
	}
	// Fine is settled, not carried forward.
	sum, _ = fx.fines.SumUnpaid(ctx, "BUS-1")
	if sum != 0 {
		t.Errorf("unpaid after exit = %v", sum)
	}
}

func TestReservedSpotWithValidReservation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-V1", model.SpotReserved, 10.0))

	r, err := fx.ledger.Create(ctx, "BUS-2", "F1-V1", entryAt.Add(15*time.Minute), entryAt.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	if err := fx.ledger.Confirm(ctx, r.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Arrival 15 minutes early is inside the grace window.
	if _, err := fx.orch.ProcessEntry(ctx, "BUS-2", model.ClassBus, "F1-V1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	sum, _ := fx.fines.SumUnpaid(ctx, "BUS-2")
	if sum != 0 {
		t.Errorf("reservation holder fined %v", sum)
	}

	fx.clock.Advance(2 * time.Hour)
	if _, err := fx.orch.ProcessExit(ctx, "BUS-2", model.PayCard); err != nil {
		t.Fatalf("exit: %v", err)
	}
	got, _ := fx.ledger.Find(ctx, r.ID)
	if got.Status != model.ReservationCompleted {
		t.Errorf("reservation status after exit = %v", got.Status)
	}
}

func TestOverstayFines(t *testing.T) {
	cases := []struct {
		name   string
		policy fine.Policy
		want   float64
	}{
		{"fixed", fine.NewFixed(), 50.0},
		{"hourly capped", fine.NewHourlyCapped(20, 500), 120.0},
		{"progressive", fine.NewProgressive(), 50.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(t, c.policy, mustSpot(t, "F1-R1", model.SpotRegular, 5.0))

			if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err != nil {
				t.Fatalf("entry: %v", err)
			}
			// 30 hours parked, 6 hours past the 24-hour limit.
			fx.clock.Advance(30 * time.Hour)
			rcpt, err := fx.orch.ProcessExit(ctx, "ABC-1", model.PayCard)
			if err != nil {
				t.Fatalf("exit: %v", err)
			}
			if rcpt.FineAmount != c.want {
				t.Errorf("fine = %v, want %v", rcpt.FineAmount, c.want)
			}
			if rcpt.ParkingFee != 150.0 {
				t.Errorf("fee = %v, want 30h * 5.0", rcpt.ParkingFee)
			}
		})
	}
}

func TestNoOverstayAtThreshold(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-R1", model.SpotRegular, 5.0))

	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	fx.clock.Advance(24 * time.Hour)
	rcpt, err := fx.orch.ProcessExit(ctx, "ABC-1", model.PayCash)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if rcpt.FineAmount != 0 {
		t.Errorf("fine at exactly the threshold = %v, want 0", rcpt.FineAmount)
	}
}

func TestMissingPolicyAbortsExit(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, nil, mustSpot(t, "F1-R1", model.SpotRegular, 5.0))

	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	fx.clock.Advance(30 * time.Hour)
	_, err := fx.orch.ProcessExit(ctx, "ABC-1", model.PayCash)
	if !fault.IsKind(err, fault.KindConfiguration) {
		t.Fatalf("expected Configuration error, got %v", err)
	}
	// Nothing changed: the vehicle is still parked and can exit once a
	// policy is configured.
	v, _ := fx.orch.FindVehicle(ctx, "ABC-1")
	if v == nil {
		t.Fatal("session should still be open")
	}
	if err := fx.fines.SetPolicy(fine.NewFixed()); err != nil {
		t.Fatalf("set policy: %v", err)
	}
	if _, err := fx.orch.ProcessExit(ctx, "ABC-1", model.PayCash); err != nil {
		t.Fatalf("exit after policy fix: %v", err)
	}
}

func TestEscapeRecovery(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(),
		mustSpot(t, "F1-R1", model.SpotRegular, 5.0),
		mustSpot(t, "F1-R2", model.SpotRegular, 5.0),
	)

	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err != nil {
		t.Fatalf("first entry: %v", err)
	}
	// The plate shows up again 30 hours later without ever exiting.
	fx.clock.Advance(30 * time.Hour)
	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R2"); err != nil {
		t.Fatalf("re-entry: %v", err)
	}

	// The stale session was closed, its spot freed, its overstay fined.
	spot, _ := fx.orch.FindSpotByPlate(ctx, "ABC-1")
	if spot == nil || spot.ID != "F1-R2" {
		t.Fatalf("plate should occupy F1-R2, got %v", spot)
	}
	spots, _ := fx.orch.AvailableSpots(ctx, model.ClassCar)
	if len(spots) != 1 || spots[0].ID != "F1-R1" {
		t.Errorf("F1-R1 should be free again, got %v", spots)
	}
	sum, _ := fx.fines.SumUnpaid(ctx, "ABC-1")
	if sum != 50.0 {
		t.Errorf("escape fine = %v, want 50.0", sum)
	}

	// The fine is collected with the new session's exit.
	fx.clock.Advance(time.Hour)
	rcpt, err := fx.orch.ProcessExit(ctx, "ABC-1", model.PayCard)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if rcpt.FineAmount != 50.0 {
		t.Errorf("collected fine = %v", rcpt.FineAmount)
	}
}

func TestConcurrentExitsChargeOnce(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(), mustSpot(t, "F1-R1", model.SpotRegular, 5.0))

	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	// 30 hours parked: 150.0 fee plus the 50.0 overstay fine.
	fx.clock.Advance(30 * time.Hour)

	const racers = 4
	var wg sync.WaitGroup
	receipts := make([]*model.Receipt, racers)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = fx.orch.ProcessExit(ctx, "ABC-1", model.PayCard)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		if err == nil {
			wins++
			if receipts[i].Total != 200.0 {
				t.Errorf("total = %v, want 200.0", receipts[i].Total)
			}
		} else if !fault.IsKind(err, fault.KindNotFound) {
			t.Errorf("losing exit got %v, want NotFound", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one exit must win, got %d", wins)
	}

	payments, err := fx.stores.Payments.FindByPlate(ctx, "ABC-1")
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments recorded = %d, want 1", len(payments))
	}
	if payments[0].Amount != 200.0 {
		t.Errorf("payment amount = %v, want 200.0", payments[0].Amount)
	}
	if sum, _ := fx.fines.SumUnpaid(ctx, "ABC-1"); sum != 0 {
		t.Errorf("unpaid fines after exit = %v", sum)
	}
}

type failingTicketStore struct{ store.TicketStore }

func (failingTicketStore) Save(context.Context, model.Ticket) error {
	return errors.New("ticket store unavailable")
}

func TestEntryTicketFailureLeavesNoState(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	if err := stores.Spots.Save(ctx, mustSpot(t, "F1-R1", model.SpotRegular, 5.0)); err != nil {
		t.Fatalf("seed spot: %v", err)
	}
	reg := registry.New(stores.Spots, logger.NopLogger{})
	ledger := reservation.New(stores.Reservations, nil, nil, logger.NopLogger{})
	fines := fine.NewService(stores.Fines, fine.NewFixed(), logger.NopLogger{})
	orch := New(Config{}, reg, ledger, fines,
		stores.Vehicles, failingTicketStore{stores.Tickets}, stores.Payments, nil, nil, logger.NopLogger{})

	if _, err := orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err == nil {
		t.Fatal("entry should fail when the ticket cannot be saved")
	}
	// The failed entry is fully compensated: no open session, spot free.
	v, _ := orch.FindVehicle(ctx, "ABC-1")
	if v != nil {
		t.Error("active session survived the failed entry")
	}
	spots, _ := orch.AvailableSpots(ctx, model.ClassCar)
	if len(spots) != 1 || spots[0].ID != "F1-R1" {
		t.Errorf("spot should be free again, got %v", spots)
	}
}

type gaugeSink struct {
	metrics.NopSink
	mu       sync.Mutex
	occupied int
	total    int
}

func (s *gaugeSink) RecordOccupancy(occupied, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occupied, s.total = occupied, total
	return nil
}

func (s *gaugeSink) snapshot() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupied, s.total
}

func TestOccupancyRecordedOnEntryAndExit(t *testing.T) {
	ctx := context.Background()
	sink := &gaugeSink{}
	fx := newFixtureWithSink(t, fine.NewFixed(), sink,
		mustSpot(t, "F1-R1", model.SpotRegular, 5.0),
		mustSpot(t, "F1-R2", model.SpotRegular, 5.0),
	)

	if _, err := fx.orch.ProcessEntry(ctx, "ABC-1", model.ClassCar, "F1-R1"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if occ, total := sink.snapshot(); occ != 1 || total != 2 {
		t.Errorf("after entry: occupied=%d total=%d, want 1/2", occ, total)
	}

	fx.clock.Advance(time.Hour)
	if _, err := fx.orch.ProcessExit(ctx, "ABC-1", model.PayCash); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if occ, total := sink.snapshot(); occ != 0 || total != 2 {
		t.Errorf("after exit: occupied=%d total=%d, want 0/2", occ, total)
	}
}

func TestAvailableSpotsRespectsClass(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, fine.NewFixed(),
		mustSpot(t, "F1-C1", model.SpotCompact, 2.0),
		mustSpot(t, "F1-R1", model.SpotRegular, 5.0),
	)
	spots, err := fx.orch.AvailableSpots(ctx, model.ClassMotorcycle)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(spots) != 1 || spots[0].ID != "F1-C1" {
		t.Errorf("motorcycle spots = %v", spots)
	}
	if _, err := fx.orch.AvailableSpots(ctx, model.VehicleClass(42)); !fault.IsKind(err, fault.KindInvalidArgument) {
		t.Errorf("bad class: %v", err)
	}
}
