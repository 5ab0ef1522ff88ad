package memory

import (
	"context"
	"testing"
	"time"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/model"
)

func TestSpotStore(t *testing.T) {
	ctx := context.Background()
	s := NewSpotStore()

	sp, _ := model.NewParkingSpot("B", model.SpotRegular, 5.0)
	if err := s.Save(ctx, *sp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, *sp); !fault.IsKind(err, fault.KindInvalidState) {
		t.Errorf("duplicate save: %v", err)
	}
	sp2, _ := model.NewParkingSpot("A", model.SpotRegular, 5.0)
	if err := s.Save(ctx, *sp2); err != nil {
		t.Fatalf("save: %v", err)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 2 || all[0].ID != "A" || all[1].ID != "B" {
		t.Errorf("FindAll order: %v", all)
	}

	got, _ := s.Find(ctx, "missing")
	if got != nil {
		t.Error("missing spot should be nil")
	}

	if err := sp.Assign("CAR-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := s.Update(ctx, *sp); err != nil {
		t.Fatalf("update: %v", err)
	}
	avail, _ := s.FindAvailableByCategory(ctx, model.SpotRegular)
	if len(avail) != 1 || avail[0].ID != "A" {
		t.Errorf("available: %v", avail)
	}
	occ, _ := s.FindByOccupant(ctx, "CAR-1")
	if occ == nil || occ.ID != "B" {
		t.Errorf("occupant: %v", occ)
	}
}

func TestVehicleStoreSingleActive(t *testing.T) {
	ctx := context.Background()
	s := NewVehicleStore()
	now := time.Now()

	v := model.Vehicle{Plate: "ABC-1", Class: model.ClassCar, EntryTime: now}
	if err := s.Save(ctx, v); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, v); !fault.IsKind(err, fault.KindInvalidState) {
		t.Errorf("second active save: %v", err)
	}

	exit := now.Add(time.Hour)
	v.ExitTime = &exit
	if err := s.Update(ctx, v); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, _ := s.FindActive(ctx, "ABC-1")
	if got != nil {
		t.Error("closed session should not be active")
	}
	// A new session for the same plate is allowed after closing.
	v2 := model.Vehicle{Plate: "ABC-1", Class: model.ClassCar, EntryTime: exit.Add(time.Hour)}
	if err := s.Save(ctx, v2); err != nil {
		t.Fatalf("new session: %v", err)
	}
}

func TestTicketStoreLatestByPlate(t *testing.T) {
	ctx := context.Background()
	s := NewTicketStore()
	now := time.Now()

	first := model.NewTicket("ABC-1", "S1", now)
	second := model.NewTicket("ABC-1", "S2", now.Add(time.Hour))
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.FindByPlate(ctx, "ABC-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.ID != second.ID {
		t.Errorf("latest ticket = %v, want %s", got, second.ID)
	}
}

func TestFineStore(t *testing.T) {
	ctx := context.Background()
	s := NewFineStore()
	now := time.Now()

	f1 := model.NewFine("ABC-1", 50, model.FineOverstay, "r", "T-1", now)
	f2 := model.NewFine("ABC-1", 100, model.FineReservedViolation, "r", "T-1", now.Add(time.Minute))
	for _, f := range []model.Fine{f1, f2} {
		if err := s.Save(ctx, f); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	sum, _ := s.SumUnpaidByPlate(ctx, "ABC-1")
	if sum != 150 {
		t.Errorf("sum = %v", sum)
	}
	if err := s.MarkPaid(ctx, f1.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := s.MarkPaid(ctx, "missing"); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("missing fine: %v", err)
	}
	unpaid, _ := s.FindUnpaidByPlate(ctx, "ABC-1")
	if len(unpaid) != 1 || unpaid[0].ID != f2.ID {
		t.Errorf("unpaid: %v", unpaid)
	}
}

func TestPaymentStoreFindBetween(t *testing.T) {
	ctx := context.Background()
	s := NewPaymentStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, h := range []int{0, 12, 36} {
		p := model.NewPayment(float64(10+i), model.PayCash, "P", "T", base.Add(time.Duration(h)*time.Hour))
		if err := s.Save(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	got, err := s.FindBetween(ctx, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("find between: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d payments, want 2 (range is half-open)", len(got))
	}
}

func TestReservationStoreOverlapQuery(t *testing.T) {
	ctx := context.Background()
	s := NewReservationStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	r1, _ := model.NewReservation("A", "S1", base, base.Add(2*time.Hour), base)
	r2, _ := model.NewReservation("B", "S1", base.Add(2*time.Hour), base.Add(4*time.Hour), base)
	r3, _ := model.NewReservation("C", "S2", base, base.Add(2*time.Hour), base)
	cancelled, _ := model.NewReservation("D", "S1", base, base.Add(2*time.Hour), base)
	if err := cancelled.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	for _, r := range []*model.Reservation{r1, r2, r3, cancelled} {
		if err := s.Save(ctx, *r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := s.FindBySpotAndRange(ctx, "S1", base.Add(time.Hour), base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 1 || got[0].ID != r1.ID {
		t.Errorf("overlap on S1: %v", got)
	}

	// Touching the boundary does not overlap.
	got, _ = s.FindBySpotAndRange(ctx, "S1", base.Add(-time.Hour), base)
	if len(got) != 0 {
		t.Errorf("touching window should not match: %v", got)
	}

	expired, _ := s.FindExpiredPending(ctx, base.Add(3*time.Hour))
	if len(expired) != 2 {
		t.Errorf("expired pending = %d, want r1 and r3", len(expired))
	}

	// FindAll includes terminal reservations, FindActive does not.
	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}
	active, _ := s.FindActive(ctx)
	if len(active) != 3 {
		t.Errorf("active = %d, want 3", len(active))
	}
}
