package model

import (
	"testing"
	"time"

	"github.com/parkade/parkade/core/fault"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	h := func(hours int) time.Time { return base.Add(time.Duration(hours) * time.Hour) }
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"identical", h(0), h(2), h(0), h(2), true},
		{"contained", h(0), h(4), h(1), h(2), true},
		{"partial", h(0), h(2), h(1), h(3), true},
		{"touching end-to-start", h(0), h(2), h(2), h(4), false},
		{"touching start-to-end", h(2), h(4), h(0), h(2), false},
		{"disjoint", h(0), h(1), h(5), h(6), false},
	}
	for _, c := range cases {
		if got := Overlaps(c.s1, c.e1, c.s2, c.e2); got != c.want {
			t.Errorf("%s: Overlaps = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNewReservationValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewReservation("A", "S", time.Time{}, now.Add(time.Hour), now); err == nil {
		t.Error("zero start should be rejected")
	}
	if _, err := NewReservation("A", "S", now.Add(time.Hour), now.Add(time.Hour), now); err == nil {
		t.Error("empty window should be rejected")
	}
	if _, err := NewReservation("A", "S", now.Add(2*time.Hour), now.Add(time.Hour), now); err == nil {
		t.Error("inverted window should be rejected")
	}
	r, err := NewReservation("A", "S", now.Add(time.Hour), now.Add(2*time.Hour), now)
	if err != nil {
		t.Fatalf("valid reservation rejected: %v", err)
	}
	if r.Status != ReservationPending {
		t.Errorf("new reservation status = %v", r.Status)
	}
	if r.ID == "" {
		t.Error("reservation must get an id")
	}
}

func TestReservationLifecycle(t *testing.T) {
	now := time.Now()
	mk := func() *Reservation {
		r, err := NewReservation("A", "S", now.Add(time.Hour), now.Add(2*time.Hour), now)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		return r
	}

	r := mk()
	if err := r.Complete(); !fault.IsKind(err, fault.KindInvalidState) {
		t.Errorf("completing a pending reservation should fail, got %v", err)
	}
	if err := r.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := r.Confirm(); !fault.IsKind(err, fault.KindInvalidState) {
		t.Errorf("double confirm should fail, got %v", err)
	}
	if err := r.Complete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := r.Cancel(); !fault.IsKind(err, fault.KindInvalidState) {
		t.Errorf("cancelling a completed reservation should fail, got %v", err)
	}

	r = mk()
	if err := r.Cancel(); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if err := r.Expire(); !fault.IsKind(err, fault.KindInvalidState) {
		t.Errorf("expiring a cancelled reservation should fail, got %v", err)
	}

	r = mk()
	if err := r.Expire(); err != nil {
		t.Fatalf("expire pending: %v", err)
	}
	if !r.Status.Terminal() {
		t.Error("expired should be terminal")
	}
}
