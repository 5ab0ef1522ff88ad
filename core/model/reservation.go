package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parkade/parkade/core/fault"
)

// ReservationStatus is the lifecycle state of a reservation.
//
//	Pending -> Confirmed -> Completed
//	Pending | Confirmed -> Cancelled
//	Pending | Confirmed -> Expired (time-driven)
//
// Completed, Cancelled and Expired are terminal.
type ReservationStatus int

const (
	ReservationPending ReservationStatus = iota
	ReservationConfirmed
	ReservationCompleted
	ReservationCancelled
	ReservationExpired
)

var reservationStatusNames = map[ReservationStatus]string{
	ReservationPending:   "pending",
	ReservationConfirmed: "confirmed",
	ReservationCompleted: "completed",
	ReservationCancelled: "cancelled",
	ReservationExpired:   "expired",
}

func (s ReservationStatus) String() string {
	if n, ok := reservationStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further transitions are allowed.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled || s == ReservationExpired
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// Reservation holds a spot for a plate over a half-open time window.
type Reservation struct {
	ID        string            `json:"id"`
	Plate     string            `json:"plate"`
	SpotID    string            `json:"spot_id"`
	CreatedAt time.Time         `json:"created_at"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Status    ReservationStatus `json:"status"`
}

// NewReservation creates a pending reservation. The window must be
// non-empty: End strictly after Start.
func NewReservation(plate, spotID string, start, end, createdAt time.Time) (*Reservation, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fault.Invalidf("reservation window cannot be empty")
	}
	if !end.After(start) {
		return nil, fault.Invalidf("reservation end %v must be after start %v", end, start)
	}
	return &Reservation{
		ID:        uuid.NewString(),
		Plate:     plate,
		SpotID:    spotID,
		CreatedAt: createdAt,
		Start:     start,
		End:       end,
		Status:    ReservationPending,
	}, nil
}

// OverlapsWindow reports whether the reservation window intersects
// [start, end).
func (r *Reservation) OverlapsWindow(start, end time.Time) bool {
	return Overlaps(r.Start, r.End, start, end)
}

// Confirm moves Pending to Confirmed.
func (r *Reservation) Confirm() error {
	if r.Status != ReservationPending {
		return fault.Statef("reservation %s is %s, only pending reservations can be confirmed", r.ID, r.Status)
	}
	r.Status = ReservationConfirmed
	return nil
}

// Cancel moves any non-terminal state to Cancelled.
func (r *Reservation) Cancel() error {
	if r.Status.Terminal() {
		return fault.Statef("reservation %s is already %s", r.ID, r.Status)
	}
	r.Status = ReservationCancelled
	return nil
}

// Complete moves Confirmed to Completed.
func (r *Reservation) Complete() error {
	if r.Status != ReservationConfirmed {
		return fault.Statef("reservation %s is %s, only confirmed reservations can be completed", r.ID, r.Status)
	}
	r.Status = ReservationCompleted
	return nil
}

// Expire marks an unused reservation expired once its end has passed.
func (r *Reservation) Expire() error {
	if r.Status.Terminal() {
		return fault.Statef("reservation %s is already %s", r.ID, r.Status)
	}
	r.Status = ReservationExpired
	return nil
}
