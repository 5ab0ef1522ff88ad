// Package store defines the record-store contracts the parking engine
// persists through. Implementations live in store/memory and
// store/sqlite; the engine never assumes a particular backend.
package store

import (
	"context"
	"time"

	"github.com/parkade/parkade/core/model"
)

// SpotStore persists parking spots.
type SpotStore interface {
	Find(ctx context.Context, id string) (*model.ParkingSpot, error)
	FindAll(ctx context.Context) ([]model.ParkingSpot, error)
	Save(ctx context.Context, spot model.ParkingSpot) error
	Update(ctx context.Context, spot model.ParkingSpot) error
	Delete(ctx context.Context, id string) error
	// FindAvailableByCategory returns available spots of one category,
	// ordered by id.
	FindAvailableByCategory(ctx context.Context, cat model.SpotCategory) ([]model.ParkingSpot, error)
	// FindByOccupant returns the spot currently occupied by the plate,
	// or nil if the plate is not parked.
	FindByOccupant(ctx context.Context, plate string) (*model.ParkingSpot, error)
}

// VehicleStore persists vehicle session records. A plate may have many
// historical records but at most one active one.
type VehicleStore interface {
	FindActive(ctx context.Context, plate string) (*model.Vehicle, error)
	FindAllActive(ctx context.Context) ([]model.Vehicle, error)
	Save(ctx context.Context, v model.Vehicle) error
	// Update finalizes the active record for the plate.
	Update(ctx context.Context, v model.Vehicle) error
}

// TicketStore persists entry tickets.
type TicketStore interface {
	Find(ctx context.Context, id string) (*model.Ticket, error)
	FindByPlate(ctx context.Context, plate string) (*model.Ticket, error)
	Save(ctx context.Context, t model.Ticket) error
}

// FineStore persists fines.
type FineStore interface {
	Find(ctx context.Context, id string) (*model.Fine, error)
	Save(ctx context.Context, f model.Fine) error
	FindUnpaidByPlate(ctx context.Context, plate string) ([]model.Fine, error)
	FindAllUnpaid(ctx context.Context) ([]model.Fine, error)
	SumUnpaidByPlate(ctx context.Context, plate string) (float64, error)
	MarkPaid(ctx context.Context, id string) error
}

// PaymentStore persists payments.
type PaymentStore interface {
	Save(ctx context.Context, p model.Payment) error
	FindByPlate(ctx context.Context, plate string) ([]model.Payment, error)
	// FindBetween returns payments with PaidAt in [start, end).
	FindBetween(ctx context.Context, start, end time.Time) ([]model.Payment, error)
}

// ReservationStore persists reservations.
type ReservationStore interface {
	Find(ctx context.Context, id string) (*model.Reservation, error)
	Save(ctx context.Context, r model.Reservation) error
	Update(ctx context.Context, r model.Reservation) error
	FindByPlate(ctx context.Context, plate string) ([]model.Reservation, error)
	// FindAll returns every reservation regardless of status.
	FindAll(ctx context.Context) ([]model.Reservation, error)
	// FindBySpotAndRange returns Pending/Confirmed reservations on the
	// spot whose window overlaps [start, end).
	FindBySpotAndRange(ctx context.Context, spotID string, start, end time.Time) ([]model.Reservation, error)
	// FindActive returns all Pending/Confirmed reservations.
	FindActive(ctx context.Context) ([]model.Reservation, error)
	// FindExpiredPending returns Pending/Confirmed reservations whose
	// end precedes now.
	FindExpiredPending(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// Stores bundles every entity store for wiring.
type Stores struct {
	Spots        SpotStore
	Vehicles     VehicleStore
	Tickets      TicketStore
	Fines        FineStore
	Payments     PaymentStore
	Reservations ReservationStore
}
