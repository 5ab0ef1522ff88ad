// Package memory provides in-memory store implementations guarded by
// RWMutexes. Used for unit tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/store"
)

// New returns a Stores bundle backed entirely by memory.
func New() store.Stores {
	return store.Stores{
		Spots:        NewSpotStore(),
		Vehicles:     NewVehicleStore(),
		Tickets:      NewTicketStore(),
		Fines:        NewFineStore(),
		Payments:     NewPaymentStore(),
		Reservations: NewReservationStore(),
	}
}

// SpotStore keeps spots in a map keyed by id.
type SpotStore struct {
	mu    sync.RWMutex
	spots map[string]model.ParkingSpot
}

func NewSpotStore() *SpotStore {
	return &SpotStore{spots: map[string]model.ParkingSpot{}}
}

func (s *SpotStore) Find(_ context.Context, id string) (*model.ParkingSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spots[id]
	if !ok {
		return nil, nil
	}
	return &sp, nil
}

func (s *SpotStore) FindAll(_ context.Context) ([]model.ParkingSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ParkingSpot, 0, len(s.spots))
	for _, sp := range s.spots {
		out = append(out, sp)
	}
	sortSpots(out)
	return out, nil
}

func (s *SpotStore) Save(_ context.Context, spot model.ParkingSpot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spots[spot.ID]; ok {
		return fault.Statef("spot %s already exists", spot.ID)
	}
	s.spots[spot.ID] = spot
	return nil
}

func (s *SpotStore) Update(_ context.Context, spot model.ParkingSpot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spots[spot.ID]; !ok {
		return fault.NotFoundf("spot %s not found", spot.ID)
	}
	s.spots[spot.ID] = spot
	return nil
}

func (s *SpotStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.spots, id)
	return nil
}

func (s *SpotStore) FindAvailableByCategory(_ context.Context, cat model.SpotCategory) ([]model.ParkingSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ParkingSpot
	for _, sp := range s.spots {
		if sp.Category == cat && sp.Available() {
			out = append(out, sp)
		}
	}
	sortSpots(out)
	return out, nil
}

func (s *SpotStore) FindByOccupant(_ context.Context, plate string) (*model.ParkingSpot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.spots {
		if sp.Status == model.SpotOccupied && sp.Occupant == plate {
			out := sp
			return &out, nil
		}
	}
	return nil, nil
}

func sortSpots(spots []model.ParkingSpot) {
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
}

// VehicleStore keeps session records per plate: at most one active plus
// any number of closed historical ones.
type VehicleStore struct {
	mu      sync.RWMutex
	active  map[string]model.Vehicle
	history []model.Vehicle
}

func NewVehicleStore() *VehicleStore {
	return &VehicleStore{active: map[string]model.Vehicle{}}
}

func (s *VehicleStore) FindActive(_ context.Context, plate string) (*model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.active[plate]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *VehicleStore) FindAllActive(_ context.Context) ([]model.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Vehicle, 0, len(s.active))
	for _, v := range s.active {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out, nil
}

func (s *VehicleStore) Save(_ context.Context, v model.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !v.Active() {
		s.history = append(s.history, v)
		return nil
	}
	if _, ok := s.active[v.Plate]; ok {
		return fault.Statef("plate %s already has an active session", v.Plate)
	}
	s.active[v.Plate] = v
	return nil
}

func (s *VehicleStore) Update(_ context.Context, v model.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[v.Plate]; !ok {
		return fault.NotFoundf("no active session for plate %s", v.Plate)
	}
	if v.Active() {
		s.active[v.Plate] = v
		return nil
	}
	delete(s.active, v.Plate)
	s.history = append(s.history, v)
	return nil
}

// TicketStore keeps tickets keyed by id.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]model.Ticket
}

func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: map[string]model.Ticket{}}
}

func (s *TicketStore) Find(_ context.Context, id string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// FindByPlate returns the most recently issued ticket for the plate.
func (s *TicketStore) FindByPlate(_ context.Context, plate string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.Ticket
	for _, t := range s.tickets {
		if t.Plate != plate {
			continue
		}
		if latest == nil || t.EntryTime.After(latest.EntryTime) {
			tt := t
			latest = &tt
		}
	}
	return latest, nil
}

func (s *TicketStore) Save(_ context.Context, t model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
	return nil
}

// FineStore keeps fines keyed by id.
type FineStore struct {
	mu    sync.RWMutex
	fines map[string]model.Fine
}

func NewFineStore() *FineStore {
	return &FineStore{fines: map[string]model.Fine{}}
}

func (s *FineStore) Find(_ context.Context, id string) (*model.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fines[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *FineStore) Save(_ context.Context, f model.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fines[f.ID] = f
	return nil
}

func (s *FineStore) FindUnpaidByPlate(_ context.Context, plate string) ([]model.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Fine
	for _, f := range s.fines {
		if f.Plate == plate && !f.Paid {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (s *FineStore) FindAllUnpaid(_ context.Context) ([]model.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Fine
	for _, f := range s.fines {
		if !f.Paid {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (s *FineStore) SumUnpaidByPlate(_ context.Context, plate string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0.0
	for _, f := range s.fines {
		if f.Plate == plate && !f.Paid {
			total += f.Amount
		}
	}
	return total, nil
}

func (s *FineStore) MarkPaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fines[id]
	if !ok {
		return fault.NotFoundf("fine %s not found", id)
	}
	f.Paid = true
	s.fines[id] = f
	return nil
}

// PaymentStore keeps payments in insertion order.
type PaymentStore struct {
	mu       sync.RWMutex
	payments []model.Payment
}

func NewPaymentStore() *PaymentStore { return &PaymentStore{} }

func (s *PaymentStore) Save(_ context.Context, p model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
	return nil
}

func (s *PaymentStore) FindByPlate(_ context.Context, plate string) ([]model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Payment
	for _, p := range s.payments {
		if p.Plate == plate {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PaymentStore) FindBetween(_ context.Context, start, end time.Time) ([]model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Payment
	for _, p := range s.payments {
		if !p.PaidAt.Before(start) && p.PaidAt.Before(end) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ReservationStore keeps reservations keyed by id.
type ReservationStore struct {
	mu           sync.RWMutex
	reservations map[string]model.Reservation
}

func NewReservationStore() *ReservationStore {
	return &ReservationStore{reservations: map[string]model.Reservation{}}
}

func (s *ReservationStore) Find(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *ReservationStore) Save(_ context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
	return nil
}

func (s *ReservationStore) Update(_ context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; !ok {
		return fault.NotFoundf("reservation %s not found", r.ID)
	}
	s.reservations[r.ID] = r
	return nil
}

func (s *ReservationStore) FindByPlate(_ context.Context, plate string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.Plate == plate {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *ReservationStore) FindAll(_ context.Context) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sortReservations(out)
	return out, nil
}

func (s *ReservationStore) FindBySpotAndRange(_ context.Context, spotID string, start, end time.Time) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.SpotID != spotID || r.Status.Terminal() {
			continue
		}
		if r.OverlapsWindow(start, end) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *ReservationStore) FindActive(_ context.Context) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if !r.Status.Terminal() {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *ReservationStore) FindExpiredPending(_ context.Context, now time.Time) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if !r.Status.Terminal() && r.End.Before(now) {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func sortReservations(rs []model.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Start.Equal(rs[j].Start) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].Start.Before(rs[j].Start)
	})
}
