// Package reservation tracks spot reservations: creation with
// interval-overlap conflict detection, the status lifecycle, and the
// periodic expiry sweep.
package reservation

import (
	"context"
	"strings"
	"time"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/logger"
	"github.com/parkade/parkade/core/metrics"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/internal/eventbus"
	"github.com/parkade/parkade/internal/keylock"
	"github.com/parkade/parkade/store"
)

// GraceWindow is how early a confirmed reservation holder may arrive
// and still be considered within their window.
const GraceWindow = 30 * time.Minute

// Ledger manages reservation records. The conflict check and the save
// of a new reservation run under a per-spot lock, so two overlapping
// requests for one spot cannot both succeed.
type Ledger struct {
	reservations store.ReservationStore
	locks        *keylock.KeyLock
	sink         metrics.Sink
	bus          eventbus.EventBus
	log          logger.Logger
	now          func() time.Time
}

// New creates a Ledger over the given store. sink and bus may be nil.
func New(reservations store.ReservationStore, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger) *Ledger {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Ledger{
		reservations: reservations,
		locks:        keylock.New(),
		sink:         sink,
		bus:          bus,
		log:          log,
		now:          time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Create books [start, end) on the spot for the plate. The new
// reservation starts Pending. Returns Conflict if any Pending or
// Confirmed reservation on the spot overlaps the window.
func (l *Ledger) Create(ctx context.Context, plate, spotID string, start, end time.Time) (*model.Reservation, error) {
	plate = model.NormalizePlate(plate)
	if plate == "" {
		return nil, fault.Invalidf("license plate cannot be empty")
	}
	if strings.TrimSpace(spotID) == "" {
		return nil, fault.Invalidf("spot id cannot be empty")
	}
	now := l.now()
	if start.Before(now) {
		return nil, fault.Invalidf("reservation start %v is in the past", start)
	}

	res, err := model.NewReservation(plate, spotID, start, end, now)
	if err != nil {
		return nil, err
	}

	// Check-then-save must be atomic per spot.
	l.locks.Lock(spotID)
	defer l.locks.Unlock(spotID)

	overlapping, err := l.reservations.FindBySpotAndRange(ctx, spotID, start, end)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, fault.Conflictf("spot %s already reserved from %v to %v", spotID, overlapping[0].Start, overlapping[0].End)
	}
	if err := l.reservations.Save(ctx, *res); err != nil {
		return nil, err
	}
	l.publish(*res, "created")
	l.log.Infof("reservation %s created for %s on %s", res.ID, plate, spotID)
	return res, nil
}

// Confirm moves a pending reservation to confirmed.
func (l *Ledger) Confirm(ctx context.Context, id string) error {
	return l.transition(ctx, id, "confirmed", (*model.Reservation).Confirm)
}

// Cancel cancels a pending or confirmed reservation.
func (l *Ledger) Cancel(ctx context.Context, id string) error {
	return l.transition(ctx, id, "cancelled", (*model.Reservation).Cancel)
}

// Complete closes out a confirmed reservation after use.
func (l *Ledger) Complete(ctx context.Context, id string) error {
	return l.transition(ctx, id, "completed", (*model.Reservation).Complete)
}

func (l *Ledger) transition(ctx context.Context, id, action string, step func(*model.Reservation) error) error {
	if strings.TrimSpace(id) == "" {
		return fault.Invalidf("reservation id cannot be empty")
	}
	res, err := l.reservations.Find(ctx, id)
	if err != nil {
		return err
	}
	if res == nil {
		return fault.NotFoundf("reservation %s not found", id)
	}
	if err := step(res); err != nil {
		return err
	}
	if err := l.reservations.Update(ctx, *res); err != nil {
		return err
	}
	l.publish(*res, action)
	return nil
}

// publish records the lifecycle change on the sink and the bus.
func (l *Ledger) publish(r model.Reservation, action string) {
	at := l.now()
	if rec, ok := l.sink.(metrics.ReservationRecorder); ok {
		_ = rec.RecordReservation(metrics.ReservationEvent{SpotID: r.SpotID, Action: action, Time: at})
	}
	if l.bus != nil {
		l.bus.Publish(eventbus.ReservationChanged{Reservation: r, Action: action, At: at})
	}
}

// Find fetches one reservation by id.
func (l *Ledger) Find(ctx context.Context, id string) (*model.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return l.reservations.Find(ctx, id)
}

// FindByPlate returns all reservations for a plate.
func (l *Ledger) FindByPlate(ctx context.Context, plate string) ([]model.Reservation, error) {
	plate = model.NormalizePlate(plate)
	if plate == "" {
		return nil, fault.Invalidf("license plate cannot be empty")
	}
	return l.reservations.FindByPlate(ctx, plate)
}

// FindOverlapping returns Pending/Confirmed reservations on the spot
// overlapping [start, end).
func (l *Ledger) FindOverlapping(ctx context.Context, spotID string, start, end time.Time) ([]model.Reservation, error) {
	if strings.TrimSpace(spotID) == "" {
		return nil, fault.Invalidf("spot id cannot be empty")
	}
	return l.reservations.FindBySpotAndRange(ctx, spotID, start, end)
}

// Active returns every Pending/Confirmed reservation.
func (l *Ledger) Active(ctx context.Context) ([]model.Reservation, error) {
	return l.reservations.FindActive(ctx)
}

// All returns every reservation regardless of status.
func (l *Ledger) All(ctx context.Context) ([]model.Reservation, error) {
	return l.reservations.FindAll(ctx)
}

// HasValidReservation reports whether the plate holds a confirmed
// reservation for the spot whose window covers now, allowing the
// early-arrival grace.
func (l *Ledger) HasValidReservation(ctx context.Context, plate, spotID string) (bool, error) {
	plate = model.NormalizePlate(plate)
	if plate == "" || strings.TrimSpace(spotID) == "" {
		return false, nil
	}
	reservations, err := l.reservations.FindByPlate(ctx, plate)
	if err != nil {
		return false, err
	}
	now := l.now()
	for _, r := range reservations {
		if r.SpotID != spotID || r.Status != model.ReservationConfirmed {
			continue
		}
		if !r.Start.Add(-GraceWindow).After(now) && now.Before(r.End) {
			return true, nil
		}
	}
	return false, nil
}

// ExpireStale transitions every Pending/Confirmed reservation whose end
// has passed to Expired. Safe to run concurrently and repeatedly.
func (l *Ledger) ExpireStale(ctx context.Context) (int, error) {
	stale, err := l.reservations.FindExpiredPending(ctx, l.now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, r := range stale {
		if err := r.Expire(); err != nil {
			// Another sweep got there first.
			continue
		}
		if err := l.reservations.Update(ctx, r); err != nil {
			return expired, err
		}
		l.publish(r, "expired")
		expired++
	}
	if expired > 0 {
		l.log.Infof("expired %d stale reservations", expired)
	}
	return expired, nil
}
