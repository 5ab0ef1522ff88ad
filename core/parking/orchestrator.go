// Package parking orchestrates the entry/exit workflow: spot
// validation, occupancy transitions, fee computation, violation fines
// and receipts.
package parking

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/fine"
	"github.com/parkade/parkade/core/logger"
	"github.com/parkade/parkade/core/metrics"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/core/registry"
	"github.com/parkade/parkade/core/reservation"
	"github.com/parkade/parkade/internal/eventbus"
	"github.com/parkade/parkade/internal/keylock"
	"github.com/parkade/parkade/store"
)

// Config carries the tunable amounts of the workflow.
type Config struct {
	// OverstayThresholdHours is the parked duration beyond which the
	// fine policy kicks in.
	OverstayThresholdHours int `json:"overstay_threshold_hours"`
	// HandicappedRate is the flat hourly rate a handicapped-permit
	// vehicle pays outside handicapped spots.
	HandicappedRate float64 `json:"handicapped_rate"`
	// ReservedViolationFine is the fixed fine for using a reserved spot
	// without a valid reservation.
	ReservedViolationFine float64 `json:"reserved_violation_fine"`
}

// SetDefaults fills zero values with the facility defaults.
func (c *Config) SetDefaults() {
	if c.OverstayThresholdHours == 0 {
		c.OverstayThresholdHours = 24
	}
	if c.HandicappedRate == 0 {
		c.HandicappedRate = 2.0
	}
	if c.ReservedViolationFine == 0 {
		c.ReservedViolationFine = 100.0
	}
}

// Orchestrator runs the parking lifecycle against the registry, the
// reservation ledger and the fine service.
type Orchestrator struct {
	cfg      Config
	spots    *registry.SpotRegistry
	ledger   *reservation.Ledger
	fines    *fine.Service
	vehicles store.VehicleStore
	tickets  store.TicketStore
	payments store.PaymentStore
	sink     metrics.Sink
	bus      eventbus.EventBus
	plates   *keylock.KeyLock
	log      logger.Logger
	now      func() time.Time
}

// New wires an Orchestrator. sink and bus may be nil.
func New(cfg Config, spots *registry.SpotRegistry, ledger *reservation.Ledger, fines *fine.Service,
	vehicles store.VehicleStore, tickets store.TicketStore, payments store.PaymentStore,
	sink metrics.Sink, bus eventbus.EventBus, log logger.Logger) *Orchestrator {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		cfg:      cfg,
		spots:    spots,
		ledger:   ledger,
		fines:    fines,
		vehicles: vehicles,
		tickets:  tickets,
		payments: payments,
		sink:     sink,
		bus:      bus,
		plates:   keylock.New(),
		log:      log,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// ProcessEntry admits a vehicle into the given spot and returns its
// ticket. A reserved-category spot used without a valid reservation
// draws an immediate violation fine but the vehicle still parks.
func (o *Orchestrator) ProcessEntry(ctx context.Context, plate string, class model.VehicleClass, spotID string) (*model.Ticket, error) {
	plate = model.NormalizePlate(plate)
	if plate == "" {
		return nil, fault.Invalidf("license plate cannot be empty")
	}
	if !class.Valid() {
		return nil, fault.Invalidf("unknown vehicle class %d", int(class))
	}
	if strings.TrimSpace(spotID) == "" {
		return nil, fault.Invalidf("spot id cannot be empty")
	}

	// Entry and exit for one plate serialize on the plate lock.
	o.plates.Lock(plate)
	defer o.plates.Unlock(plate)

	// A plate that is still marked parked from an unclosed session gets
	// its stale session force-closed before the new entry proceeds.
	active, err := o.vehicles.FindActive(ctx, plate)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if err := o.recoverEscape(ctx, active); err != nil {
			return nil, err
		}
	}

	spot, err := o.spots.Get(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if spot == nil {
		return nil, fault.NotFoundf("spot %s not found", spotID)
	}
	if !spot.Available() {
		return nil, fault.Statef("spot %s is not available", spotID)
	}
	if !model.CanAccommodate(class, spot.Category) {
		return nil, fault.Incompatiblef("spot %s (%s) cannot accommodate a %s", spotID, spot.Category, class)
	}

	entry := o.now()
	ticket := model.NewTicket(plate, spotID, entry)

	// The assign is the contended mutation; the loser of a race sees
	// InvalidState here before anything else changed.
	if err := o.spots.Assign(ctx, spotID, plate); err != nil {
		return nil, err
	}

	vehicle := model.Vehicle{Plate: plate, Class: class, EntryTime: entry}
	if err := o.vehicles.Save(ctx, vehicle); err != nil {
		o.compensateRelease(ctx, spotID)
		return nil, err
	}
	if err := o.tickets.Save(ctx, ticket); err != nil {
		o.compensateRelease(ctx, spotID)
		o.compensateSessionClose(ctx, vehicle, entry)
		return nil, err
	}

	// Reserved spots are open access with a penalty, not gated.
	if spot.Category == model.SpotReserved && class != model.ClassHandicapped {
		ok, err := o.ledger.HasValidReservation(ctx, plate, spotID)
		if err != nil {
			o.log.Warnf("reservation check for %s on %s: %v", plate, spotID, err)
		}
		if err == nil && !ok {
			o.issueViolation(ctx, plate, ticket.ID, entry)
		}
	}

	_ = o.sink.RecordEntry(metrics.EntryEvent{
		Plate: plate, Class: class, SpotID: spotID, Category: spot.Category, Time: entry,
	})
	o.recordOccupancy(ctx)
	if o.bus != nil {
		o.bus.Publish(eventbus.VehicleAdmitted{Ticket: ticket, Class: class})
	}
	o.log.Infof("%s (%s) entered spot %s", plate, class, spotID)
	return &ticket, nil
}

// ProcessExit closes the plate's session: computes the fee, issues any
// overstay fine, collects all unpaid fines, releases the spot and
// returns the receipt. Concurrent exits for one plate serialize on the
// plate lock; only the first finds an open session, the rest get
// NotFound without charging anything.
func (o *Orchestrator) ProcessExit(ctx context.Context, plate string, method model.PaymentMethod) (*model.Receipt, error) {
	plate = model.NormalizePlate(plate)
	if plate == "" {
		return nil, fault.Invalidf("license plate cannot be empty")
	}

	o.plates.Lock(plate)
	defer o.plates.Unlock(plate)

	vehicle, err := o.vehicles.FindActive(ctx, plate)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, fault.NotFoundf("no parked vehicle with plate %s", plate)
	}
	spot, err := o.spots.FindByOccupant(ctx, plate)
	if err != nil {
		return nil, err
	}
	if spot == nil {
		return nil, fault.Statef("no spot records %s as occupant", plate)
	}

	exit := o.now()

	ticketID := ""
	if t, err := o.tickets.FindByPlate(ctx, plate); err == nil && t != nil {
		ticketID = t.ID
	}

	// Overstay fine, at most once per session. A missing fine policy is
	// a fatal wiring error and aborts before any state changes.
	overstay := o.overstayHours(vehicle.EntryTime, exit)
	if overstay > 0 {
		amount, err := o.fines.Calculate(overstay)
		if err != nil {
			return nil, err
		}
		fined, err := o.fines.HasSessionFine(ctx, plate, ticketID, model.FineOverstay)
		if err != nil {
			return nil, err
		}
		if !fined {
			f, err := o.fines.Issue(ctx, plate, amount, model.FineOverstay,
				overstayReason(overstay, o.cfg.OverstayThresholdHours), ticketID, exit)
			if err != nil {
				return nil, err
			}
			o.publishFine(*f)
		}
	}

	hours, rate, fee := o.CalculateFee(vehicle, spot, exit)
	fineAmount, err := o.fines.SumUnpaid(ctx, plate)
	if err != nil {
		return nil, err
	}
	total := fee + fineAmount

	// Fine payment is mandatory at exit; there is no deferral.
	payment := model.NewPayment(total, method, plate, ticketID, exit)
	if err := o.payments.Save(ctx, payment); err != nil {
		return nil, err
	}
	if _, err := o.fines.SettleAll(ctx, plate); err != nil {
		return nil, err
	}

	// Best effort: close out the reservation this session used. A
	// failure here must not abort the exit.
	if spot.Category == model.SpotReserved {
		o.completeSessionReservation(ctx, plate, spot.ID, vehicle.EntryTime, exit)
	}

	if err := o.spots.Release(ctx, spot.ID); err != nil {
		return nil, err
	}
	vehicle.ExitTime = &exit
	if err := o.vehicles.Update(ctx, *vehicle); err != nil {
		return nil, err
	}

	receipt := model.Receipt{
		ID:            model.NewReceiptID(),
		Plate:         plate,
		EntryTime:     vehicle.EntryTime,
		ExitTime:      exit,
		DurationHours: hours,
		HourlyRate:    rate,
		ParkingFee:    fee,
		FineAmount:    fineAmount,
		Total:         total,
		Method:        method,
	}
	_ = o.sink.RecordExit(metrics.ExitEvent{
		Plate: plate, SpotID: spot.ID, Category: spot.Category, DurationHours: hours,
		ParkingFee: fee, FineAmount: fineAmount, Total: total, Method: method, Time: exit,
	})
	o.recordOccupancy(ctx)
	if o.bus != nil {
		o.bus.Publish(eventbus.VehicleReleased{Receipt: receipt, SpotID: spot.ID})
	}
	o.log.Infof("%s exited spot %s: fee %.2f, fines %.2f, total %.2f", plate, spot.ID, fee, fineAmount, total)
	return &receipt, nil
}

// CalculateFee computes billable hours, the effective hourly rate and
// the parking fee for a session ending at exit. Partial hours round up
// and every stay bills at least one hour. Handicapped-permit vehicles
// park free in handicapped spots and at the flat special rate anywhere
// else, regardless of the spot's listed rate.
func (o *Orchestrator) CalculateFee(vehicle *model.Vehicle, spot *model.ParkingSpot, exit time.Time) (hours int, rate, fee float64) {
	minutes := exit.Sub(vehicle.EntryTime).Minutes()
	hours = int(math.Ceil(minutes / 60.0))
	if hours < 1 {
		hours = 1
	}
	switch {
	case vehicle.Class == model.ClassHandicapped && spot.Category == model.SpotHandicapped:
		rate = 0
	case vehicle.Class == model.ClassHandicapped:
		rate = o.cfg.HandicappedRate
	default:
		rate = spot.HourlyRate
	}
	return hours, rate, float64(hours) * rate
}

// AvailableSpots lists the available spots a vehicle class may use.
func (o *Orchestrator) AvailableSpots(ctx context.Context, class model.VehicleClass) ([]model.ParkingSpot, error) {
	if !class.Valid() {
		return nil, fault.Invalidf("unknown vehicle class %d", int(class))
	}
	return o.spots.FindAvailableForClass(ctx, class)
}

// FindVehicle returns the plate's active session, or nil.
func (o *Orchestrator) FindVehicle(ctx context.Context, plate string) (*model.Vehicle, error) {
	plate = model.NormalizePlate(plate)
	if plate == "" {
		return nil, nil
	}
	return o.vehicles.FindActive(ctx, plate)
}

// FindSpotByPlate returns the spot the plate occupies, or nil.
func (o *Orchestrator) FindSpotByPlate(ctx context.Context, plate string) (*model.ParkingSpot, error) {
	return o.spots.FindByOccupant(ctx, plate)
}

// recoverEscape force-closes a stale session: issue the overstay fine
// the session earned, release its spot, stamp the exit.
func (o *Orchestrator) recoverEscape(ctx context.Context, vehicle *model.Vehicle) error {
	now := o.now()
	o.log.Warnf("escape recovery for %s: closing session open since %v", vehicle.Plate, vehicle.EntryTime)

	ticketID := ""
	if t, err := o.tickets.FindByPlate(ctx, vehicle.Plate); err == nil && t != nil {
		ticketID = t.ID
	}
	if overstay := o.overstayHours(vehicle.EntryTime, now); overstay > 0 {
		amount, err := o.fines.Calculate(overstay)
		if err != nil {
			return err
		}
		fined, err := o.fines.HasSessionFine(ctx, vehicle.Plate, ticketID, model.FineOverstay)
		if err != nil {
			return err
		}
		if !fined {
			f, err := o.fines.Issue(ctx, vehicle.Plate, amount, model.FineOverstay,
				overstayReason(overstay, o.cfg.OverstayThresholdHours), ticketID, now)
			if err != nil {
				return err
			}
			o.publishFine(*f)
		}
	}

	if spot, err := o.spots.FindByOccupant(ctx, vehicle.Plate); err == nil && spot != nil {
		if err := o.spots.Release(ctx, spot.ID); err != nil {
			o.log.Errorf("escape recovery: release %s: %v", spot.ID, err)
		}
	}

	vehicle.ExitTime = &now
	return o.vehicles.Update(ctx, *vehicle)
}

func (o *Orchestrator) overstayHours(entry, exit time.Time) int {
	parked := int(exit.Sub(entry).Hours())
	over := parked - o.cfg.OverstayThresholdHours
	if over < 0 {
		return 0
	}
	return over
}

func (o *Orchestrator) issueViolation(ctx context.Context, plate, ticketID string, at time.Time) {
	f, err := o.fines.Issue(ctx, plate, o.cfg.ReservedViolationFine, model.FineReservedViolation,
		"reserved spot used without a valid reservation", ticketID, at)
	if err != nil {
		o.log.Errorf("reserved violation fine for %s: %v", plate, err)
		return
	}
	o.publishFine(*f)
}

// recordOccupancy snapshots the facility counts for sinks that export
// the occupancy gauge. Best effort only.
func (o *Orchestrator) recordOccupancy(ctx context.Context) {
	rec, ok := o.sink.(metrics.OccupancyRecorder)
	if !ok {
		return
	}
	spots, err := o.spots.All(ctx)
	if err != nil {
		return
	}
	occupied := 0
	for _, s := range spots {
		if s.Status == model.SpotOccupied {
			occupied++
		}
	}
	_ = rec.RecordOccupancy(occupied, len(spots))
}

func (o *Orchestrator) publishFine(f model.Fine) {
	_ = o.sink.RecordFine(metrics.FineEvent{Plate: f.Plate, Kind: f.Kind, Amount: f.Amount, Time: f.IssuedAt})
	if o.bus != nil {
		o.bus.Publish(eventbus.FineIssued{Fine: f})
	}
}

// completeSessionReservation marks the confirmed reservation this
// session used as completed. Best effort only.
func (o *Orchestrator) completeSessionReservation(ctx context.Context, plate, spotID string, entry, exit time.Time) {
	reservations, err := o.ledger.FindByPlate(ctx, plate)
	if err != nil {
		o.log.Warnf("reservation completion for %s: %v", plate, err)
		return
	}
	for _, r := range reservations {
		if r.SpotID != spotID || r.Status != model.ReservationConfirmed {
			continue
		}
		if !r.OverlapsWindow(entry, exit.Add(time.Nanosecond)) {
			continue
		}
		if err := o.ledger.Complete(ctx, r.ID); err != nil {
			o.log.Warnf("completing reservation %s: %v", r.ID, err)
		}
		return
	}
}

func (o *Orchestrator) compensateRelease(ctx context.Context, spotID string) {
	if err := o.spots.Release(ctx, spotID); err != nil {
		o.log.Errorf("compensating release of %s: %v", spotID, err)
	}
}

// compensateSessionClose finalizes a vehicle record saved by an entry
// that failed later, so no phantom parked vehicle survives.
func (o *Orchestrator) compensateSessionClose(ctx context.Context, v model.Vehicle, at time.Time) {
	v.ExitTime = &at
	if err := o.vehicles.Update(ctx, v); err != nil {
		o.log.Errorf("compensating close of %s session: %v", v.Plate, err)
	}
}

func overstayReason(hours, threshold int) string {
	return fmt.Sprintf("overstay violation: exceeded %d-hour limit by %d hours", threshold, hours)
}
