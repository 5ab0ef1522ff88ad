// Package registry is the catalog of physical spots. It answers
// availability and compatibility queries and owns the assign/release
// transitions, serialized per spot.
package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/logger"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/internal/keylock"
	"github.com/parkade/parkade/store"
)

// SpotRegistry fronts the spot store. Assign and Release for the same
// spot serialize on a per-spot lock so concurrent entries racing for
// one spot see exactly one winner; unrelated spots do not contend.
type SpotRegistry struct {
	spots store.SpotStore
	locks *keylock.KeyLock
	log   logger.Logger
}

// New creates a SpotRegistry over the given store.
func New(spots store.SpotStore, log logger.Logger) *SpotRegistry {
	return &SpotRegistry{spots: spots, locks: keylock.New(), log: log}
}

// Get fetches one spot by id.
func (r *SpotRegistry) Get(ctx context.Context, spotID string) (*model.ParkingSpot, error) {
	if strings.TrimSpace(spotID) == "" {
		return nil, fault.Invalidf("spot id cannot be empty")
	}
	return r.spots.Find(ctx, spotID)
}

// All returns every spot, ordered by id.
func (r *SpotRegistry) All(ctx context.Context) ([]model.ParkingSpot, error) {
	return r.spots.FindAll(ctx)
}

// FindAvailableByCategory returns available spots of one category in id
// order.
func (r *SpotRegistry) FindAvailableByCategory(ctx context.Context, cat model.SpotCategory) ([]model.ParkingSpot, error) {
	return r.spots.FindAvailableByCategory(ctx, cat)
}

// FindAvailableForClass returns available spots a vehicle of the given
// class may use, in id order across categories.
func (r *SpotRegistry) FindAvailableForClass(ctx context.Context, class model.VehicleClass) ([]model.ParkingSpot, error) {
	var out []model.ParkingSpot
	for _, cat := range model.SpotCategories() {
		if !model.CanAccommodate(class, cat) {
			continue
		}
		spots, err := r.spots.FindAvailableByCategory(ctx, cat)
		if err != nil {
			return nil, err
		}
		out = append(out, spots...)
	}
	sortByID(out)
	return out, nil
}

// Assign occupies the spot with the plate. Fails with NotFound for an
// unknown spot and InvalidState for one that is not available; calling
// twice without a release is an error, not a no-op.
func (r *SpotRegistry) Assign(ctx context.Context, spotID, plate string) error {
	if strings.TrimSpace(spotID) == "" {
		return fault.Invalidf("spot id cannot be empty")
	}
	r.locks.Lock(spotID)
	defer r.locks.Unlock(spotID)

	spot, err := r.spots.Find(ctx, spotID)
	if err != nil {
		return err
	}
	if spot == nil {
		return fault.NotFoundf("spot %s not found", spotID)
	}
	if err := spot.Assign(plate); err != nil {
		return err
	}
	if err := r.spots.Update(ctx, *spot); err != nil {
		return err
	}
	r.log.Debugw("spot assigned", map[string]any{"spot": spotID, "plate": plate})
	return nil
}

// Release frees the spot. Fails with InvalidState if it is already
// available.
func (r *SpotRegistry) Release(ctx context.Context, spotID string) error {
	if strings.TrimSpace(spotID) == "" {
		return fault.Invalidf("spot id cannot be empty")
	}
	r.locks.Lock(spotID)
	defer r.locks.Unlock(spotID)

	spot, err := r.spots.Find(ctx, spotID)
	if err != nil {
		return err
	}
	if spot == nil {
		return fault.NotFoundf("spot %s not found", spotID)
	}
	if err := spot.Release(); err != nil {
		return err
	}
	if err := r.spots.Update(ctx, *spot); err != nil {
		return err
	}
	r.log.Debugw("spot released", map[string]any{"spot": spotID})
	return nil
}

// FindByOccupant locates the spot a plate currently occupies, or nil.
func (r *SpotRegistry) FindByOccupant(ctx context.Context, plate string) (*model.ParkingSpot, error) {
	plate = model.NormalizePlate(plate)
	if plate == "" {
		return nil, nil
	}
	return r.spots.FindByOccupant(ctx, plate)
}

func sortByID(spots []model.ParkingSpot) {
	sort.Slice(spots, func(i, j int) bool { return spots[i].ID < spots[j].ID })
}
