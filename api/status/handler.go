// Package status exposes read-only lot state over HTTP.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/core/report"
)

// Summary is the payload served by the lot handler.
type Summary struct {
	TotalSpots     int             `json:"total_spots"`
	AvailableSpots int             `json:"available_spots"`
	OccupancyRate  float64         `json:"occupancy_rate"`
	Parked         []model.Vehicle `json:"parked"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// NewLotHandler returns an HTTP handler serving the lot summary via GET /api/lot.
func NewLotHandler(rep *report.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx := r.Context()
		total, available, err := rep.SpotCounts(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rate, err := rep.OccupancyRate(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		parked, err := rep.CurrentlyParked(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s := Summary{
			TotalSpots:     total,
			AvailableSpots: available,
			OccupancyRate:  rate,
			Parked:         parked,
			GeneratedAt:    time.Now().UTC(),
		}
		writeJSON(w, s)
	})
}

// SpotLister resolves available spots for a vehicle class. The parking
// orchestrator satisfies it.
type SpotLister interface {
	AvailableSpots(ctx context.Context, class model.VehicleClass) ([]model.ParkingSpot, error)
}

// NewAvailabilityHandler serves available spots for a vehicle class via
// GET /api/spots?class=car.
func NewAvailabilityHandler(lister SpotLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		class, err := model.ParseVehicleClass(r.URL.Query().Get("class"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		spots, err := lister.AvailableSpots(r.Context(), class)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, spots)
	})
}

// NewFinesHandler serves outstanding fines via GET /api/fines.
func NewFinesHandler(rep *report.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fines, err := rep.OutstandingFines(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, fines)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
