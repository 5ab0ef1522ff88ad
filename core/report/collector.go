// Package report aggregates read-only facility statistics for the
// admin surface: occupancy, revenue, outstanding fines and stay
// duration statistics.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/store"
)

// Collector queries the stores; it never mutates anything.
type Collector struct {
	stores store.Stores
	now    func() time.Time
}

// New creates a Collector.
func New(stores store.Stores) *Collector {
	return &Collector{stores: stores, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (c *Collector) SetClock(now func() time.Time) { c.now = now }

// OccupancyRate returns the fraction of spots currently occupied, 0 for
// an empty facility.
func (c *Collector) OccupancyRate(ctx context.Context) (float64, error) {
	spots, err := c.stores.Spots.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(spots) == 0 {
		return 0, nil
	}
	occupied := 0
	for _, s := range spots {
		if !s.Available() {
			occupied++
		}
	}
	return float64(occupied) / float64(len(spots)), nil
}

// SpotCounts returns total and available spot counts.
func (c *Collector) SpotCounts(ctx context.Context) (total, available int, err error) {
	spots, err := c.stores.Spots.FindAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range spots {
		if s.Available() {
			available++
		}
	}
	return len(spots), available, nil
}

// CurrentlyParked returns the active vehicle sessions.
func (c *Collector) CurrentlyParked(ctx context.Context) ([]model.Vehicle, error) {
	return c.stores.Vehicles.FindAllActive(ctx)
}

// OutstandingFines returns every unpaid fine.
func (c *Collector) OutstandingFines(ctx context.Context) ([]model.Fine, error) {
	return c.stores.Fines.FindAllUnpaid(ctx)
}

// TotalRevenue sums payments recorded in [start, end). Amounts are
// accumulated as decimals so large reports do not drift.
func (c *Collector) TotalRevenue(ctx context.Context, start, end time.Time) (float64, error) {
	if start.IsZero() || end.IsZero() {
		return 0, fault.Invalidf("revenue range cannot be empty")
	}
	if end.Before(start) {
		return 0, fault.Invalidf("revenue range end %v precedes start %v", end, start)
	}
	payments, err := c.stores.Payments.FindBetween(ctx, start, end)
	if err != nil {
		return 0, err
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(decimal.NewFromFloat(p.Amount))
	}
	f, _ := total.Float64()
	return f, nil
}

// StayStats summarizes how long the currently parked vehicles have been
// in the facility.
type StayStats struct {
	Count     int     `json:"count"`
	MeanHours float64 `json:"mean_hours"`
	P95Hours  float64 `json:"p95_hours"`
	MaxHours  float64 `json:"max_hours"`
}

// Stays computes duration statistics over the active sessions.
func (c *Collector) Stays(ctx context.Context) (StayStats, error) {
	vehicles, err := c.stores.Vehicles.FindAllActive(ctx)
	if err != nil {
		return StayStats{}, err
	}
	if len(vehicles) == 0 {
		return StayStats{}, nil
	}
	now := c.now()
	hours := make([]float64, 0, len(vehicles))
	for _, v := range vehicles {
		hours = append(hours, now.Sub(v.EntryTime).Hours())
	}
	sort.Float64s(hours)
	return StayStats{
		Count:     len(hours),
		MeanHours: stat.Mean(hours, nil),
		P95Hours:  stat.Quantile(0.95, stat.Empirical, hours, nil),
		MaxHours:  hours[len(hours)-1],
	}, nil
}
