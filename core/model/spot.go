package model

import (
	"fmt"
	"strings"

	"github.com/parkade/parkade/core/fault"
)

// SpotCategory classifies a physical parking spot. The category governs
// which vehicle classes may use the spot and its base hourly rate.
type SpotCategory int

const (
	SpotCompact SpotCategory = iota
	SpotRegular
	SpotHandicapped
	SpotReserved
	SpotElectric
)

var spotCategoryNames = map[SpotCategory]string{
	SpotCompact:     "compact",
	SpotRegular:     "regular",
	SpotHandicapped: "handicapped",
	SpotReserved:    "reserved",
	SpotElectric:    "electric",
}

func (c SpotCategory) String() string {
	if n, ok := spotCategoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseSpotCategory converts a configuration string to a SpotCategory.
func ParseSpotCategory(s string) (SpotCategory, error) {
	for c, n := range spotCategoryNames {
		if n == strings.ToLower(strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown spot category %q", s)
}

// SpotCategories lists all categories in declaration order.
func SpotCategories() []SpotCategory {
	return []SpotCategory{SpotCompact, SpotRegular, SpotHandicapped, SpotReserved, SpotElectric}
}

// SpotStatus is the occupancy state of a spot.
type SpotStatus int

const (
	SpotAvailable SpotStatus = iota
	SpotOccupied
)

func (s SpotStatus) String() string {
	if s == SpotOccupied {
		return "occupied"
	}
	return "available"
}

// ParkingSpot is a physical spot in the facility. Status and Occupant
// always move together: Occupant is non-empty iff Status is SpotOccupied.
// Spots are created once at facility setup and mutate only through
// Assign and Release.
type ParkingSpot struct {
	ID         string       `json:"id"`
	Category   SpotCategory `json:"category"`
	HourlyRate float64      `json:"hourly_rate"`
	Status     SpotStatus   `json:"status"`
	Occupant   string       `json:"occupant,omitempty"`
}

// NewParkingSpot creates an available spot after validating its fields.
func NewParkingSpot(id string, category SpotCategory, hourlyRate float64) (*ParkingSpot, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fault.Invalidf("spot id cannot be empty")
	}
	if hourlyRate < 0 {
		return nil, fault.Invalidf("hourly rate cannot be negative")
	}
	return &ParkingSpot{ID: id, Category: category, HourlyRate: hourlyRate, Status: SpotAvailable}, nil
}

// Available reports whether the spot can accept a vehicle.
func (s *ParkingSpot) Available() bool { return s.Status == SpotAvailable }

// Assign transitions the spot to occupied by the given plate. Assigning
// an occupied spot is an error, never a no-op.
func (s *ParkingSpot) Assign(plate string) error {
	if !s.Available() {
		return fault.Statef("spot %s is already occupied by %s", s.ID, s.Occupant)
	}
	if strings.TrimSpace(plate) == "" {
		return fault.Invalidf("license plate cannot be empty")
	}
	s.Occupant = plate
	s.Status = SpotOccupied
	return nil
}

// Release clears the occupant and makes the spot available again.
func (s *ParkingSpot) Release() error {
	if s.Available() {
		return fault.Statef("spot %s is not occupied", s.ID)
	}
	s.Occupant = ""
	s.Status = SpotAvailable
	return nil
}
