package model

import (
	"fmt"
	"strings"
	"time"
)

// VehicleClass is the closed set of vehicle kinds the facility admits.
type VehicleClass int

const (
	ClassMotorcycle VehicleClass = iota
	ClassCar
	ClassSUVTruck
	ClassHandicapped
	ClassBus
)

var vehicleClassNames = map[VehicleClass]string{
	ClassMotorcycle:  "motorcycle",
	ClassCar:         "car",
	ClassSUVTruck:    "suv_truck",
	ClassHandicapped: "handicapped",
	ClassBus:         "bus",
}

func (c VehicleClass) String() string {
	if n, ok := vehicleClassNames[c]; ok {
		return n
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Valid reports whether c is one of the declared classes.
func (c VehicleClass) Valid() bool {
	_, ok := vehicleClassNames[c]
	return ok
}

// ParseVehicleClass converts a string to a VehicleClass.
func ParseVehicleClass(s string) (VehicleClass, error) {
	for c, n := range vehicleClassNames {
		if n == strings.ToLower(strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown vehicle class %q", s)
}

// VehicleClasses lists all classes in declaration order.
func VehicleClasses() []VehicleClass {
	return []VehicleClass{ClassMotorcycle, ClassCar, ClassSUVTruck, ClassHandicapped, ClassBus}
}

// compatibility maps each vehicle class to the spot categories it may
// occupy. Handicapped-permit vehicles may use any category; buses only
// fit in reserved (oversize) spots.
var compatibility = map[VehicleClass][]SpotCategory{
	ClassMotorcycle:  {SpotCompact},
	ClassCar:         {SpotCompact, SpotRegular, SpotElectric},
	ClassSUVTruck:    {SpotRegular},
	ClassHandicapped: {SpotCompact, SpotRegular, SpotHandicapped, SpotReserved, SpotElectric},
	ClassBus:         {SpotReserved},
}

// CanAccommodate reports whether a spot of the given category may hold a
// vehicle of the given class.
func CanAccommodate(class VehicleClass, category SpotCategory) bool {
	for _, c := range compatibility[class] {
		if c == category {
			return true
		}
	}
	return false
}

// AllowedCategories returns the spot categories the class may use.
func AllowedCategories(class VehicleClass) []SpotCategory {
	cats := compatibility[class]
	out := make([]SpotCategory, len(cats))
	copy(out, cats)
	return out
}

// NormalizePlate canonicalizes a license plate for lookups.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// Vehicle is one parking session for a license plate. At most one
// active record (entry set, exit nil) exists per plate; records with an
// exit time are history.
type Vehicle struct {
	Plate     string       `json:"plate"`
	Class     VehicleClass `json:"class"`
	EntryTime time.Time    `json:"entry_time"`
	ExitTime  *time.Time   `json:"exit_time,omitempty"`
}

// Active reports whether the vehicle is currently parked.
func (v *Vehicle) Active() bool {
	return !v.EntryTime.IsZero() && v.ExitTime == nil
}
