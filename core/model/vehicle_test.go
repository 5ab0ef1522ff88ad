package model

import (
	"testing"
	"time"
)

func TestCanAccommodate(t *testing.T) {
	cases := []struct {
		class    VehicleClass
		category SpotCategory
		want     bool
	}{
		{ClassMotorcycle, SpotCompact, true},
		{ClassMotorcycle, SpotRegular, false},
		{ClassMotorcycle, SpotHandicapped, false},
		{ClassMotorcycle, SpotReserved, false},
		{ClassMotorcycle, SpotElectric, false},
		{ClassCar, SpotCompact, true},
		{ClassCar, SpotRegular, true},
		{ClassCar, SpotElectric, true},
		{ClassCar, SpotHandicapped, false},
		{ClassCar, SpotReserved, false},
		{ClassSUVTruck, SpotRegular, true},
		{ClassSUVTruck, SpotCompact, false},
		{ClassSUVTruck, SpotElectric, false},
		{ClassSUVTruck, SpotHandicapped, false},
		{ClassSUVTruck, SpotReserved, false},
		{ClassHandicapped, SpotCompact, true},
		{ClassHandicapped, SpotRegular, true},
		{ClassHandicapped, SpotHandicapped, true},
		{ClassHandicapped, SpotReserved, true},
		{ClassHandicapped, SpotElectric, true},
		{ClassBus, SpotReserved, true},
		{ClassBus, SpotCompact, false},
		{ClassBus, SpotRegular, false},
		{ClassBus, SpotHandicapped, false},
		{ClassBus, SpotElectric, false},
	}
	for _, c := range cases {
		if got := CanAccommodate(c.class, c.category); got != c.want {
			t.Errorf("CanAccommodate(%s, %s) = %v, want %v", c.class, c.category, got, c.want)
		}
	}
}

func TestAllowedCategoriesHandicapped(t *testing.T) {
	got := AllowedCategories(ClassHandicapped)
	if len(got) != len(SpotCategories()) {
		t.Fatalf("handicapped permit should reach every category, got %v", got)
	}
}

func TestNormalizePlate(t *testing.T) {
	cases := []struct{ in, want string }{
		{"abc-123", "ABC-123"},
		{"  xy 77  ", "XY 77"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := NormalizePlate(c.in); got != c.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseVehicleClass(t *testing.T) {
	cls, err := ParseVehicleClass("suv_truck")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if cls != ClassSUVTruck {
		t.Errorf("got %v", cls)
	}
	if _, err := ParseVehicleClass("hovercraft"); err == nil {
		t.Error("expected error for unknown class")
	}
}

func TestVehicleActive(t *testing.T) {
	v := Vehicle{Plate: "A", Class: ClassCar, EntryTime: time.Now()}
	if !v.Active() {
		t.Error("vehicle without exit time should be active")
	}
	exit := time.Now()
	v.ExitTime = &exit
	if v.Active() {
		t.Error("vehicle with exit time should not be active")
	}
}
