package config

import (
	"math"

	"github.com/parkade/parkade/core/fine"
)

// Policy builds the fine policy selected by the section. Validate must
// have passed first.
func (c FinesConfig) Policy() fine.Policy {
	switch c.Strategy {
	case "hourly":
		rate := c.HourlyRate
		if rate == 0 {
			rate = fine.DefaultHourlyRate
		}
		cap := c.Cap
		if cap == 0 {
			cap = math.MaxFloat64
		}
		return fine.NewHourlyCapped(rate, cap)
	case "progressive":
		if c.Cap > 0 {
			return fine.NewProgressiveCapped(c.Cap)
		}
		return fine.NewProgressive()
	default:
		if c.Amount > 0 {
			return fine.NewFixedAmount(c.Amount)
		}
		return fine.NewFixed()
	}
}
