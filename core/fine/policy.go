// Package fine implements the violation-fine engine: a swappable
// calculation policy plus issuance and payment tracking over the fine
// store.
package fine

import "math"

// Policy computes a fine amount from whole hours of overstay. Every
// implementation returns 0 for a non-positive overstay.
type Policy interface {
	Calculate(overstayHours int) float64
	// MaxCap is the largest amount the policy can yield.
	MaxCap() float64
}

// Fixed charges a flat amount regardless of duration.
type Fixed struct {
	amount float64
}

// DefaultFixedAmount is the flat overstay fine.
const DefaultFixedAmount = 50.0

// NewFixed returns the default flat-amount policy.
func NewFixed() Fixed { return Fixed{amount: DefaultFixedAmount} }

// NewFixedAmount returns a flat policy with a custom amount.
func NewFixedAmount(amount float64) Fixed { return Fixed{amount: amount} }

func (f Fixed) Calculate(overstayHours int) float64 {
	if overstayHours <= 0 {
		return 0
	}
	return f.amount
}

func (f Fixed) MaxCap() float64 { return f.amount }

// Hourly charges per hour of overstay, clamped to a ceiling.
type Hourly struct {
	rate float64
	cap  float64
}

// DefaultHourlyRate is the per-hour overstay fine.
const DefaultHourlyRate = 20.0

// NewHourly returns the default uncapped hourly policy.
func NewHourly() Hourly {
	return Hourly{rate: DefaultHourlyRate, cap: math.MaxFloat64}
}

// NewHourlyCapped returns an hourly policy with a ceiling.
func NewHourlyCapped(rate, cap float64) Hourly {
	return Hourly{rate: rate, cap: cap}
}

func (h Hourly) Calculate(overstayHours int) float64 {
	if overstayHours <= 0 {
		return 0
	}
	return math.Min(h.rate*float64(overstayHours), h.cap)
}

func (h Hourly) MaxCap() float64 { return h.cap }

// Progressive tier thresholds, in hours of overstay beyond the parking
// limit. Thresholds are strict: exactly 24 hours of overstay pays only
// tier one.
const (
	tier1Hours = 24
	tier2Hours = 48
	tier3Hours = 72
)

const (
	tier1Fine = 50.0
	tier2Fine = 100.0
	tier3Fine = 150.0
	tier4Fine = 200.0
)

// DefaultProgressiveCap bounds the cumulative progressive fine.
const DefaultProgressiveCap = 500.0

// Progressive charges a cumulative step function of the overstay.
type Progressive struct {
	cap float64
}

// NewProgressive returns the tiered policy with the default cap.
func NewProgressive() Progressive { return Progressive{cap: DefaultProgressiveCap} }

// NewProgressiveCapped returns the tiered policy with a custom cap.
func NewProgressiveCapped(cap float64) Progressive { return Progressive{cap: cap} }

func (p Progressive) Calculate(overstayHours int) float64 {
	if overstayHours <= 0 {
		return 0
	}
	total := tier1Fine
	if overstayHours > tier1Hours {
		total += tier2Fine
	}
	if overstayHours > tier2Hours {
		total += tier3Fine
	}
	if overstayHours > tier3Hours {
		total += tier4Fine
	}
	return math.Min(total, p.cap)
}

func (p Progressive) MaxCap() float64 { return p.cap }

// Capped decorates another policy with an external ceiling. It composes
// custom caps without touching the wrapped policy.
type Capped struct {
	inner Policy
	cap   float64
}

// NewCapped wraps policy so its result never exceeds cap.
func NewCapped(inner Policy, cap float64) Capped {
	return Capped{inner: inner, cap: cap}
}

func (c Capped) Calculate(overstayHours int) float64 {
	if overstayHours <= 0 {
		return 0
	}
	return math.Min(c.inner.Calculate(overstayHours), c.cap)
}

func (c Capped) MaxCap() float64 { return c.cap }

// Inner exposes the wrapped policy.
func (c Capped) Inner() Policy { return c.inner }
