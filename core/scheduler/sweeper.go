// Package scheduler runs the periodic reservation-expiry sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/parkade/parkade/core/logger"
	"github.com/parkade/parkade/core/reservation"
)

// Config defines sweep parameters loaded from configuration.
type Config struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// SetDefaults fills in a sane sweep interval.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 60
	}
}

// Sweeper expires stale reservations on a fixed interval. Sweeps are
// idempotent, so an overlapping or repeated run is harmless.
type Sweeper struct {
	ledger   *reservation.Ledger
	interval time.Duration
	log      logger.Logger
}

// New creates a Sweeper.
func New(cfg Config, ledger *reservation.Ledger, log logger.Logger) *Sweeper {
	cfg.SetDefaults()
	return &Sweeper{
		ledger:   ledger,
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		log:      log,
	}
}

// Run sweeps until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	n, err := s.ledger.ExpireStale(ctx)
	if err != nil {
		s.log.Errorf("reservation sweep: %v", err)
		return
	}
	if n > 0 {
		s.log.Debugf("reservation sweep expired %d", n)
	}
}
