package fine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/logger"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/store"
)

// Service issues and settles fines and owns the active policy. The
// policy is swappable at runtime; swapping never touches fines that
// were already issued.
type Service struct {
	fines store.FineStore
	log   logger.Logger

	mu     sync.RWMutex
	policy Policy
}

// NewService creates a Service with the given initial policy. A nil
// policy is allowed at construction but calculating with one is a
// configuration error.
func NewService(fines store.FineStore, policy Policy, log logger.Logger) *Service {
	return &Service{fines: fines, policy: policy, log: log}
}

// SetPolicy swaps the active calculation policy.
func (s *Service) SetPolicy(p Policy) error {
	if p == nil {
		return fault.Invalidf("fine policy cannot be nil")
	}
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	return nil
}

// Policy returns the active policy, or nil if none is configured.
func (s *Service) Policy() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Calculate sizes an overstay fine with the active policy. A missing
// policy is a fatal wiring error, never silently zero.
func (s *Service) Calculate(overstayHours int) (float64, error) {
	s.mu.RLock()
	p := s.policy
	s.mu.RUnlock()
	if p == nil {
		return 0, fault.Configf("no fine policy configured")
	}
	if overstayHours <= 0 {
		return 0, nil
	}
	return p.Calculate(overstayHours), nil
}

// Issue creates and persists an unpaid fine.
func (s *Service) Issue(ctx context.Context, plate string, amount float64, kind model.FineKind, reason, ticketID string, at time.Time) (*model.Fine, error) {
	if strings.TrimSpace(plate) == "" {
		return nil, fault.Invalidf("license plate cannot be empty")
	}
	if amount < 0 {
		return nil, fault.Invalidf("fine amount cannot be negative")
	}
	f := model.NewFine(model.NormalizePlate(plate), amount, kind, reason, ticketID, at)
	if err := s.fines.Save(ctx, f); err != nil {
		return nil, err
	}
	s.log.Infof("issued %s fine of %.2f to %s", kind, amount, f.Plate)
	return &f, nil
}

// Unpaid returns the plate's outstanding fines.
func (s *Service) Unpaid(ctx context.Context, plate string) ([]model.Fine, error) {
	if strings.TrimSpace(plate) == "" {
		return nil, fault.Invalidf("license plate cannot be empty")
	}
	return s.fines.FindUnpaidByPlate(ctx, model.NormalizePlate(plate))
}

// SumUnpaid totals the plate's outstanding fines.
func (s *Service) SumUnpaid(ctx context.Context, plate string) (float64, error) {
	if strings.TrimSpace(plate) == "" {
		return 0, nil
	}
	return s.fines.SumUnpaidByPlate(ctx, model.NormalizePlate(plate))
}

// MarkPaid settles a single fine.
func (s *Service) MarkPaid(ctx context.Context, fineID string) error {
	if strings.TrimSpace(fineID) == "" {
		return fault.Invalidf("fine id cannot be empty")
	}
	return s.fines.MarkPaid(ctx, fineID)
}

// SettleAll marks every unpaid fine for the plate as paid and returns
// the settled amount.
func (s *Service) SettleAll(ctx context.Context, plate string) (float64, error) {
	unpaid, err := s.Unpaid(ctx, plate)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, f := range unpaid {
		if err := s.fines.MarkPaid(ctx, f.ID); err != nil {
			return total, err
		}
		total += f.Amount
	}
	return total, nil
}

// HasSessionFine reports whether an overstay (or other kind) fine was
// already issued for the session identified by ticketID. This is the
// per-session idempotency check for exit-time fine issuance.
func (s *Service) HasSessionFine(ctx context.Context, plate, ticketID string, kind model.FineKind) (bool, error) {
	if ticketID == "" {
		return false, nil
	}
	unpaid, err := s.fines.FindUnpaidByPlate(ctx, model.NormalizePlate(plate))
	if err != nil {
		return false, err
	}
	for _, f := range unpaid {
		if f.TicketID == ticketID && f.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}
