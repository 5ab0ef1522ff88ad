package model

import (
	"time"

	"github.com/google/uuid"
)

// FineKind identifies the violation a fine was issued for. The kind,
// together with the session's ticket id, is what makes fine issuance
// idempotent per parking session.
type FineKind string

const (
	FineOverstay          FineKind = "overstay"
	FineReservedViolation FineKind = "reserved_violation"
)

// Fine is a penalty issued against a license plate. Fines are never
// deleted; the only mutation is marking them paid.
type Fine struct {
	ID       string    `json:"id"`
	Plate    string    `json:"plate"`
	Amount   float64   `json:"amount"`
	Kind     FineKind  `json:"kind"`
	Reason   string    `json:"reason"`
	TicketID string    `json:"ticket_id,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
	Paid     bool      `json:"paid"`
}

// NewFine creates an unpaid fine. ticketID ties the fine to the parking
// session that triggered it and may be empty for ad hoc fines.
func NewFine(plate string, amount float64, kind FineKind, reason, ticketID string, issuedAt time.Time) Fine {
	return Fine{
		ID:       uuid.NewString(),
		Plate:    plate,
		Amount:   amount,
		Kind:     kind,
		Reason:   reason,
		TicketID: ticketID,
		IssuedAt: issuedAt,
	}
}
