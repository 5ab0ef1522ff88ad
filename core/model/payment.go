package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how a driver settles the amount due at exit.
type PaymentMethod int

const (
	PayCash PaymentMethod = iota
	PayCard
)

func (m PaymentMethod) String() string {
	if m == PayCard {
		return "card"
	}
	return "cash"
}

// ParsePaymentMethod converts a string to a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return PayCash, nil
	case "card":
		return PayCard, nil
	}
	return 0, fmt.Errorf("unknown payment method %q", s)
}

// Payment records a settled amount for a session: parking fee plus any
// fines collected at the same exit.
type Payment struct {
	ID       string        `json:"id"`
	Amount   float64       `json:"amount"`
	Method   PaymentMethod `json:"method"`
	Plate    string        `json:"plate"`
	TicketID string        `json:"ticket_id,omitempty"`
	PaidAt   time.Time     `json:"paid_at"`
}

// NewPayment creates a payment record.
func NewPayment(amount float64, method PaymentMethod, plate, ticketID string, paidAt time.Time) Payment {
	return Payment{
		ID:       uuid.NewString(),
		Amount:   amount,
		Method:   method,
		Plate:    plate,
		TicketID: ticketID,
		PaidAt:   paidAt,
	}
}

// Receipt is the immutable summary produced once per exit.
type Receipt struct {
	ID            string        `json:"id"`
	Plate         string        `json:"plate"`
	EntryTime     time.Time     `json:"entry_time"`
	ExitTime      time.Time     `json:"exit_time"`
	DurationHours int           `json:"duration_hours"`
	HourlyRate    float64       `json:"hourly_rate"`
	ParkingFee    float64       `json:"parking_fee"`
	FineAmount    float64       `json:"fine_amount"`
	Total         float64       `json:"total"`
	Method        PaymentMethod `json:"method"`
}

// NewReceiptID mints a short receipt identifier.
func NewReceiptID() string {
	return "R-" + strings.ToUpper(uuid.NewString()[:8])
}
