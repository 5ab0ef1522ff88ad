package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ticket is the immutable proof of entry handed to the driver.
type Ticket struct {
	ID        string    `json:"id"`
	Plate     string    `json:"plate"`
	SpotID    string    `json:"spot_id"`
	EntryTime time.Time `json:"entry_time"`
}

// NewTicket mints a ticket for an entry at the given time.
func NewTicket(plate, spotID string, entry time.Time) Ticket {
	return Ticket{
		ID:        "T-" + strings.ToUpper(uuid.NewString()[:8]),
		Plate:     plate,
		SpotID:    spotID,
		EntryTime: entry,
	}
}
