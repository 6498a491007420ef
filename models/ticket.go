package models

import (
	"time"
)

const (
	TicketValid = "valid"
	TicketUsed  = "used"
)

type Ticket struct {
	ID           string     `json:"id"`
	TicketNumber string     `json:"ticketNumber"`
	QRCode       string     `json:"qrCode"`
	PurchaseID   string     `json:"purchaseId"`
	TicketTypeID string     `json:"ticketTypeId"`
	Status       string     `json:"status"` // valid, used
	UsedAt       *time.Time `json:"usedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Entry is one granted admission. Append only.
type Entry struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticketId"`
	PurchaseID string    `json:"purchaseId"`
	Gate       string    `json:"gate,omitempty"`
	ScannedAt  time.Time `json:"scannedAt"`
}

// IssuedTicket is the public pair returned after issuance.
type IssuedTicket struct {
	TicketNumber string `json:"ticketNumber"`
	QRCode       string `json:"qrCode"`
}
