package models

import (
	"time"
)

const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
)

// Reasons recorded on failed purchases.
const (
	FailureExpired   = "expired"
	FailureCancelled = "cancelled"
)

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CartItem is a snapshot of a ticket type at checkout time.
type CartItem struct {
	TicketTypeID string `json:"ticketTypeId"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	Quantity     int    `json:"quantity"`
}

// CartLine is what a client submits: a type and how many.
type CartLine struct {
	TicketTypeID string `json:"ticketTypeId"`
	Quantity     int    `json:"quantity"`
}

type Purchase struct {
	ID                 string       `json:"id"`
	Reference          string       `json:"reference"`
	CustomerInfo       CustomerInfo `json:"customerInfo"`
	Items              []CartItem   `json:"items"`
	TotalAmount        int64        `json:"totalAmount"`
	QRCode             string       `json:"qrCode"`
	Status             string       `json:"status"` // pending, completed, failed
	PaymentVerified    bool         `json:"paymentVerified"`
	Gateway            string       `json:"gateway,omitempty"`
	GatewayTransaction string       `json:"gatewayTransaction,omitempty"`
	FailureReason      string       `json:"failureReason,omitempty"`
	EntriesUsed        int          `json:"usedTickets"`
	CreatedAt          time.Time    `json:"createdAt"`
	CompletedAt        *time.Time   `json:"completedAt,omitempty"`
}

// TicketCount is the number of admission units the purchase covers.
func (p *Purchase) TicketCount() int {
	n := 0
	for _, item := range p.Items {
		n += item.Quantity
	}
	return n
}

// ItemsTotal sums price x quantity over the snapshot.
func (p *Purchase) ItemsTotal() int64 {
	var total int64
	for _, item := range p.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// PurchaseFilter narrows admin transaction listings.
type PurchaseFilter struct {
	Status string
	Search string
	Limit  int
}
