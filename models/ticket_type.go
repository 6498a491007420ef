package models

import (
	"time"
)

// TicketType is a purchasable category. Price is in minor currency units.
type TicketType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Description string    `json:"description"`
	Date        string    `json:"date,omitempty"`
	Time        string    `json:"time,omitempty"`
	Location    string    `json:"location,omitempty"`
	Total       int       `json:"total"`
	Available   int       `json:"available"`
	Sold        int       `json:"sold"`
	Held        int       `json:"held,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TicketTypeSpec is the admin input for create and update.
// PriceMajor, when set, takes precedence over Price ("12.50" -> 1250).
type TicketTypeSpec struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	PriceMajor  string `json:"priceMajor,omitempty"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Location    string `json:"location,omitempty"`
	Total       int    `json:"total"`
}
