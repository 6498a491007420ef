package models

import (
	"time"
)

type EventDetails struct {
	ID          string    `json:"id,omitempty"`
	EventName   string    `json:"eventName"`
	EventDate   string    `json:"eventDate"`
	Venue       string    `json:"venue"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Keys of the settings collection.
const (
	SettingPaymentProvider   = "payment_provider"
	SettingPaystackPublicKey = "paystack_public_key"
	SettingPaystackSecretKey = "paystack_secret_key"
	SettingStripePublicKey   = "stripe_publishable_key"
	SettingStripeSecretKey   = "stripe_secret_key"
)

type GatewaySettings struct {
	Provider  string `json:"provider"`
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey,omitempty"`
	Currency  string `json:"currency,omitempty"`
}
