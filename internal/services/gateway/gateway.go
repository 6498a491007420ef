package gateway

import (
	"context"
	"time"
)

// Provider names a payment gateway integration.
type Provider string

const (
	ProviderPaystack Provider = "paystack"
	ProviderStripe   Provider = "stripe"
	ProviderMock     Provider = "mock"
)

// Transaction statuses as normalised across providers.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusPending   = "pending"
	StatusNotFound  = "not_found"
)

// VerifyRequest identifies a transaction to look up server-side.
// Reference is ours; TransactionID is the gateway's own id when the
// client widget reports one (Stripe payment intents need it).
type VerifyRequest struct {
	Reference     string
	TransactionID string
}

// Transaction is the authoritative answer from a gateway.
type Transaction struct {
	Provider      Provider  `json:"provider"`
	Reference     string    `json:"reference"`
	TransactionID string    `json:"transactionId"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	Amount        int64     `json:"amount"` // minor units, 0 when not reported
	Currency      string    `json:"currency,omitempty"`
	PaidAt        time.Time `json:"paidAt,omitempty"`
}

func (t *Transaction) Succeeded() bool {
	return t != nil && t.Status == StatusSuccess
}

// Gateway verifies transactions with a payment provider.
//
// Implementations return an error wrapping status.ErrPaymentUnavailable when
// the provider cannot be reached, and a non-success Transaction when it
// answers that the payment did not go through.
type Gateway interface {
	Provider() Provider
	VerifyTransaction(ctx context.Context, req VerifyRequest) (*Transaction, error)
}

// Config holds what is needed to build a Gateway.
type Config struct {
	Provider  Provider
	PublicKey string
	SecretKey string
	BaseURL   string
	Currency  string
	Timeout   time.Duration
}
