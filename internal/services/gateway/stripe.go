package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"ticket-shop/internal/status"
)

// Stripe verifies payment intents. The client widget reports the intent id;
// the intent's metadata must carry our reference.
type Stripe struct {
	get func(id string) (*stripe.PaymentIntent, error)
}

func NewStripe(cfg Config) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required: %w", status.ErrPaymentUnavailable)
	}
	stripe.Key = cfg.SecretKey

	return &Stripe{
		get: func(id string) (*stripe.PaymentIntent, error) {
			return paymentintent.Get(id, nil)
		},
	}, nil
}

func (s *Stripe) Provider() Provider {
	return ProviderStripe
}

func (s *Stripe) VerifyTransaction(ctx context.Context, req VerifyRequest) (*Transaction, error) {
	tx := &Transaction{
		Provider:      ProviderStripe,
		Reference:     req.Reference,
		TransactionID: req.TransactionID,
	}
	if req.TransactionID == "" {
		tx.Status = StatusNotFound
		tx.Message = "payment intent id is required"
		return tx, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pi, err := s.get(req.TransactionID)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			tx.Status = StatusNotFound
			tx.Message = stripeErr.Msg
			return tx, nil
		}
		return nil, fmt.Errorf("stripe: %v: %w", err, status.ErrPaymentUnavailable)
	}

	if ref := pi.Metadata["reference"]; ref != req.Reference {
		tx.Status = StatusFailed
		tx.Message = "payment intent belongs to another reference"
		return tx, nil
	}

	tx.Amount = pi.Amount
	tx.Currency = strings.ToUpper(string(pi.Currency))
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		tx.Status = StatusSuccess
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresCapture:
		tx.Status = StatusPending
	case stripe.PaymentIntentStatusCanceled:
		tx.Status = StatusAbandoned
	default:
		tx.Status = StatusFailed
	}
	return tx, nil
}
