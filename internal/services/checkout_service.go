package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"ticket-shop/internal/services/gateway"
	"ticket-shop/internal/status"
	"ticket-shop/internal/store"
	"ticket-shop/models"
	"ticket-shop/utils"
)

// LegacyQRPrefix marks the whole-purchase code stored on every purchase.
const LegacyQRPrefix = "TICKET_"

// GatewayResolver hands out a ready gateway for a configuration.
type GatewayResolver interface {
	Resolve(cfg gateway.Config) (gateway.Gateway, error)
}

// Metrics records business counters.
type Metrics interface {
	TrackCheckout(operation, status string)
	TrackIssued(n int)
	TrackScan(result string)
}

type nopMetrics struct{}

func (nopMetrics) TrackCheckout(string, string) {}
func (nopMetrics) TrackIssued(int)              {}
func (nopMetrics) TrackScan(string)             {}

type CheckoutRequest struct {
	Customer models.CustomerInfo `json:"customer"`
	Lines    []models.CartLine   `json:"items"`
}

// CheckoutSession is what the client payment widget needs.
type CheckoutSession struct {
	Reference string    `json:"reference"`
	Email     string    `json:"email"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	PublicKey string    `json:"publicKey"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CheckoutService struct {
	store     store.Store
	inventory *InventoryService
	holds     SeatHolds
	payments  *PaymentConfig
	gateways  GatewayResolver
	metrics   Metrics
	prefix    string
	holdTTL   time.Duration
	now       func() time.Time
}

type CheckoutOptions struct {
	ReferencePrefix string
	HoldTTL         time.Duration
	Metrics         Metrics
}

func NewCheckoutService(st store.Store, inventory *InventoryService, holds SeatHolds, payments *PaymentConfig, gateways GatewayResolver, opts CheckoutOptions) *CheckoutService {
	if holds == nil {
		holds = NopHolds{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = 15 * time.Minute
	}
	return &CheckoutService{
		store:     st,
		inventory: inventory,
		holds:     holds,
		payments:  payments,
		gateways:  gateways,
		metrics:   opts.Metrics,
		prefix:    opts.ReferencePrefix,
		holdTTL:   opts.HoldTTL,
		now:       time.Now,
	}
}

// Initiate validates the cart, holds seats and records a pending purchase.
func (s *CheckoutService) Initiate(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	session, err := s.initiate(ctx, req)
	if err != nil {
		s.metrics.TrackCheckout("initiate", "error")
		return nil, err
	}
	s.metrics.TrackCheckout("initiate", "success")
	return session, nil
}

func (s *CheckoutService) initiate(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	cfg, err := s.payments.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.PublicKey == "" && cfg.Provider != gateway.ProviderMock {
		return nil, fmt.Errorf("%s public key is not configured: %w", cfg.Provider, status.ErrPaymentUnavailable)
	}
	if _, err := s.gateways.Resolve(cfg); err != nil {
		return nil, err
	}

	customer, err := normalizeCustomer(req.Customer)
	if err != nil {
		return nil, err
	}

	items, total, err := s.inventory.ValidateLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reference, err := utils.NewReference(s.prefix, now)
	if err != nil {
		return nil, fmt.Errorf("generate reference: %w", err)
	}

	expiresAt, err := s.holds.Place(ctx, reference, items)
	if err != nil {
		// Holds only shape the storefront; issuance re-checks capacity.
		slog.Warn("Checkout continuing without seat hold", "error", err, "reference", reference)
		expiresAt = now.Add(s.holdTTL)
	}

	purchase := &models.Purchase{
		Reference:    reference,
		CustomerInfo: customer,
		Items:        items,
		TotalAmount:  total,
		QRCode:       LegacyQRPrefix + reference,
		Status:       models.PurchasePending,
		Gateway:      string(cfg.Provider),
		CreatedAt:    now,
	}
	if err := s.store.CreatePurchase(ctx, purchase); err != nil {
		s.releaseHolds(ctx, reference, items)
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	slog.Info("Checkout initiated", "reference", reference, "amount", total, "tickets", purchase.TicketCount())

	return &CheckoutSession{
		Reference: reference,
		Email:     customer.Email,
		Amount:    total,
		Currency:  cfg.Currency,
		PublicKey: cfg.PublicKey,
		Provider:  string(cfg.Provider),
		ExpiresAt: expiresAt,
	}, nil
}

// Cancel fails a pending purchase and gives its seats back.
func (s *CheckoutService) Cancel(ctx context.Context, reference string) error {
	p, err := s.store.GetPurchaseByReference(ctx, reference)
	if err != nil {
		return err
	}
	switch p.Status {
	case models.PurchaseCompleted:
		return fmt.Errorf("purchase %s is already completed: %w", reference, status.ErrConflict)
	case models.PurchaseFailed:
		return nil
	}
	if p.PaymentVerified {
		return fmt.Errorf("purchase %s has a verified payment: %w", reference, status.ErrConflict)
	}

	changed, err := s.store.TransitionPurchase(ctx, p.ID, models.PurchasePending, models.PurchaseFailed, models.FailureCancelled, s.now())
	if err != nil {
		return err
	}
	if !changed {
		current, err := s.store.GetPurchase(ctx, p.ID)
		if err == nil && current.Status == models.PurchaseCompleted {
			return fmt.Errorf("purchase %s is already completed: %w", reference, status.ErrConflict)
		}
		return nil
	}

	s.releaseHolds(ctx, reference, p.Items)
	s.metrics.TrackCheckout("cancel", "success")
	slog.Info("Checkout cancelled", "reference", reference)
	return nil
}

func (s *CheckoutService) releaseHolds(ctx context.Context, reference string, items []models.CartItem) {
	if err := s.holds.Release(ctx, reference, items); err != nil {
		slog.Warn("Failed to release seat holds", "error", err, "reference", reference)
	}
}

func normalizeCustomer(c models.CustomerInfo) (models.CustomerInfo, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)

	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&c.Phone, validation.Length(0, 32)),
	)
	return c, invalid("customer", err)
}
