package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticket-shop/internal/services/gateway"
	"ticket-shop/internal/status"
	"ticket-shop/internal/store"
	"ticket-shop/models"
	"ticket-shop/utils"
)

// Issued is the result of a successful verification.
type Issued struct {
	Reference string                `json:"reference"`
	Tickets   []models.IssuedTicket `json:"tickets"`
}

// errCompletedElsewhere aborts an issuance transaction that lost the race
// to complete the purchase.
var errCompletedElsewhere = errors.New("purchase completed concurrently")

const ticketNumberAttempts = 3

type IssuanceService struct {
	store    store.Store
	payments *PaymentConfig
	gateways GatewayResolver
	holds    SeatHolds
	signer   *PayloadSigner
	notifier *Notifier
	metrics  Metrics
	now      func() time.Time
}

func NewIssuanceService(st store.Store, payments *PaymentConfig, gateways GatewayResolver, holds SeatHolds, signer *PayloadSigner, notifier *Notifier, metrics Metrics) *IssuanceService {
	if holds == nil {
		holds = NopHolds{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &IssuanceService{
		store:    st,
		payments: payments,
		gateways: gateways,
		holds:    holds,
		signer:   signer,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Issue verifies the payment for reference and mints its tickets. Calling it
// again for an issued purchase returns the same tickets.
func (s *IssuanceService) Issue(ctx context.Context, reference, transactionID string) (*Issued, error) {
	p, err := s.store.GetPurchaseByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if issued, err := s.existing(ctx, p); err != nil || issued != nil {
		return issued, err
	}
	if !issuable(p) {
		return nil, fmt.Errorf("purchase %s is %s (%s): %w", reference, p.Status, p.FailureReason, status.ErrConflict)
	}

	if !p.PaymentVerified {
		if err := s.verify(ctx, p, transactionID); err != nil {
			s.metrics.TrackCheckout("verify", "error")
			return nil, err
		}
	}

	var tickets []models.Ticket
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		var err error
		tickets, err = s.mint(ctx, tx, p)
		return err
	})
	if errors.Is(err, errCompletedElsewhere) {
		issued, err := s.existing(ctx, p)
		if err == nil && issued == nil {
			err = fmt.Errorf("purchase %s changed during issuance: %w", reference, status.ErrConflict)
		}
		return issued, err
	}
	if err != nil {
		s.metrics.TrackCheckout("issue", "error")
		slog.Error("Ticket issuance failed", "error", err, "reference", reference)
		return nil, err
	}

	if err := s.holds.Release(ctx, reference, p.Items); err != nil {
		slog.Warn("Failed to release seat holds", "error", err, "reference", reference)
	}
	s.metrics.TrackIssued(len(tickets))
	s.metrics.TrackCheckout("issue", "success")
	s.notifier.PurchaseCompleted(ctx, reference, len(tickets))
	for _, item := range p.Items {
		s.notifier.InventoryUpdated(ctx, item.TicketTypeID)
	}
	slog.Info("Tickets issued", "reference", reference, "tickets", len(tickets), "ordered", p.TicketCount())

	return issuedFrom(reference, tickets), nil
}

func (s *IssuanceService) existing(ctx context.Context, p *models.Purchase) (*Issued, error) {
	tickets, err := s.store.ListTicketsByPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, nil
	}
	return issuedFrom(p.Reference, tickets), nil
}

func (s *IssuanceService) verify(ctx context.Context, p *models.Purchase, transactionID string) error {
	cfg, err := s.payments.Load(ctx)
	if err != nil {
		return err
	}
	gw, err := s.gateways.Resolve(cfg)
	if err != nil {
		return err
	}

	tx, err := gw.VerifyTransaction(ctx, gateway.VerifyRequest{Reference: p.Reference, TransactionID: transactionID})
	if err != nil {
		slog.Warn("Payment verification call failed", "error", err, "reference", p.Reference)
		return fmt.Errorf("verify %s: %v: %w", p.Reference, err, status.ErrPaymentVerificationFailed)
	}
	if !tx.Succeeded() {
		slog.Warn("Payment not confirmed by gateway", "reference", p.Reference, "status", tx.Status, "message", tx.Message)
		return fmt.Errorf("gateway reports %s: %w", tx.Status, status.ErrPaymentVerificationFailed)
	}
	if tx.Amount != 0 && tx.Amount != p.TotalAmount {
		slog.Error("Payment amount mismatch", "reference", p.Reference, "expected", p.TotalAmount, "paid", tx.Amount)
		return fmt.Errorf("paid %d, expected %d: %w", tx.Amount, p.TotalAmount, status.ErrPaymentVerificationFailed)
	}

	if err := s.store.MarkPaymentVerified(ctx, p.ID, string(gw.Provider()), tx.TransactionID); err != nil {
		return fmt.Errorf("mark payment verified: %w", err)
	}
	p.PaymentVerified = true
	if p.Status == models.PurchaseFailed {
		slog.Warn("Payment confirmed for an expired purchase", "reference", p.Reference, "transaction", tx.TransactionID)
	}
	return nil
}

// mint runs inside the issuance transaction.
func (s *IssuanceService) mint(ctx context.Context, tx store.Store, p *models.Purchase) ([]models.Ticket, error) {
	existing, err := tx.ListTicketsByPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, errCompletedElsewhere
	}
	// The reaper may have expired the purchase since it was read.
	cur, err := tx.GetPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !issuable(cur) {
		return nil, errCompletedElsewhere
	}

	if err := checkCapacity(ctx, tx, p); err != nil {
		slog.Error("Verified purchase exceeds capacity", "error", err, "reference", p.Reference, "status", cur.Status)
		return nil, err
	}

	now := s.now()
	var tickets []models.Ticket
	for _, item := range p.Items {
		for i := 0; i < item.Quantity; i++ {
			t, err := s.saveTicket(ctx, tx, p, item.TicketTypeID, now)
			if err != nil {
				slog.Error("Failed to persist ticket", "error", err, "reference", p.Reference, "ticket_type_id", item.TicketTypeID)
				continue
			}
			tickets = append(tickets, *t)
		}
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("no ticket of %s could be saved: %w", p.Reference, status.ErrIssuanceFailed)
	}

	changed, err := tx.TransitionPurchase(ctx, p.ID, cur.Status, models.PurchaseCompleted, "", now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, errCompletedElsewhere
	}
	return tickets, nil
}

// issuable reports whether p may still receive tickets: pending, or expired
// by the reaper before a late payment landed.
func issuable(p *models.Purchase) bool {
	switch p.Status {
	case models.PurchasePending:
		return true
	case models.PurchaseFailed:
		return p.FailureReason == models.FailureExpired
	}
	return false
}

// saveTicket mints and stores one ticket, drawing a fresh number when the
// previous one was already taken.
func (s *IssuanceService) saveTicket(ctx context.Context, tx store.Store, p *models.Purchase, typeID string, now time.Time) (*models.Ticket, error) {
	var err error
	for attempt := 1; attempt <= ticketNumberAttempts; attempt++ {
		var t *models.Ticket
		t, err = s.newTicket(p, typeID, now)
		if err != nil {
			return nil, err
		}
		err = tx.CreateTicket(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, status.ErrConflict) {
			return nil, err
		}
		slog.Warn("Ticket number collision", "ticket_number", t.TicketNumber, "reference", p.Reference, "attempt", attempt)
	}
	return nil, err
}

func (s *IssuanceService) newTicket(p *models.Purchase, typeID string, now time.Time) (*models.Ticket, error) {
	number, err := utils.NewTicketNumber(p.ID, now)
	if err != nil {
		return nil, err
	}
	payload, err := s.signer.Sign(number, p.Reference, now)
	if err != nil {
		return nil, err
	}
	return &models.Ticket{
		TicketNumber: number,
		QRCode:       payload,
		PurchaseID:   p.ID,
		TicketTypeID: typeID,
		Status:       models.TicketValid,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// checkCapacity enforces sold + qty <= total for every line of p.
func checkCapacity(ctx context.Context, tx store.Store, p *models.Purchase) error {
	completed, err := tx.ListCompletedPurchases(ctx)
	if err != nil {
		return err
	}
	sold := SoldCounts(completed)

	for _, item := range p.Items {
		t, err := tx.GetTicketType(ctx, item.TicketTypeID)
		if errors.Is(err, status.ErrNotFound) {
			return fmt.Errorf("%s is no longer on sale: %w", item.Name, status.ErrInsufficientAvailability)
		}
		if err != nil {
			return err
		}
		if sold[t.ID]+item.Quantity > t.Total {
			return fmt.Errorf("%s: %d sold of %d, %d requested: %w", t.Name, sold[t.ID], t.Total, item.Quantity, status.ErrInsufficientAvailability)
		}
	}
	return nil
}

func issuedFrom(reference string, tickets []models.Ticket) *Issued {
	out := &Issued{Reference: reference, Tickets: make([]models.IssuedTicket, 0, len(tickets))}
	for _, t := range tickets {
		out.Tickets = append(out.Tickets, models.IssuedTicket{TicketNumber: t.TicketNumber, QRCode: t.QRCode})
	}
	return out
}
