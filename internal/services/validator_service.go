package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-shop/internal/status"
	"ticket-shop/internal/store"
	"ticket-shop/models"
)

// ScanResult describes a granted admission.
type ScanResult struct {
	TicketNumber string              `json:"ticketNumber"`
	TicketType   string              `json:"ticketType"`
	Reference    string              `json:"reference"`
	Customer     models.CustomerInfo `json:"customer"`
	Gate         string              `json:"gate,omitempty"`
	ScannedAt    time.Time           `json:"scannedAt"`
	EntriesUsed  int                 `json:"usedTickets"`
	Remaining    int                 `json:"remaining"`
}

// TicketInfo is the public view of a ticket looked up by number.
type TicketInfo struct {
	TicketNumber string              `json:"ticketNumber"`
	Status       string              `json:"status"`
	UsedAt       *time.Time          `json:"usedAt,omitempty"`
	TicketType   string              `json:"ticketType"`
	Price        int64               `json:"price"`
	Reference    string              `json:"reference"`
	PurchasedAt  time.Time           `json:"purchaseDate"`
	Customer     models.CustomerInfo `json:"customerInfo"`
}

type ValidatorService struct {
	store    store.Store
	signer   *PayloadSigner
	notifier *Notifier
	metrics  Metrics
	now      func() time.Time
}

func NewValidatorService(st store.Store, signer *PayloadSigner, notifier *Notifier, metrics Metrics) *ValidatorService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ValidatorService{store: st, signer: signer, notifier: notifier, metrics: metrics, now: time.Now}
}

// Scan admits the holder of code at most once per ticket. code may be a
// ticket number, a signed ticket payload, or a legacy purchase code, which
// admits the next unused ticket of that purchase.
func (s *ValidatorService) Scan(ctx context.Context, code, gate string) (*ScanResult, error) {
	res, err := s.scan(ctx, strings.TrimSpace(code), strings.TrimSpace(gate))
	switch {
	case err == nil:
		s.metrics.TrackScan("admitted")
		s.notifier.TicketScanned(ctx, res)
	case errors.Is(err, status.ErrAlreadyUsed):
		s.metrics.TrackScan("already_used")
	case errors.Is(err, status.ErrInvalidCode):
		s.metrics.TrackScan("invalid")
	default:
		s.metrics.TrackScan("error")
	}
	return res, err
}

func (s *ValidatorService) scan(ctx context.Context, code, gate string) (*ScanResult, error) {
	if code == "" {
		return nil, fmt.Errorf("empty code: %w", status.ErrInvalidCode)
	}

	if strings.HasPrefix(code, LegacyQRPrefix) {
		return s.scanPurchase(ctx, code, gate)
	}

	number := code
	var reference string
	if strings.Count(code, ".") == 2 {
		var err error
		number, reference, err = s.signer.Parse(code)
		if err != nil {
			return nil, err
		}
	}

	ticket, err := s.store.GetTicketByNumber(ctx, number)
	if errors.Is(err, status.ErrNotFound) {
		return nil, fmt.Errorf("unknown ticket %s: %w", number, status.ErrInvalidCode)
	}
	if err != nil {
		return nil, err
	}
	purchase, err := s.completedPurchase(ctx, ticket.PurchaseID)
	if err != nil {
		return nil, err
	}
	if reference != "" && reference != purchase.Reference {
		return nil, fmt.Errorf("ticket %s does not belong to %s: %w", number, reference, status.ErrInvalidCode)
	}
	if ticket.Status == models.TicketUsed {
		return nil, alreadyUsed(ticket)
	}

	return s.admit(ctx, ticket, purchase, gate)
}

func (s *ValidatorService) scanPurchase(ctx context.Context, code, gate string) (*ScanResult, error) {
	purchase, err := s.store.GetPurchaseByQRCode(ctx, code)
	if errors.Is(err, status.ErrNotFound) {
		return nil, fmt.Errorf("unknown purchase code: %w", status.ErrInvalidCode)
	}
	if err != nil {
		return nil, err
	}
	if purchase.Status != models.PurchaseCompleted {
		return nil, fmt.Errorf("purchase %s is %s: %w", purchase.Reference, purchase.Status, status.ErrInvalidCode)
	}

	tickets, err := s.store.ListTicketsByPurchase(ctx, purchase.ID)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if tickets[i].Status != models.TicketValid {
			continue
		}
		res, err := s.admit(ctx, &tickets[i], purchase, gate)
		if errors.Is(err, status.ErrAlreadyUsed) {
			// Consumed by a concurrent scan; try the next one.
			continue
		}
		return res, err
	}
	return nil, fmt.Errorf("all %d tickets of %s are used: %w", len(tickets), purchase.Reference, status.ErrAlreadyUsed)
}

// admit consumes ticket and records the entry atomically.
func (s *ValidatorService) admit(ctx context.Context, ticket *models.Ticket, purchase *models.Purchase, gate string) (*ScanResult, error) {
	now := s.now()
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		ok, err := tx.ConsumeTicket(ctx, ticket.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return alreadyUsed(ticket)
		}
		if err := tx.AppendEntry(ctx, &models.Entry{
			TicketID:   ticket.ID,
			PurchaseID: purchase.ID,
			Gate:       gate,
			ScannedAt:  now,
		}); err != nil {
			return err
		}
		return tx.IncrementEntriesUsed(ctx, purchase.ID)
	})
	if err != nil {
		return nil, err
	}

	used := purchase.EntriesUsed + 1
	if p, err := s.store.GetPurchase(ctx, purchase.ID); err == nil {
		used = p.EntriesUsed
	}

	typeName := ""
	if t, err := s.store.GetTicketType(ctx, ticket.TicketTypeID); err == nil {
		typeName = t.Name
	} else {
		typeName = itemName(purchase, ticket.TicketTypeID)
	}

	slog.Info("Entry granted", "ticket_number", ticket.TicketNumber, "reference", purchase.Reference, "gate", gate)

	remaining := purchase.TicketCount() - used
	if remaining < 0 {
		remaining = 0
	}
	return &ScanResult{
		TicketNumber: ticket.TicketNumber,
		TicketType:   typeName,
		Reference:    purchase.Reference,
		Customer:     purchase.CustomerInfo,
		Gate:         gate,
		ScannedAt:    now,
		EntriesUsed:  used,
		Remaining:    remaining,
	}, nil
}

// Lookup returns public metadata for a ticket of a completed purchase.
func (s *ValidatorService) Lookup(ctx context.Context, ticketNumber string) (*TicketInfo, error) {
	ticket, err := s.store.GetTicketByNumber(ctx, strings.TrimSpace(ticketNumber))
	if err != nil {
		return nil, err
	}
	purchase, err := s.store.GetPurchase(ctx, ticket.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Status != models.PurchaseCompleted {
		return nil, fmt.Errorf("ticket %s: %w", ticketNumber, status.ErrNotFound)
	}

	info := &TicketInfo{
		TicketNumber: ticket.TicketNumber,
		Status:       ticket.Status,
		UsedAt:       ticket.UsedAt,
		TicketType:   itemName(purchase, ticket.TicketTypeID),
		Reference:    purchase.Reference,
		PurchasedAt:  purchase.CreatedAt,
		Customer:     purchase.CustomerInfo,
	}
	for _, item := range purchase.Items {
		if item.TicketTypeID == ticket.TicketTypeID {
			info.Price = item.Price
			break
		}
	}
	return info, nil
}

func (s *ValidatorService) completedPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	purchase, err := s.store.GetPurchase(ctx, id)
	if errors.Is(err, status.ErrNotFound) {
		return nil, fmt.Errorf("ticket without purchase: %w", status.ErrInvalidCode)
	}
	if err != nil {
		return nil, err
	}
	if purchase.Status != models.PurchaseCompleted {
		return nil, fmt.Errorf("purchase %s is %s: %w", purchase.Reference, purchase.Status, status.ErrInvalidCode)
	}
	return purchase, nil
}

func alreadyUsed(t *models.Ticket) error {
	if t.UsedAt != nil {
		return fmt.Errorf("ticket %s used at %s: %w", t.TicketNumber, t.UsedAt.Format(time.RFC3339), status.ErrAlreadyUsed)
	}
	return fmt.Errorf("ticket %s: %w", t.TicketNumber, status.ErrAlreadyUsed)
}

func itemName(p *models.Purchase, typeID string) string {
	for _, item := range p.Items {
		if item.TicketTypeID == typeID {
			return item.Name
		}
	}
	return ""
}
