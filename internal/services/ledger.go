package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"ticket-shop/internal/status"
	"ticket-shop/internal/store"
	"ticket-shop/models"
	"ticket-shop/utils"
)

// SoldCounts sums quantities of completed purchases per ticket type.
func SoldCounts(purchases []models.Purchase) map[string]int {
	sold := make(map[string]int)
	for _, p := range purchases {
		if p.Status != models.PurchaseCompleted {
			continue
		}
		for _, item := range p.Items {
			sold[item.TicketTypeID] += item.Quantity
		}
	}
	return sold
}

// Availability computes total - sold - held per type, clamped to [0, total].
// held may be nil.
func Availability(types []models.TicketType, purchases []models.Purchase, held map[string]int) map[string]int {
	sold := SoldCounts(purchases)
	out := make(map[string]int, len(types))
	for _, t := range types {
		out[t.ID] = clamp(t.Total-sold[t.ID]-held[t.ID], 0, t.Total)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// InventoryService owns ticket types and their derived availability.
type InventoryService struct {
	store    store.Store
	holds    SeatHolds
	notifier *Notifier
}

func NewInventoryService(st store.Store, holds SeatHolds, notifier *Notifier) *InventoryService {
	if holds == nil {
		holds = NopHolds{}
	}
	return &InventoryService{store: st, holds: holds, notifier: notifier}
}

// ListTypes returns every type with sold, held and available recomputed.
func (s *InventoryService) ListTypes(ctx context.Context) ([]models.TicketType, error) {
	types, err := s.store.ListTicketTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	completed, err := s.store.ListCompletedPurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list completed purchases: %w", err)
	}

	ids := make([]string, 0, len(types))
	for _, t := range types {
		ids = append(ids, t.ID)
	}
	held, err := s.holds.HeldAll(ctx, ids)
	if err != nil {
		slog.Warn("Seat holds unavailable, ignoring them", "error", err)
		held = nil
	}

	sold := SoldCounts(completed)
	available := Availability(types, completed, held)
	for i := range types {
		types[i].Sold = sold[types[i].ID]
		types[i].Held = held[types[i].ID]
		types[i].Available = available[types[i].ID]
	}
	return types, nil
}

// ValidateLines checks a submitted cart against live availability and
// returns the priced snapshot. Duplicate lines for a type are merged.
func (s *InventoryService) ValidateLines(ctx context.Context, lines []models.CartLine) ([]models.CartItem, int64, error) {
	if len(lines) == 0 {
		return nil, 0, fmt.Errorf("cart is empty: %w", status.ErrInvalidInput)
	}

	types, err := s.ListTypes(ctx)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]models.TicketType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}

	var (
		items []models.CartItem
		index = make(map[string]int)
		total int64
	)
	for _, line := range lines {
		t, ok := byID[line.TicketTypeID]
		if !ok {
			return nil, 0, fmt.Errorf("ticket type %s: %w", line.TicketTypeID, status.ErrNotFound)
		}
		if line.Quantity <= 0 {
			return nil, 0, fmt.Errorf("quantity for %s must be positive: %w", t.Name, status.ErrInvalidInput)
		}
		if i, ok := index[t.ID]; ok {
			items[i].Quantity += line.Quantity
		} else {
			index[t.ID] = len(items)
			items = append(items, models.CartItem{TicketTypeID: t.ID, Name: t.Name, Price: t.Price, Quantity: line.Quantity})
		}
	}

	for _, item := range items {
		if item.Quantity > byID[item.TicketTypeID].Available {
			return nil, 0, fmt.Errorf("only %d %s left: %w", byID[item.TicketTypeID].Available, item.Name, status.ErrInsufficientAvailability)
		}
		total += item.Price * int64(item.Quantity)
	}
	return items, total, nil
}

func (s *InventoryService) CreateType(ctx context.Context, spec models.TicketTypeSpec) (*models.TicketType, error) {
	t := &models.TicketType{}
	if err := applySpec(t, spec); err != nil {
		return nil, err
	}
	if err := s.store.CreateTicketType(ctx, t); err != nil {
		return nil, fmt.Errorf("create ticket type: %w", err)
	}
	t.Available = t.Total
	s.notifier.InventoryUpdated(ctx, t.ID)
	return t, nil
}

// UpdateType rewrites a type's definition. Sales are never touched, so
// lowering total below sold leaves zero available.
func (s *InventoryService) UpdateType(ctx context.Context, id string, spec models.TicketTypeSpec) (*models.TicketType, error) {
	t, err := s.store.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applySpec(t, spec); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTicketType(ctx, t); err != nil {
		return nil, fmt.Errorf("update ticket type: %w", err)
	}

	completed, err := s.store.ListCompletedPurchases(ctx)
	if err != nil {
		return nil, err
	}
	t.Sold = SoldCounts(completed)[t.ID]
	t.Available = clamp(t.Total-t.Sold, 0, t.Total)

	s.notifier.InventoryUpdated(ctx, t.ID)
	return t, nil
}

func (s *InventoryService) DeleteType(ctx context.Context, id string) error {
	if _, err := s.store.GetTicketType(ctx, id); err != nil {
		return err
	}
	completed, err := s.store.ListCompletedPurchases(ctx)
	if err != nil {
		return err
	}
	if n := SoldCounts(completed)[id]; n > 0 {
		return fmt.Errorf("ticket type has %d sold tickets: %w", n, status.ErrConflict)
	}
	if err := s.store.DeleteTicketType(ctx, id); err != nil {
		return fmt.Errorf("delete ticket type: %w", err)
	}
	s.notifier.InventoryUpdated(ctx, id)
	return nil
}

func applySpec(t *models.TicketType, spec models.TicketTypeSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	spec.Description = strings.TrimSpace(spec.Description)
	if spec.PriceMajor != "" {
		minor, err := utils.ToMinorUnits(spec.PriceMajor)
		if err != nil {
			return fmt.Errorf("price %q: %w", spec.PriceMajor, status.ErrInvalidInput)
		}
		spec.Price = minor
	}

	err := validation.ValidateStruct(&spec,
		validation.Field(&spec.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&spec.Description, validation.Required),
		validation.Field(&spec.Price, validation.Required, validation.Min(int64(1))),
		validation.Field(&spec.Total, validation.Required, validation.Min(1)),
		validation.Field(&spec.Location, validation.Length(0, 255)),
	)
	if err != nil {
		return invalid("ticket type", err)
	}

	t.Name = spec.Name
	t.Price = spec.Price
	t.Description = spec.Description
	t.Date = spec.Date
	t.Time = spec.Time
	t.Location = spec.Location
	t.Total = spec.Total
	return nil
}
