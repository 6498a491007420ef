package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticket-shop/internal/status"
	"ticket-shop/models"
)

// Memory is an in-process Store. Transactions snapshot the data and restore
// it when fn fails.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	types     map[string]models.TicketType
	purchases map[string]models.Purchase
	tickets   []models.Ticket
	entries   []models.Entry
	event     *models.EventDetails
	settings  map[string]string

	// BeforeTicketInsert, when set, can reject individual ticket inserts.
	BeforeTicketInsert func(t *models.Ticket) error

	now func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		types:     make(map[string]models.TicketType),
		purchases: make(map[string]models.Purchase),
		settings:  make(map[string]string),
		now:       time.Now,
	}
}

func (m *Memory) ListTicketTypes(_ context.Context) ([]models.TicketType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.TicketType, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.types[id]
	if !ok {
		return nil, fmt.Errorf("ticket type %s: %w", id, status.ErrNotFound)
	}
	return &t, nil
}

func (m *Memory) CreateTicketType(_ context.Context, t *models.TicketType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := m.now()
	t.CreatedAt, t.UpdatedAt = now, now
	m.types[t.ID] = *t
	return nil
}

func (m *Memory) UpdateTicketType(_ context.Context, t *models.TicketType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.types[t.ID]
	if !ok {
		return fmt.Errorf("ticket type %s: %w", t.ID, status.ErrNotFound)
	}
	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = m.now()
	m.types[t.ID] = *t
	return nil
}

func (m *Memory) DeleteTicketType(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.types[id]; !ok {
		return fmt.Errorf("ticket type %s: %w", id, status.ErrNotFound)
	}
	delete(m.types, id)
	return nil
}

func (m *Memory) CreatePurchase(_ context.Context, p *models.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.purchases {
		if existing.Reference == p.Reference {
			return fmt.Errorf("purchase reference %s: %w", p.Reference, status.ErrConflict)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.purchases[p.ID] = clonePurchase(*p)
	return nil
}

func (m *Memory) GetPurchase(_ context.Context, id string) (*models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.purchases[id]
	if !ok {
		return nil, fmt.Errorf("purchase %s: %w", id, status.ErrNotFound)
	}
	p = clonePurchase(p)
	return &p, nil
}

func (m *Memory) GetPurchaseByReference(_ context.Context, reference string) (*models.Purchase, error) {
	return m.findPurchase(func(p models.Purchase) bool { return p.Reference == reference }, reference)
}

func (m *Memory) GetPurchaseByQRCode(_ context.Context, code string) (*models.Purchase, error) {
	return m.findPurchase(func(p models.Purchase) bool { return p.QRCode != "" && p.QRCode == code }, code)
}

func (m *Memory) findPurchase(match func(models.Purchase) bool, label string) (*models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.purchases {
		if match(p) {
			p = clonePurchase(p)
			return &p, nil
		}
	}
	return nil, fmt.Errorf("purchase %s: %w", label, status.ErrNotFound)
}

func (m *Memory) ListPurchases(_ context.Context, filter models.PurchaseFilter) ([]models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []models.Purchase{}
	for _, p := range m.purchases {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		out = append(out, clonePurchase(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesSearch(p models.Purchase, search string) bool {
	for _, field := range []string{p.Reference, p.CustomerInfo.Name, p.CustomerInfo.Email, p.CustomerInfo.Phone} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (m *Memory) ListCompletedPurchases(ctx context.Context) ([]models.Purchase, error) {
	return m.ListPurchases(ctx, models.PurchaseFilter{Status: models.PurchaseCompleted})
}

func (m *Memory) ListStalePending(_ context.Context, createdBefore time.Time) ([]models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Purchase{}
	for _, p := range m.purchases {
		if p.Status == models.PurchasePending && !p.PaymentVerified && p.CreatedAt.Before(createdBefore) {
			out = append(out, clonePurchase(p))
		}
	}
	return out, nil
}

func (m *Memory) TransitionPurchase(_ context.Context, id, from, to, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.purchases[id]
	if !ok {
		return false, fmt.Errorf("purchase %s: %w", id, status.ErrNotFound)
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.FailureReason = reason
	if to == models.PurchaseCompleted {
		completed := at
		p.CompletedAt = &completed
	}
	m.purchases[id] = p
	return true, nil
}

func (m *Memory) MarkPaymentVerified(_ context.Context, id, gateway, transaction string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.purchases[id]
	if !ok {
		return fmt.Errorf("purchase %s: %w", id, status.ErrNotFound)
	}
	p.PaymentVerified = true
	p.Gateway = gateway
	p.GatewayTransaction = transaction
	m.purchases[id] = p
	return nil
}

func (m *Memory) IncrementEntriesUsed(_ context.Context, purchaseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.purchases[purchaseID]
	if !ok {
		return fmt.Errorf("purchase %s: %w", purchaseID, status.ErrNotFound)
	}
	p.EntriesUsed++
	m.purchases[purchaseID] = p
	return nil
}

func (m *Memory) CreateTicket(_ context.Context, t *models.Ticket) error {
	if m.BeforeTicketInsert != nil {
		if err := m.BeforeTicketInsert(t); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.tickets {
		if existing.TicketNumber == t.TicketNumber {
			return fmt.Errorf("ticket number %s: %w", t.TicketNumber, status.ErrConflict)
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := m.now()
	t.CreatedAt, t.UpdatedAt = now, now
	m.tickets = append(m.tickets, *t)
	return nil
}

func (m *Memory) GetTicketByNumber(_ context.Context, number string) (*models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tickets {
		if t.TicketNumber == number {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("ticket %s: %w", number, status.ErrNotFound)
}

func (m *Memory) ListTicketsByPurchase(_ context.Context, purchaseID string) ([]models.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Ticket{}
	for _, t := range m.tickets {
		if t.PurchaseID == purchaseID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) ConsumeTicket(_ context.Context, ticketID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.tickets {
		t := &m.tickets[i]
		if t.ID != ticketID {
			continue
		}
		if t.Status != models.TicketValid {
			return false, nil
		}
		used := at
		t.Status = models.TicketUsed
		t.UsedAt = &used
		t.UpdatedAt = at
		return true, nil
	}
	return false, fmt.Errorf("ticket %s: %w", ticketID, status.ErrNotFound)
}

func (m *Memory) AppendEntry(_ context.Context, e *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *Memory) ListEntriesByPurchase(_ context.Context, purchaseID string) ([]models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Entry{}
	for _, e := range m.entries {
		if e.PurchaseID == purchaseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) CountEntries(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries), nil
}

func (m *Memory) GetEventDetails(_ context.Context) (*models.EventDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.event == nil {
		return nil, fmt.Errorf("event details: %w", status.ErrNotFound)
	}
	d := *m.event
	return &d, nil
}

func (m *Memory) SaveEventDetails(_ context.Context, d *models.EventDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.UpdatedAt = m.now()
	saved := *d
	m.event = &saved
	return nil
}

func (m *Memory) GetSettings(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.settings[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

func (m *Memory) RunInTransaction(_ context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	types     map[string]models.TicketType
	purchases map[string]models.Purchase
	tickets   []models.Ticket
	entries   []models.Entry
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memorySnapshot{
		types:     make(map[string]models.TicketType, len(m.types)),
		purchases: make(map[string]models.Purchase, len(m.purchases)),
		tickets:   append([]models.Ticket(nil), m.tickets...),
		entries:   append([]models.Entry(nil), m.entries...),
	}
	for k, v := range m.types {
		s.types[k] = v
	}
	for k, v := range m.purchases {
		s.purchases[k] = clonePurchase(v)
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.types = s.types
	m.purchases = s.purchases
	m.tickets = s.tickets
	m.entries = s.entries
}

func clonePurchase(p models.Purchase) models.Purchase {
	p.Items = append([]models.CartItem(nil), p.Items...)
	return p
}
