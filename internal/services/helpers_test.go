package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ticket-shop/internal/services/gateway"
	"ticket-shop/internal/store"
	"ticket-shop/models"
)

// memHolds is an in-process SeatHolds.
type memHolds struct {
	mu    sync.Mutex
	holds map[string]map[string]int // type -> reference -> qty
}

func newMemHolds() *memHolds {
	return &memHolds{holds: make(map[string]map[string]int)}
}

func (h *memHolds) Place(_ context.Context, reference string, items []models.CartItem) (time.Time, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, item := range items {
		if h.holds[item.TicketTypeID] == nil {
			h.holds[item.TicketTypeID] = make(map[string]int)
		}
		h.holds[item.TicketTypeID][reference] = item.Quantity
	}
	return time.Now().Add(15 * time.Minute), nil
}

func (h *memHolds) Release(_ context.Context, reference string, items []models.CartItem) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, item := range items {
		delete(h.holds[item.TicketTypeID], reference)
	}
	return nil
}

func (h *memHolds) HeldAll(_ context.Context, typeIDs []string) (map[string]int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]int, len(typeIDs))
	for _, id := range typeIDs {
		for _, qty := range h.holds[id] {
			out[id] += qty
		}
	}
	return out, nil
}

type recordingMetrics struct {
	mu        sync.Mutex
	checkouts []string
	issued    int
	scans     []string
}

func (m *recordingMetrics) TrackCheckout(op, st string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkouts = append(m.checkouts, op+":"+st)
}

func (m *recordingMetrics) TrackIssued(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued += n
}

func (m *recordingMetrics) TrackScan(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, result)
}

type testEnv struct {
	store     *store.Memory
	holds     *memHolds
	gateway   *gateway.Mock
	metrics   *recordingMetrics
	inventory *InventoryService
	checkout  *CheckoutService
	issuance  *IssuanceService
	validator *ValidatorService
	admin     *AdminService
	signer    *PayloadSigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemory()
	holds := newMemHolds()
	mock := gateway.NewMock()
	registry := gateway.NewRegistry(gateway.NewFactory(), nil)
	registry.Register(mock)
	metrics := &recordingMetrics{}
	signer := NewPayloadSigner("test-signing-key")
	notifier := NewNotifier(nil)

	payments := NewPaymentConfig(st, PaymentDefaults{Provider: string(gateway.ProviderMock), Currency: "NGN"})
	inventory := NewInventoryService(st, holds, notifier)

	return &testEnv{
		store:     st,
		holds:     holds,
		gateway:   mock,
		metrics:   metrics,
		inventory: inventory,
		checkout:  NewCheckoutService(st, inventory, holds, payments, registry, CheckoutOptions{ReferencePrefix: "TS", Metrics: metrics}),
		issuance:  NewIssuanceService(st, payments, registry, holds, signer, notifier, metrics),
		validator: NewValidatorService(st, signer, notifier, metrics),
		admin:     NewAdminService(st, inventory, payments),
		signer:    signer,
	}
}

func (e *testEnv) addType(t *testing.T, name string, price int64, total int) *models.TicketType {
	t.Helper()
	tt, err := e.inventory.CreateType(context.Background(), models.TicketTypeSpec{
		Name:        name,
		Price:       price,
		Description: name + " admission",
		Total:       total,
	})
	require.NoError(t, err)
	return tt
}

var fixedNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

var testCustomer = models.CustomerInfo{Name: "Ada Obi", Email: "ada@example.com", Phone: "+2348000000000"}

func (e *testEnv) buy(t *testing.T, lines ...models.CartLine) *CheckoutSession {
	t.Helper()
	session, err := e.checkout.Initiate(context.Background(), CheckoutRequest{Customer: testCustomer, Lines: lines})
	require.NoError(t, err)
	return session
}

func (e *testEnv) buyAndIssue(t *testing.T, lines ...models.CartLine) *Issued {
	t.Helper()
	session := e.buy(t, lines...)
	issued, err := e.issuance.Issue(context.Background(), session.Reference, "")
	require.NoError(t, err)
	return issued
}

func line(typeID string, qty int) models.CartLine {
	return models.CartLine{TicketTypeID: typeID, Quantity: qty}
}
