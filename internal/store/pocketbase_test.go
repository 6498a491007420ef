package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-shop/internal/status"
	_ "ticket-shop/migrations"
	"ticket-shop/models"
)

func newTestPocketBase(t *testing.T) *PocketBase {
	t.Helper()

	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	return NewPocketBase(app)
}

func createTestPurchase(t *testing.T, s *PocketBase, reference, email string) *models.Purchase {
	t.Helper()

	p := &models.Purchase{
		Reference:    reference,
		CustomerInfo: models.CustomerInfo{Name: "Ada Obi", Email: email},
		Items:        []models.CartItem{{TicketTypeID: "type1", Name: "GA", Price: 5000, Quantity: 1}},
		TotalAmount:  5000,
		Status:       models.PurchasePending,
	}
	require.NoError(t, s.CreatePurchase(context.Background(), p))
	return p
}

func TestPocketBase_ConsumeTicketHasOneWinner(t *testing.T) {
	s := newTestPocketBase(t)
	ctx := context.Background()
	p := createTestPurchase(t, s, "TS-PB-1", "ada@example.com")
	tk := &models.Ticket{TicketNumber: "TKT-PB-1", PurchaseID: p.ID, TicketTypeID: "type1", Status: models.TicketValid}
	require.NoError(t, s.CreateTicket(ctx, tk))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConsumeTicket(ctx, tk.ID, time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				wins++
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, wins)

	got, err := s.GetTicketByNumber(ctx, "TKT-PB-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketUsed, got.Status)
	assert.NotNil(t, got.UsedAt)
}

func TestPocketBase_TicketNumberIsUnique(t *testing.T) {
	s := newTestPocketBase(t)
	ctx := context.Background()
	p := createTestPurchase(t, s, "TS-PB-2", "ada@example.com")

	require.NoError(t, s.CreateTicket(ctx, &models.Ticket{TicketNumber: "TKT-PB-9", PurchaseID: p.ID, TicketTypeID: "type1", Status: models.TicketValid}))
	err := s.CreateTicket(ctx, &models.Ticket{TicketNumber: "TKT-PB-9", PurchaseID: p.ID, TicketTypeID: "type1", Status: models.TicketValid})

	assert.ErrorIs(t, err, status.ErrConflict)

	tickets, err := s.ListTicketsByPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestPocketBase_TransitionPurchaseIsConditional(t *testing.T) {
	s := newTestPocketBase(t)
	ctx := context.Background()
	p := createTestPurchase(t, s, "TS-PB-3", "ada@example.com")

	changed, err := s.TransitionPurchase(ctx, p.ID, models.PurchaseFailed, models.PurchaseCompleted, "", time.Now())
	require.NoError(t, err)
	assert.False(t, changed, "purchase is pending, not failed")

	changed, err = s.TransitionPurchase(ctx, p.ID, models.PurchasePending, models.PurchaseFailed, models.FailureExpired, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseFailed, got.Status)
	assert.Equal(t, models.FailureExpired, got.FailureReason)
	assert.Nil(t, got.CompletedAt)

	changed, err = s.TransitionPurchase(ctx, p.ID, models.PurchaseFailed, models.PurchaseCompleted, "", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	got, err = s.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCompleted, got.Status)
	assert.Empty(t, got.FailureReason)
	assert.NotNil(t, got.CompletedAt)

	_, err = s.TransitionPurchase(ctx, "missing", models.PurchasePending, models.PurchaseFailed, "", time.Now())
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestPocketBase_ListPurchasesSearch(t *testing.T) {
	s := newTestPocketBase(t)
	ctx := context.Background()
	createTestPurchase(t, s, "TS-PB-ADA", "ada@example.com")
	createTestPurchase(t, s, "TS-PB-BEN", "ben@example.org")

	cases := []struct {
		name   string
		filter models.PurchaseFilter
		want   []string
	}{
		{"by email", models.PurchaseFilter{Search: "ben@example.org"}, []string{"TS-PB-BEN"}},
		{"by reference", models.PurchaseFilter{Search: "PB-ADA"}, []string{"TS-PB-ADA"}},
		{"by status", models.PurchaseFilter{Status: models.PurchaseCompleted}, nil},
		{"everything", models.PurchaseFilter{}, []string{"TS-PB-ADA", "TS-PB-BEN"}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListPurchases(ctx, tt.filter)
			require.NoError(t, err)

			var refs []string
			for _, p := range got {
				refs = append(refs, p.Reference)
			}
			assert.ElementsMatch(t, tt.want, refs)
		})
	}
}

func TestPocketBase_PurchaseReferenceIsUnique(t *testing.T) {
	s := newTestPocketBase(t)
	createTestPurchase(t, s, "TS-PB-4", "ada@example.com")

	err := s.CreatePurchase(context.Background(), &models.Purchase{Reference: "TS-PB-4", Status: models.PurchasePending})

	assert.ErrorIs(t, err, status.ErrConflict)
}
