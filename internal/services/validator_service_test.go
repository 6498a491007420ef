package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-shop/internal/status"
	"ticket-shop/models"
)

func TestScan_TicketNumberAdmitsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ga := env.addType(t, "GA", 5000, 10)
	issued := env.buyAndIssue(t, line(ga.ID, 2))
	number := issued.Tickets[0].TicketNumber

	res, err := env.validator.Scan(ctx, number, "north")
	require.NoError(t, err)
	assert.Equal(t, number, res.TicketNumber)
	assert.Equal(t, "GA", res.TicketType)
	assert.Equal(t, issued.Reference, res.Reference)
	assert.Equal(t, testCustomer, res.Customer)
	assert.Equal(t, 1, res.EntriesUsed)
	assert.Equal(t, 1, res.Remaining)

	_, err = env.validator.Scan(ctx, number, "north")
	assert.ErrorIs(t, err, status.ErrAlreadyUsed)

	p, _ := env.store.GetPurchaseByReference(ctx, issued.Reference)
	assert.Equal(t, 1, p.EntriesUsed)
	entries, _ := env.store.ListEntriesByPurchase(ctx, p.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "north", entries[0].Gate)
	assert.Equal(t, []string{"admitted", "already_used"}, env.metrics.scans)
}

func TestScan_SignedPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ga := env.addType(t, "GA", 5000, 10)
	issued := env.buyAndIssue(t, line(ga.ID, 1))

	res, err := env.validator.Scan(ctx, issued.Tickets[0].QRCode, "")

	require.NoError(t, err)
	assert.Equal(t, issued.Tickets[0].TicketNumber, res.TicketNumber)
	assert.Equal(t, 0, res.Remaining)
}

func TestScan_ForgedPayloadIsInvalid(t *testing.T) {
	env := newTestEnv(t)
	ga := env.addType(t, "GA", 5000, 10)
	issued := env.buyAndIssue(t, line(ga.ID, 1))

	forged, err := NewPayloadSigner("other-key").Sign(issued.Tickets[0].TicketNumber, issued.Reference, fixedNow)
	require.NoError(t, err)
	_, err = env.validator.Scan(context.Background(), forged, "")
	assert.ErrorIs(t, err, status.ErrInvalidCode)

	mismatched, err := env.signer.Sign(issued.Tickets[0].TicketNumber, "TS-other", fixedNow)
	require.NoError(t, err)
	_, err = env.validator.Scan(context.Background(), mismatched, "")
	assert.ErrorIs(t, err, status.ErrInvalidCode)
}

func TestScan_UnknownCodes(t *testing.T) {
	env := newTestEnv(t)

	for _, code := range []string{"", "   ", "TKT-NOPE", "TICKET_TS-missing", "a.b.c"} {
		_, err := env.validator.Scan(context.Background(), code, "")
		assert.ErrorIs(t, err, status.ErrInvalidCode, code)
	}
}

func TestScan_PendingPurchaseIsInvalid(t *testing.T) {
	env := newTestEnv(t)
	ga := env.addType(t, "GA", 5000, 10)
	session := env.buy(t, line(ga.ID, 1))

	_, err := env.validator.Scan(context.Background(), "TICKET_"+session.Reference, "")

	assert.ErrorIs(t, err, status.ErrInvalidCode)
}

func TestScan_LegacyCodeConsumesTicketsInOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ga := env.addType(t, "GA", 5000, 10)
	issued := env.buyAndIssue(t, line(ga.ID, 2))
	code := "TICKET_" + issued.Reference

	first, err := env.validator.Scan(ctx, code, "")
	require.NoError(t, err)
	assert.Equal(t, issued.Tickets[0].TicketNumber, first.TicketNumber)
	assert.Equal(t, 1, first.Remaining)

	second, err := env.validator.Scan(ctx, code, "")
	require.NoError(t, err)
	assert.Equal(t, issued.Tickets[1].TicketNumber, second.TicketNumber)
	assert.Equal(t, 0, second.Remaining)

	_, err = env.validator.Scan(ctx, code, "")
	assert.ErrorIs(t, err, status.ErrAlreadyUsed)
}

func TestScan_ConcurrentScansAdmitExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ga := env.addType(t, "GA", 5000, 10)
	issued := env.buyAndIssue(t, line(ga.ID, 1))
	number := issued.Tickets[0].TicketNumber

	var admitted, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.validator.Scan(ctx, number, "")
			switch {
			case err == nil:
				admitted.Add(1)
			case assert.ErrorIs(t, err, status.ErrAlreadyUsed):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.Equal(t, int32(9), rejected.Load())
	n, _ := env.store.CountEntries(ctx)
	assert.Equal(t, 1, n)
}

func TestLookup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ga := env.addType(t, "GA", 5000, 10)
	issued := env.buyAndIssue(t, line(ga.ID, 1))
	number := issued.Tickets[0].TicketNumber

	info, err := env.validator.Lookup(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, models.TicketValid, info.Status)
	assert.Equal(t, "GA", info.TicketType)
	assert.Equal(t, int64(5000), info.Price)
	assert.Equal(t, issued.Reference, info.Reference)
	assert.Equal(t, testCustomer, info.Customer)

	_, err = env.validator.Scan(ctx, number, "")
	require.NoError(t, err)
	info, err = env.validator.Lookup(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, models.TicketUsed, info.Status)
	assert.NotNil(t, info.UsedAt)

	_, err = env.validator.Lookup(ctx, "TKT-NOPE")
	assert.ErrorIs(t, err, status.ErrNotFound)
}
