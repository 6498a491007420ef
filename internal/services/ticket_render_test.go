package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-shop/internal/status"
	"ticket-shop/models"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestQRCodeDataURI(t *testing.T) {
	uri, err := QRCodeDataURI(`{"ticketNumber":"TKT-1"}`)
	require.NoError(t, err)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(uri, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, pngMagic))
}

func TestQRCodePNG_RejectsEmptyAndOversized(t *testing.T) {
	_, err := QRCodePNG("  ", 0)
	assert.ErrorIs(t, err, status.ErrInvalidInput)

	_, err = QRCodePNG(strings.Repeat("x", maxQRInput+1), 0)
	assert.ErrorIs(t, err, status.ErrInvalidInput)
}

func TestRenderTicketPDF(t *testing.T) {
	pdf, err := RenderTicketPDF(TicketDocument{
		Event:      models.EventDetails{EventName: "Lagos Jazz Night", EventDate: "2025-12-20", Venue: "Eko Hotel"},
		Ticket:     models.Ticket{TicketNumber: "TKT-ABC123-LX1-9F00AA", Status: models.TicketValid},
		TypeName:   "VIP",
		Price:      2500000,
		Currency:   "NGN",
		Customer:   testCustomer,
		Reference:  "TS-1",
		QRCodeData: "TKT-ABC123-LX1-9F00AA",
	})

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestTicketPrinter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ga := env.addType(t, "GA", 5000, 10)
	issued := env.buyAndIssue(t, line(ga.ID, 1))
	_, err := env.admin.SaveEventDetails(ctx, models.EventDetails{EventName: "Lagos Jazz Night", Venue: "Eko Hotel"})
	require.NoError(t, err)
	printer := NewTicketPrinter(env.store, "NGN")

	doc, err := printer.Document(ctx, issued.Tickets[0].TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, "GA", doc.TypeName)
	assert.Equal(t, int64(5000), doc.Price)
	assert.Equal(t, "Lagos Jazz Night", doc.Event.EventName)
	assert.Equal(t, issued.Tickets[0].QRCode, doc.QRCodeData)

	pdf, err := printer.PDF(ctx, issued.Tickets[0].TicketNumber)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = printer.PDF(ctx, "TKT-NOPE")
	assert.ErrorIs(t, err, status.ErrNotFound)
}
