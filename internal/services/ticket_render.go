package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"ticket-shop/internal/status"
	"ticket-shop/internal/store"
	"ticket-shop/models"
	"ticket-shop/utils"
)

const (
	qrSize     = 300
	maxQRInput = 2048
)

// QRCodePNG encodes text as a PNG QR code with medium error correction.
func QRCodePNG(text string, size int) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("qr data is empty: %w", status.ErrInvalidInput)
	}
	if len(text) > maxQRInput {
		return nil, fmt.Errorf("qr data too long: %w", status.ErrInvalidInput)
	}
	if size <= 0 {
		size = qrSize
	}

	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR to PNG: %w", err)
	}
	return png, nil
}

// QRCodeDataURI renders text as a data:image/png;base64 URI.
func QRCodeDataURI(text string) (string, error) {
	png, err := QRCodePNG(text, qrSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// TicketDocument is everything printed on a ticket.
type TicketDocument struct {
	Event      models.EventDetails
	Ticket     models.Ticket
	TypeName   string
	Price      int64
	Currency   string
	Customer   models.CustomerInfo
	Reference  string
	TypeDate   string
	TypeTime   string
	TypeVenue  string
	QRCodeData string
}

// RenderTicketPDF lays out a single A4 ticket with its QR code on top.
func RenderTicketPDF(doc TicketDocument) ([]byte, error) {
	png, err := QRCodePNG(doc.QRCodeData, 600)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Event.EventName+" "+doc.Ticket.TicketNumber, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	imgName := "qr_" + doc.Ticket.TicketNumber
	pdf.RegisterImageOptionsReader(imgName, imgOpts, bytes.NewReader(png))
	pdf.ImageOptions(imgName, (210.0-90.0)/2, 20, 90, 90, false, imgOpts, 0, "")
	pdf.SetY(115)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, doc.Ticket.TicketNumber, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(8)

	eventName := doc.Event.EventName
	if eventName == "" {
		eventName = doc.TypeName
	}
	pdf.SetFont("Arial", "B", 20)
	pdf.MultiCell(0, 9, tr(eventName), "", "L", false)
	pdf.Ln(2)

	when := strings.TrimSpace(doc.TypeDate + " " + doc.TypeTime)
	if when == "" {
		when = doc.Event.EventDate
	}
	venue := doc.TypeVenue
	if venue == "" {
		venue = doc.Event.Venue
	}

	rows := [][2]string{
		{"Ticket", doc.TypeName},
		{"Price", utils.FormatMinor(doc.Price, doc.Currency)},
		{"When", when},
		{"Where", venue},
		{"Guest", doc.Customer.Name},
		{"Email", doc.Customer.Email},
		{"Reference", doc.Reference},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(35, 8, row[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(0, 8, tr(row[1]), "", "L", false)
	}

	if doc.Ticket.Status == models.TicketUsed {
		pdf.Ln(6)
		pdf.SetTextColor(200, 0, 0)
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, "USED", "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "Present this QR code at the entrance. Each ticket admits one person once.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// TicketPrinter assembles printable tickets from stored records.
type TicketPrinter struct {
	store    store.Store
	currency string
}

func NewTicketPrinter(st store.Store, currency string) *TicketPrinter {
	return &TicketPrinter{store: st, currency: currency}
}

// Document gathers what is printed on the ticket. Tickets of purchases that
// are not completed are reported as not found.
func (p *TicketPrinter) Document(ctx context.Context, ticketNumber string) (*TicketDocument, error) {
	ticket, err := p.store.GetTicketByNumber(ctx, strings.TrimSpace(ticketNumber))
	if err != nil {
		return nil, err
	}
	purchase, err := p.store.GetPurchase(ctx, ticket.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Status != models.PurchaseCompleted {
		return nil, fmt.Errorf("ticket %s: %w", ticketNumber, status.ErrNotFound)
	}

	doc := &TicketDocument{
		Ticket:     *ticket,
		TypeName:   itemName(purchase, ticket.TicketTypeID),
		Currency:   p.currency,
		Customer:   purchase.CustomerInfo,
		Reference:  purchase.Reference,
		QRCodeData: ticket.QRCode,
	}
	if doc.QRCodeData == "" {
		doc.QRCodeData = ticket.TicketNumber
	}
	for _, item := range purchase.Items {
		if item.TicketTypeID == ticket.TicketTypeID {
			doc.Price = item.Price
			break
		}
	}
	if t, err := p.store.GetTicketType(ctx, ticket.TicketTypeID); err == nil {
		doc.TypeDate, doc.TypeTime, doc.TypeVenue = t.Date, t.Time, t.Location
	}

	event, err := p.store.GetEventDetails(ctx)
	switch {
	case err == nil:
		doc.Event = *event
	case !errors.Is(err, status.ErrNotFound):
		return nil, err
	}
	return doc, nil
}

func (p *TicketPrinter) PDF(ctx context.Context, ticketNumber string) ([]byte, error) {
	doc, err := p.Document(ctx, ticketNumber)
	if err != nil {
		return nil, err
	}
	return RenderTicketPDF(*doc)
}
