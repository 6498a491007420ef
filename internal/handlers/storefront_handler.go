package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-shop/internal/services"
)

type StorefrontHandler struct {
	inventory *services.InventoryService
	admin     *services.AdminService
	validator *services.ValidatorService
	printer   *services.TicketPrinter
}

func NewStorefrontHandler(inventory *services.InventoryService, admin *services.AdminService, validator *services.ValidatorService, printer *services.TicketPrinter) *StorefrontHandler {
	return &StorefrontHandler{
		inventory: inventory,
		admin:     admin,
		validator: validator,
		printer:   printer,
	}
}

// ListTicketTypes - storefront catalogue with live availability
func (h *StorefrontHandler) ListTicketTypes(e *core.RequestEvent) error {
	types, err := h.inventory.ListTypes(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ticketTypes": types})
}

// GetEvent - public event details
func (h *StorefrontHandler) GetEvent(e *core.RequestEvent) error {
	details, err := h.admin.GetEventDetails(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, details)
}

// GenerateQR - render arbitrary data as a QR code
func (h *StorefrontHandler) GenerateQR(e *core.RequestEvent) error {
	var req struct {
		Data json.RawMessage `json:"data"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	// Strings are encoded as is, anything else as its JSON text.
	text := strings.TrimSpace(string(req.Data))
	var s string
	if err := json.Unmarshal(req.Data, &s); err == nil {
		text = s
	}

	if e.Request.URL.Query().Get("format") == "png" {
		png, err := services.QRCodePNG(text, 0)
		if err != nil {
			return respondError(e, err)
		}
		return e.Blob(http.StatusOK, "image/png", png)
	}

	uri, err := services.QRCodeDataURI(text)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"qrCode": uri})
}

// GetTicket - verification by ticket number
func (h *StorefrontHandler) GetTicket(e *core.RequestEvent) error {
	info, err := h.validator.Lookup(e.Request.Context(), e.Request.PathValue("ticketNumber"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, info)
}

// GetTicketPDF - printable ticket
func (h *StorefrontHandler) GetTicketPDF(e *core.RequestEvent) error {
	number := e.Request.PathValue("ticketNumber")
	pdf, err := h.printer.PDF(e.Request.Context(), number)
	if err != nil {
		return respondError(e, err)
	}
	e.Response.Header().Set("Content-Disposition", `inline; filename="`+number+`.pdf"`)
	return e.Blob(http.StatusOK, "application/pdf", pdf)
}
