package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-shop/internal/services"
	"ticket-shop/models"
)

type AdminHandler struct {
	inventory *services.InventoryService
	admin     *services.AdminService
}

func NewAdminHandler(inventory *services.InventoryService, admin *services.AdminService) *AdminHandler {
	return &AdminHandler{
		inventory: inventory,
		admin:     admin,
	}
}

func (h *AdminHandler) ListTicketTypes(e *core.RequestEvent) error {
	types, err := h.inventory.ListTypes(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"ticketTypes": types})
}

func (h *AdminHandler) CreateTicketType(e *core.RequestEvent) error {
	var spec models.TicketTypeSpec
	if err := e.BindBody(&spec); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	t, err := h.inventory.CreateType(e.Request.Context(), spec)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, t)
}

func (h *AdminHandler) UpdateTicketType(e *core.RequestEvent) error {
	var spec models.TicketTypeSpec
	if err := e.BindBody(&spec); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	t, err := h.inventory.UpdateType(e.Request.Context(), e.Request.PathValue("id"), spec)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, t)
}

func (h *AdminHandler) DeleteTicketType(e *core.RequestEvent) error {
	if err := h.inventory.DeleteType(e.Request.Context(), e.Request.PathValue("id")); err != nil {
		return respondError(e, err)
	}
	return e.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) GetEvent(e *core.RequestEvent) error {
	d, err := h.admin.GetEventDetails(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, d)
}

func (h *AdminHandler) SaveEvent(e *core.RequestEvent) error {
	var d models.EventDetails
	if err := e.BindBody(&d); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	saved, err := h.admin.SaveEventDetails(e.Request.Context(), d)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, saved)
}

func (h *AdminHandler) GetGateway(e *core.RequestEvent) error {
	s, err := h.admin.GetGatewaySettings(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, s)
}

func (h *AdminHandler) SaveGateway(e *core.RequestEvent) error {
	var in models.GatewaySettings
	if err := e.BindBody(&in); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	s, err := h.admin.SaveGatewaySettings(e.Request.Context(), in)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, s)
}

// Summary - sales and attendance dashboard
func (h *AdminHandler) Summary(e *core.RequestEvent) error {
	sum, err := h.admin.Summary(e.Request.Context())
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, sum)
}

// Transactions - ?status=pending|completed|failed&search=...&limit=50
func (h *AdminHandler) Transactions(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	filter := models.PurchaseFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return apis.NewBadRequestError("Invalid limit", err)
		}
		filter.Limit = limit
	}

	purchases, err := h.admin.Transactions(e.Request.Context(), filter)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"transactions": purchases, "count": len(purchases)})
}

func (h *AdminHandler) TransactionDetail(e *core.RequestEvent) error {
	detail, err := h.admin.PurchaseDetail(e.Request.Context(), e.Request.PathValue("reference"))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, detail)
}
