package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-shop/internal/services"
)

type ScannerHandler struct {
	validator *services.ValidatorService
}

func NewScannerHandler(validator *services.ValidatorService) *ScannerHandler {
	return &ScannerHandler{validator: validator}
}

// Scan - admit the holder of a scanned code
func (h *ScannerHandler) Scan(e *core.RequestEvent) error {
	var req struct {
		Code string `json:"code"`
		Gate string `json:"gate"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	res, err := h.validator.Scan(e.Request.Context(), req.Code, req.Gate)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "admitted", "data": res})
}
