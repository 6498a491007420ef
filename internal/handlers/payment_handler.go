package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-shop/internal/services"
	"ticket-shop/utils"
)

type PaymentHandler struct {
	checkout   *services.CheckoutService
	issuance   *services.IssuanceService
	secretHash []byte
}

// NewPaymentHandler takes the bcrypt hash of the shared verification secret.
func NewPaymentHandler(checkout *services.CheckoutService, issuance *services.IssuanceService, secretHash string) *PaymentHandler {
	return &PaymentHandler{
		checkout:   checkout,
		issuance:   issuance,
		secretHash: []byte(secretHash),
	}
}

// InitiateCheckout - create a pending purchase and return the widget session
func (h *PaymentHandler) InitiateCheckout(e *core.RequestEvent) error {
	var req services.CheckoutRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	session, err := h.checkout.Initiate(e.Request.Context(), req)
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusCreated, session)
}

// CancelCheckout - the buyer closed the payment widget
func (h *PaymentHandler) CancelCheckout(e *core.RequestEvent) error {
	reference := e.Request.PathValue("reference")
	if err := h.checkout.Cancel(e.Request.Context(), reference); err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "cancelled", "reference": reference})
}

type verifyRequest struct {
	Reference          string `json:"reference"`
	Transaction        string `json:"transaction"`
	VerificationSecret string `json:"verificationSecret"`
}

// VerifyPayment - confirm the payment with the gateway and issue tickets
func (h *PaymentHandler) VerifyPayment(e *core.RequestEvent) error {
	var req verifyRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if len(h.secretHash) == 0 || !utils.CompareHash(h.secretHash, []byte(req.VerificationSecret)) {
		slog.Warn("Verification rejected: bad secret", "reference", req.Reference, "ip", e.RealIP())
		return e.JSON(http.StatusForbidden, map[string]any{"error": "Invalid verification secret"})
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "Reference is required"})
	}

	issued, err := h.issuance.Issue(e.Request.Context(), reference, strings.TrimSpace(req.Transaction))
	if err != nil {
		return respondError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   issued,
	})
}
