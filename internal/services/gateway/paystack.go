package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ticket-shop/internal/status"
)

type Paystack struct {
	// baseURL is the Paystack API root.
	baseURL string

	// secretKey authenticates server-side calls.
	secretKey string

	// hc is the http client.
	hc *http.Client
}

func NewPaystack(cfg Config) (*Paystack, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("paystack secret key is required: %w", status.ErrPaymentUnavailable)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Paystack{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: cfg.SecretKey,
		hc: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (p *Paystack) Provider() Provider {
	return ProviderPaystack
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID              int64  `json:"id"`
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
		GatewayResponse string `json:"gateway_response"`
		PaidAt          string `json:"paid_at"`
	} `json:"data"`
}

// VerifyTransaction calls GET /transaction/verify/{reference}.
func (p *Paystack) VerifyTransaction(ctx context.Context, req VerifyRequest) (*Transaction, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", p.baseURL, url.PathEscape(req.Reference))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("paystack: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paystack: %v: %w", err, status.ErrPaymentUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("paystack: read body: %v: %w", err, status.ErrPaymentUnavailable)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("paystack: http %d: %w", resp.StatusCode, status.ErrPaymentUnavailable)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("paystack: secret key rejected: %w", status.ErrPaymentUnavailable)
	}

	var out paystackVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("paystack: decode response: %v: %w", err, status.ErrPaymentUnavailable)
	}

	tx := &Transaction{
		Provider:  ProviderPaystack,
		Reference: req.Reference,
		Message:   out.Message,
	}
	if resp.StatusCode == http.StatusNotFound || !out.Status {
		tx.Status = StatusNotFound
		return tx, nil
	}

	tx.TransactionID = fmt.Sprint(out.Data.ID)
	tx.Amount = out.Data.Amount
	tx.Currency = out.Data.Currency
	if out.Data.GatewayResponse != "" {
		tx.Message = out.Data.GatewayResponse
	}
	if out.Data.PaidAt != "" {
		tx.PaidAt, _ = time.Parse(time.RFC3339, out.Data.PaidAt)
	}
	switch out.Data.Status {
	case "success":
		tx.Status = StatusSuccess
	case "abandoned":
		tx.Status = StatusAbandoned
	case "ongoing", "pending", "processing", "queued":
		tx.Status = StatusPending
	default:
		tx.Status = StatusFailed
	}
	return tx, nil
}
