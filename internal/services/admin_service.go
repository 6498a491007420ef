package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"ticket-shop/internal/services/gateway"
	"ticket-shop/internal/status"
	"ticket-shop/internal/store"
	"ticket-shop/models"
	"ticket-shop/utils"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

type TypeSummary struct {
	TicketTypeID string `json:"ticketTypeId"`
	Name         string `json:"name"`
	Total        int    `json:"total"`
	Sold         int    `json:"sold"`
	Available    int    `json:"available"`
	Revenue      int64  `json:"revenue"`
	RevenueText  string `json:"revenueFormatted"`
}

type Summary struct {
	TotalSales            int64         `json:"totalSales"`
	TotalSalesText        string        `json:"totalSalesFormatted"`
	TicketsSold           int           `json:"ticketsSold"`
	CompletedTransactions int           `json:"completedTransactions"`
	EntriesUsed           int           `json:"entriesUsed"`
	ByType                []TypeSummary `json:"byType"`
}

type PurchaseDetail struct {
	Purchase models.Purchase `json:"purchase"`
	Tickets  []models.Ticket `json:"tickets"`
	Entries  []models.Entry  `json:"entries"`
}

type AdminService struct {
	store     store.Store
	inventory *InventoryService
	payments  *PaymentConfig
	factory   *gateway.Factory
}

func NewAdminService(st store.Store, inventory *InventoryService, payments *PaymentConfig) *AdminService {
	return &AdminService{store: st, inventory: inventory, payments: payments, factory: gateway.NewFactory()}
}

func (s *AdminService) GetEventDetails(ctx context.Context) (*models.EventDetails, error) {
	return s.store.GetEventDetails(ctx)
}

func (s *AdminService) SaveEventDetails(ctx context.Context, d models.EventDetails) (*models.EventDetails, error) {
	d.EventName = strings.TrimSpace(d.EventName)
	d.EventDate = strings.TrimSpace(d.EventDate)
	d.Venue = strings.TrimSpace(d.Venue)
	err := validation.ValidateStruct(&d,
		validation.Field(&d.EventName, validation.Required, validation.Length(1, 200)),
		validation.Field(&d.EventDate, validation.Length(0, 64)),
		validation.Field(&d.Venue, validation.Length(0, 255)),
	)
	if err != nil {
		return nil, invalid("event details", err)
	}
	if err := s.store.SaveEventDetails(ctx, &d); err != nil {
		return nil, fmt.Errorf("save event details: %w", err)
	}
	return &d, nil
}

// GetGatewaySettings returns the active configuration with the secret masked.
func (s *AdminService) GetGatewaySettings(ctx context.Context) (*models.GatewaySettings, error) {
	cfg, err := s.payments.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &models.GatewaySettings{
		Provider:  string(cfg.Provider),
		PublicKey: cfg.PublicKey,
		SecretKey: maskSecret(cfg.SecretKey),
		Currency:  cfg.Currency,
	}, nil
}

func (s *AdminService) SaveGatewaySettings(ctx context.Context, in models.GatewaySettings) (*models.GatewaySettings, error) {
	in.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	if in.Provider == "" {
		in.Provider = string(gateway.ProviderPaystack)
	}
	in.PublicKey = strings.TrimSpace(in.PublicKey)
	in.SecretKey = strings.TrimSpace(in.SecretKey)

	supported := make([]any, 0, 2)
	for _, p := range s.factory.SupportedProviders() {
		supported = append(supported, string(p))
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Provider, validation.In(supported...)),
		validation.Field(&in.PublicKey, validation.Required),
		validation.Field(&in.SecretKey, validation.Required),
	)
	if err != nil {
		return nil, invalid("gateway settings", err)
	}
	provider := gateway.Provider(in.Provider)
	publicKey, secretKey := in.PublicKey, in.SecretKey

	publicSetting, secretSetting := models.SettingPaystackPublicKey, models.SettingPaystackSecretKey
	if provider == gateway.ProviderStripe {
		publicSetting, secretSetting = models.SettingStripePublicKey, models.SettingStripeSecretKey
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.SetSetting(ctx, models.SettingPaymentProvider, string(provider)); err != nil {
			return err
		}
		if err := tx.SetSetting(ctx, publicSetting, publicKey); err != nil {
			return err
		}
		return tx.SetSetting(ctx, secretSetting, secretKey)
	})
	if err != nil {
		return nil, fmt.Errorf("save gateway settings: %w", err)
	}
	return s.GetGatewaySettings(ctx)
}

func (s *AdminService) Summary(ctx context.Context) (*Summary, error) {
	types, err := s.inventory.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	completed, err := s.store.ListCompletedPurchases(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.CountEntries(ctx)
	if err != nil {
		return nil, err
	}
	currency := s.payments.Currency()

	sum := &Summary{CompletedTransactions: len(completed), EntriesUsed: entries}
	revenue := make(map[string]int64)
	names := make(map[string]string)
	for _, p := range completed {
		sum.TotalSales += p.TotalAmount
		for _, item := range p.Items {
			sum.TicketsSold += item.Quantity
			revenue[item.TicketTypeID] += item.Price * int64(item.Quantity)
			names[item.TicketTypeID] = item.Name
		}
	}
	sum.TotalSalesText = utils.FormatMinor(sum.TotalSales, currency)

	seen := make(map[string]bool)
	for _, t := range types {
		seen[t.ID] = true
		sum.ByType = append(sum.ByType, TypeSummary{
			TicketTypeID: t.ID,
			Name:         t.Name,
			Total:        t.Total,
			Sold:         t.Sold,
			Available:    t.Available,
			Revenue:      revenue[t.ID],
			RevenueText:  utils.FormatMinor(revenue[t.ID], currency),
		})
	}
	// Types deleted after sale still count toward revenue.
	var orphans []string
	for id := range revenue {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	sold := SoldCounts(completed)
	for _, id := range orphans {
		sum.ByType = append(sum.ByType, TypeSummary{
			TicketTypeID: id,
			Name:         names[id],
			Sold:         sold[id],
			Revenue:      revenue[id],
			RevenueText:  utils.FormatMinor(revenue[id], currency),
		})
	}
	return sum, nil
}

// Transactions lists purchases newest first.
func (s *AdminService) Transactions(ctx context.Context, filter models.PurchaseFilter) ([]models.Purchase, error) {
	switch filter.Status {
	case "", "all":
		filter.Status = ""
	case models.PurchasePending, models.PurchaseCompleted, models.PurchaseFailed:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", filter.Status, status.ErrInvalidInput)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultTransactionLimit
	}
	if filter.Limit > maxTransactionLimit {
		filter.Limit = maxTransactionLimit
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.store.ListPurchases(ctx, filter)
}

func (s *AdminService) PurchaseDetail(ctx context.Context, reference string) (*PurchaseDetail, error) {
	p, err := s.store.GetPurchaseByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.ListTicketsByPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntriesByPurchase(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &PurchaseDetail{Purchase: *p, Tickets: tickets, Entries: entries}, nil
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
