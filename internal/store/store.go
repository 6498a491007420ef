// Package store persists ticketing records. PocketBase is the production
// backend; Memory backs service tests and local tooling.
package store

import (
	"context"
	"time"

	"ticket-shop/models"
)

// Store is the persistence surface the services depend on.
// Lookups that miss return an error wrapping status.ErrNotFound.
type Store interface {
	ListTicketTypes(ctx context.Context) ([]models.TicketType, error)
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	CreateTicketType(ctx context.Context, t *models.TicketType) error
	UpdateTicketType(ctx context.Context, t *models.TicketType) error
	DeleteTicketType(ctx context.Context, id string) error

	CreatePurchase(ctx context.Context, p *models.Purchase) error
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	GetPurchaseByReference(ctx context.Context, reference string) (*models.Purchase, error)
	GetPurchaseByQRCode(ctx context.Context, code string) (*models.Purchase, error)
	ListPurchases(ctx context.Context, filter models.PurchaseFilter) ([]models.Purchase, error)
	// ListCompletedPurchases returns every completed purchase, the ledger's source of truth.
	ListCompletedPurchases(ctx context.Context) ([]models.Purchase, error)
	ListStalePending(ctx context.Context, createdBefore time.Time) ([]models.Purchase, error)
	// TransitionPurchase moves a purchase from one status to another only if it
	// is currently in from. It reports whether the row changed.
	TransitionPurchase(ctx context.Context, id, from, to, reason string, at time.Time) (bool, error)
	MarkPaymentVerified(ctx context.Context, id, gateway, transaction string) error
	IncrementEntriesUsed(ctx context.Context, purchaseID string) error

	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicketByNumber(ctx context.Context, number string) (*models.Ticket, error)
	ListTicketsByPurchase(ctx context.Context, purchaseID string) ([]models.Ticket, error)
	// ConsumeTicket flips valid to used in a single conditional write.
	// It reports false when the ticket was not valid.
	ConsumeTicket(ctx context.Context, ticketID string, at time.Time) (bool, error)

	AppendEntry(ctx context.Context, e *models.Entry) error
	ListEntriesByPurchase(ctx context.Context, purchaseID string) ([]models.Entry, error)
	CountEntries(ctx context.Context) (int, error)

	GetEventDetails(ctx context.Context) (*models.EventDetails, error)
	SaveEventDetails(ctx context.Context, d *models.EventDetails) error
	GetSettings(ctx context.Context, keys ...string) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error

	// RunInTransaction runs fn against a Store bound to a single transaction.
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error
}
