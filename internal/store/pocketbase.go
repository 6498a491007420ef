package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-shop/internal/status"
	"ticket-shop/models"
)

// Collection names.
const (
	TicketTypesCollection  = "ticket_types"
	PurchasesCollection    = "purchases"
	TicketsCollection      = "tickets"
	EntriesCollection      = "entries"
	EventDetailsCollection = "event_details"
	SettingsCollection     = "settings"
	AdminsCollection       = "admins"
)

// PocketBase stores records in the embedded PocketBase database.
type PocketBase struct {
	app core.App
}

var _ Store = (*PocketBase)(nil)

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, status.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// isUniqueViolation reports whether err is PocketBase's normalized unique
// index failure for field.
func isUniqueViolation(err error, field string) bool {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return false
	}
	fieldErr, ok := errs[field].(validation.Error)
	return ok && fieldErr.Code() == "validation_not_unique"
}

func dateString(t time.Time) string {
	dt, err := types.ParseDateTime(t)
	if err != nil {
		return ""
	}
	return dt.String()
}

func recordTime(r *core.Record, field string) time.Time {
	return r.GetDateTime(field).Time()
}

// Ticket types

func (s *PocketBase) ListTicketTypes(_ context.Context) ([]models.TicketType, error) {
	records, err := s.app.FindAllRecords(TicketTypesCollection)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}
	out := make([]models.TicketType, 0, len(records))
	for _, r := range records {
		out = append(out, toTicketType(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *PocketBase) GetTicketType(_ context.Context, id string) (*models.TicketType, error) {
	r, err := s.app.FindRecordById(TicketTypesCollection, id)
	if err != nil {
		return nil, notFound(err, "ticket type "+id)
	}
	t := toTicketType(r)
	return &t, nil
}

func (s *PocketBase) CreateTicketType(ctx context.Context, t *models.TicketType) error {
	col, err := s.app.FindCollectionByNameOrId(TicketTypesCollection)
	if err != nil {
		return err
	}
	r := core.NewRecord(col)
	fillTicketType(r, t)
	if err := s.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("create ticket type: %w", err)
	}
	*t = toTicketType(r)
	return nil
}

func (s *PocketBase) UpdateTicketType(ctx context.Context, t *models.TicketType) error {
	r, err := s.app.FindRecordById(TicketTypesCollection, t.ID)
	if err != nil {
		return notFound(err, "ticket type "+t.ID)
	}
	fillTicketType(r, t)
	if err := s.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("update ticket type: %w", err)
	}
	*t = toTicketType(r)
	return nil
}

func (s *PocketBase) DeleteTicketType(ctx context.Context, id string) error {
	r, err := s.app.FindRecordById(TicketTypesCollection, id)
	if err != nil {
		return notFound(err, "ticket type "+id)
	}
	return s.app.DeleteWithContext(ctx, r)
}

func fillTicketType(r *core.Record, t *models.TicketType) {
	r.Set("name", t.Name)
	r.Set("price", t.Price)
	r.Set("description", t.Description)
	r.Set("date", t.Date)
	r.Set("time", t.Time)
	r.Set("location", t.Location)
	r.Set("total", t.Total)
}

func toTicketType(r *core.Record) models.TicketType {
	return models.TicketType{
		ID:          r.Id,
		Name:        r.GetString("name"),
		Price:       int64(r.GetInt("price")),
		Description: r.GetString("description"),
		Date:        r.GetString("date"),
		Time:        r.GetString("time"),
		Location:    r.GetString("location"),
		Total:       r.GetInt("total"),
		CreatedAt:   recordTime(r, "created"),
		UpdatedAt:   recordTime(r, "updated"),
	}
}

// Purchases

func (s *PocketBase) CreatePurchase(ctx context.Context, p *models.Purchase) error {
	col, err := s.app.FindCollectionByNameOrId(PurchasesCollection)
	if err != nil {
		return err
	}
	if _, err := s.app.FindFirstRecordByData(col, "reference", p.Reference); err == nil {
		return fmt.Errorf("purchase reference %s: %w", p.Reference, status.ErrConflict)
	}

	r := core.NewRecord(col)
	r.Set("reference", p.Reference)
	r.Set("customer_info", p.CustomerInfo)
	r.Set("items", p.Items)
	r.Set("total_amount", p.TotalAmount)
	r.Set("qr_code", p.QRCode)
	r.Set("status", p.Status)
	r.Set("payment_verified", p.PaymentVerified)
	r.Set("gateway", p.Gateway)
	r.Set("entries_used", p.EntriesUsed)
	if err := s.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}

	saved, err := toPurchase(r)
	if err != nil {
		return err
	}
	*p = saved
	return nil
}

func (s *PocketBase) GetPurchase(_ context.Context, id string) (*models.Purchase, error) {
	r, err := s.app.FindRecordById(PurchasesCollection, id)
	if err != nil {
		return nil, notFound(err, "purchase "+id)
	}
	p, err := toPurchase(r)
	return &p, err
}

func (s *PocketBase) GetPurchaseByReference(_ context.Context, reference string) (*models.Purchase, error) {
	r, err := s.app.FindFirstRecordByData(PurchasesCollection, "reference", reference)
	if err != nil {
		return nil, notFound(err, "purchase "+reference)
	}
	p, err := toPurchase(r)
	return &p, err
}

func (s *PocketBase) GetPurchaseByQRCode(_ context.Context, code string) (*models.Purchase, error) {
	if code == "" {
		return nil, fmt.Errorf("purchase qr code: %w", status.ErrNotFound)
	}
	r, err := s.app.FindFirstRecordByData(PurchasesCollection, "qr_code", code)
	if err != nil {
		return nil, notFound(err, "purchase qr code")
	}
	p, err := toPurchase(r)
	return &p, err
}

func (s *PocketBase) ListPurchases(_ context.Context, filter models.PurchaseFilter) ([]models.Purchase, error) {
	var conds []string
	params := dbx.Params{}
	if filter.Status != "" {
		conds = append(conds, "status = {:status}")
		params["status"] = filter.Status
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		conds = append(conds, "(reference ~ {:q} || customer_info ~ {:q})")
		params["q"] = q
	}

	records, err := s.app.FindRecordsByFilter(PurchasesCollection, strings.Join(conds, " && "), "-created", filter.Limit, 0, params)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return toPurchases(records)
}

func (s *PocketBase) ListCompletedPurchases(_ context.Context) ([]models.Purchase, error) {
	records, err := s.app.FindAllRecords(PurchasesCollection, dbx.HashExp{"status": models.PurchaseCompleted})
	if err != nil {
		return nil, fmt.Errorf("list completed purchases: %w", err)
	}
	return toPurchases(records)
}

func (s *PocketBase) ListStalePending(_ context.Context, createdBefore time.Time) ([]models.Purchase, error) {
	records, err := s.app.FindRecordsByFilter(
		PurchasesCollection,
		"status = 'pending' && payment_verified = false && created < {:before}",
		"created",
		0,
		0,
		dbx.Params{"before": dateString(createdBefore)},
	)
	if err != nil {
		return nil, fmt.Errorf("list stale purchases: %w", err)
	}
	return toPurchases(records)
}

func (s *PocketBase) TransitionPurchase(_ context.Context, id, from, to, reason string, at time.Time) (bool, error) {
	set := "status = {:to}, failure_reason = {:reason}, updated = {:at}"
	if to == models.PurchaseCompleted {
		set += ", completed_at = {:at}"
	}

	res, err := s.app.DB().NewQuery("UPDATE purchases SET " + set + " WHERE id = {:id} AND status = {:from}").
		Bind(dbx.Params{"to": to, "reason": reason, "at": dateString(at), "id": id, "from": from}).
		Execute()
	if err != nil {
		return false, fmt.Errorf("transition purchase %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := s.app.FindRecordById(PurchasesCollection, id); err != nil {
			return false, notFound(err, "purchase "+id)
		}
		return false, nil
	}
	return true, nil
}

func (s *PocketBase) MarkPaymentVerified(ctx context.Context, id, gateway, transaction string) error {
	r, err := s.app.FindRecordById(PurchasesCollection, id)
	if err != nil {
		return notFound(err, "purchase "+id)
	}
	r.Set("payment_verified", true)
	r.Set("gateway", gateway)
	r.Set("gateway_transaction", transaction)
	return s.app.SaveWithContext(ctx, r)
}

func (s *PocketBase) IncrementEntriesUsed(_ context.Context, purchaseID string) error {
	_, err := s.app.DB().NewQuery("UPDATE purchases SET entries_used = entries_used + 1, updated = {:at} WHERE id = {:id}").
		Bind(dbx.Params{"id": purchaseID, "at": dateString(time.Now())}).
		Execute()
	return err
}

func toPurchases(records []*core.Record) ([]models.Purchase, error) {
	out := make([]models.Purchase, 0, len(records))
	for _, r := range records {
		p, err := toPurchase(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toPurchase(r *core.Record) (models.Purchase, error) {
	p := models.Purchase{
		ID:                 r.Id,
		Reference:          r.GetString("reference"),
		TotalAmount:        int64(r.GetInt("total_amount")),
		QRCode:             r.GetString("qr_code"),
		Status:             r.GetString("status"),
		PaymentVerified:    r.GetBool("payment_verified"),
		Gateway:            r.GetString("gateway"),
		GatewayTransaction: r.GetString("gateway_transaction"),
		FailureReason:      r.GetString("failure_reason"),
		EntriesUsed:        r.GetInt("entries_used"),
		CreatedAt:          recordTime(r, "created"),
	}
	if err := r.UnmarshalJSONField("customer_info", &p.CustomerInfo); err != nil {
		return p, fmt.Errorf("purchase %s customer_info: %w", r.Id, err)
	}
	if err := r.UnmarshalJSONField("items", &p.Items); err != nil {
		return p, fmt.Errorf("purchase %s items: %w", r.Id, err)
	}
	if completed := recordTime(r, "completed_at"); !completed.IsZero() {
		p.CompletedAt = &completed
	}
	return p, nil
}

// Tickets

func (s *PocketBase) CreateTicket(ctx context.Context, t *models.Ticket) error {
	col, err := s.app.FindCollectionByNameOrId(TicketsCollection)
	if err != nil {
		return err
	}
	r := core.NewRecord(col)
	r.Set("ticket_number", t.TicketNumber)
	r.Set("qr_code", t.QRCode)
	r.Set("purchase_id", t.PurchaseID)
	r.Set("ticket_type_id", t.TicketTypeID)
	r.Set("status", t.Status)
	if err := s.app.SaveWithContext(ctx, r); err != nil {
		if isUniqueViolation(err, "ticket_number") {
			return fmt.Errorf("ticket number %s: %w", t.TicketNumber, status.ErrConflict)
		}
		return fmt.Errorf("create ticket %s: %w", t.TicketNumber, err)
	}
	*t = toTicket(r)
	return nil
}

func (s *PocketBase) GetTicketByNumber(_ context.Context, number string) (*models.Ticket, error) {
	r, err := s.app.FindFirstRecordByData(TicketsCollection, "ticket_number", number)
	if err != nil {
		return nil, notFound(err, "ticket "+number)
	}
	t := toTicket(r)
	return &t, nil
}

func (s *PocketBase) ListTicketsByPurchase(_ context.Context, purchaseID string) ([]models.Ticket, error) {
	// rowid keeps issuance order when several tickets share a timestamp
	var records []*core.Record
	err := s.app.RecordQuery(TicketsCollection).
		AndWhere(dbx.HashExp{"purchase_id": purchaseID}).
		OrderBy("rowid ASC").
		All(&records)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	out := make([]models.Ticket, 0, len(records))
	for _, r := range records {
		out = append(out, toTicket(r))
	}
	return out, nil
}

func (s *PocketBase) ConsumeTicket(_ context.Context, ticketID string, at time.Time) (bool, error) {
	res, err := s.app.DB().NewQuery(
		"UPDATE tickets SET status = 'used', used_at = {:at}, updated = {:at} WHERE id = {:id} AND status = 'valid'",
	).Bind(dbx.Params{"id": ticketID, "at": dateString(at)}).Execute()
	if err != nil {
		return false, fmt.Errorf("consume ticket %s: %w", ticketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func toTicket(r *core.Record) models.Ticket {
	t := models.Ticket{
		ID:           r.Id,
		TicketNumber: r.GetString("ticket_number"),
		QRCode:       r.GetString("qr_code"),
		PurchaseID:   r.GetString("purchase_id"),
		TicketTypeID: r.GetString("ticket_type_id"),
		Status:       r.GetString("status"),
		CreatedAt:    recordTime(r, "created"),
		UpdatedAt:    recordTime(r, "updated"),
	}
	if used := recordTime(r, "used_at"); !used.IsZero() {
		t.UsedAt = &used
	}
	return t
}

// Entries

func (s *PocketBase) AppendEntry(ctx context.Context, e *models.Entry) error {
	col, err := s.app.FindCollectionByNameOrId(EntriesCollection)
	if err != nil {
		return err
	}
	r := core.NewRecord(col)
	r.Set("ticket_id", e.TicketID)
	r.Set("purchase_id", e.PurchaseID)
	r.Set("gate", e.Gate)
	r.Set("scanned_at", e.ScannedAt)
	if err := s.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	e.ID = r.Id
	return nil
}

func (s *PocketBase) ListEntriesByPurchase(_ context.Context, purchaseID string) ([]models.Entry, error) {
	records, err := s.app.FindRecordsByFilter(EntriesCollection, "purchase_id = {:pid}", "scanned_at", 0, 0, dbx.Params{"pid": purchaseID})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out := make([]models.Entry, 0, len(records))
	for _, r := range records {
		out = append(out, models.Entry{
			ID:         r.Id,
			TicketID:   r.GetString("ticket_id"),
			PurchaseID: r.GetString("purchase_id"),
			Gate:       r.GetString("gate"),
			ScannedAt:  recordTime(r, "scanned_at"),
		})
	}
	return out, nil
}

func (s *PocketBase) CountEntries(_ context.Context) (int, error) {
	n, err := s.app.CountRecords(EntriesCollection)
	return int(n), err
}

// Event details and settings

func (s *PocketBase) latestEventRecord() (*core.Record, error) {
	records, err := s.app.FindRecordsByFilter(EventDetailsCollection, "", "-created", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

func (s *PocketBase) GetEventDetails(_ context.Context) (*models.EventDetails, error) {
	r, err := s.latestEventRecord()
	if err != nil {
		return nil, notFound(err, "event details")
	}
	return &models.EventDetails{
		ID:          r.Id,
		EventName:   r.GetString("event_name"),
		EventDate:   r.GetString("event_date"),
		Venue:       r.GetString("venue"),
		Description: r.GetString("description"),
		UpdatedAt:   recordTime(r, "updated"),
	}, nil
}

func (s *PocketBase) SaveEventDetails(ctx context.Context, d *models.EventDetails) error {
	r, err := s.latestEventRecord()
	if errors.Is(err, sql.ErrNoRows) {
		col, cerr := s.app.FindCollectionByNameOrId(EventDetailsCollection)
		if cerr != nil {
			return cerr
		}
		r = core.NewRecord(col)
	} else if err != nil {
		return err
	}

	r.Set("event_name", d.EventName)
	r.Set("event_date", d.EventDate)
	r.Set("venue", d.Venue)
	r.Set("description", d.Description)
	if err := s.app.SaveWithContext(ctx, r); err != nil {
		return fmt.Errorf("save event details: %w", err)
	}
	d.ID = r.Id
	d.UpdatedAt = recordTime(r, "updated")
	return nil
}

func (s *PocketBase) GetSettings(_ context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	in := make([]any, len(keys))
	for i, k := range keys {
		in[i] = k
	}
	records, err := s.app.FindAllRecords(SettingsCollection, dbx.In("key", in...))
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	for _, r := range records {
		out[r.GetString("key")] = r.GetString("value")
	}
	return out, nil
}

func (s *PocketBase) SetSetting(ctx context.Context, key, value string) error {
	r, err := s.app.FindFirstRecordByData(SettingsCollection, "key", key)
	if errors.Is(err, sql.ErrNoRows) {
		col, cerr := s.app.FindCollectionByNameOrId(SettingsCollection)
		if cerr != nil {
			return cerr
		}
		r = core.NewRecord(col)
		r.Set("key", key)
	} else if err != nil {
		return err
	}
	r.Set("value", value)
	return s.app.SaveWithContext(ctx, r)
}

func (s *PocketBase) RunInTransaction(_ context.Context, fn func(tx Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&PocketBase{app: txApp})
	})
}
