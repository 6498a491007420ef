package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func timestamps() []core.Field {
	return []core.Field{
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	}
}

func init() {
	m.Register(func(app core.App) error {
		ticketTypes := core.NewBaseCollection("ticket_types")
		ticketTypes.ListRule = types.Pointer("")
		ticketTypes.ViewRule = types.Pointer("")
		ticketTypes.Fields.Add(
			&core.TextField{Name: "name", Required: true, Max: 200},
			&core.NumberField{Name: "price", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.TextField{Name: "description"},
			&core.TextField{Name: "date", Max: 64},
			&core.TextField{Name: "time", Max: 64},
			&core.TextField{Name: "location", Max: 255},
			&core.NumberField{Name: "total", OnlyInt: true, Min: types.Pointer(0.0)},
		)
		ticketTypes.Fields.Add(timestamps()...)
		if err := app.Save(ticketTypes); err != nil {
			return err
		}

		purchases := core.NewBaseCollection("purchases")
		purchases.Fields.Add(
			&core.TextField{Name: "reference", Required: true, Max: 100},
			&core.JSONField{Name: "customer_info", MaxSize: 4096},
			&core.JSONField{Name: "items", MaxSize: 65536},
			&core.NumberField{Name: "total_amount", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.TextField{Name: "qr_code", Max: 200},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"pending", "completed", "failed"}},
			&core.BoolField{Name: "payment_verified"},
			&core.TextField{Name: "gateway", Max: 32},
			&core.TextField{Name: "gateway_transaction", Max: 200},
			&core.TextField{Name: "failure_reason", Max: 200},
			&core.NumberField{Name: "entries_used", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.DateField{Name: "completed_at"},
		)
		purchases.Fields.Add(timestamps()...)
		purchases.AddIndex("idx_purchases_reference", true, "reference", "")
		purchases.AddIndex("idx_purchases_status_created", false, "status, created", "")
		if err := app.Save(purchases); err != nil {
			return err
		}

		tickets := core.NewBaseCollection("tickets")
		tickets.Fields.Add(
			&core.TextField{Name: "ticket_number", Required: true, Max: 100},
			&core.TextField{Name: "qr_code"},
			&core.TextField{Name: "purchase_id", Required: true, Max: 50},
			&core.TextField{Name: "ticket_type_id", Required: true, Max: 50},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"valid", "used"}},
			&core.DateField{Name: "used_at"},
		)
		tickets.Fields.Add(timestamps()...)
		tickets.AddIndex("idx_tickets_number", true, "ticket_number", "")
		tickets.AddIndex("idx_tickets_purchase", false, "purchase_id", "")
		tickets.AddIndex("idx_tickets_type", false, "ticket_type_id", "")
		if err := app.Save(tickets); err != nil {
			return err
		}

		entries := core.NewBaseCollection("entries")
		entries.Fields.Add(
			&core.TextField{Name: "ticket_id", Required: true, Max: 50},
			&core.TextField{Name: "purchase_id", Required: true, Max: 50},
			&core.TextField{Name: "gate", Max: 100},
			&core.DateField{Name: "scanned_at", Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
		)
		entries.AddIndex("idx_entries_purchase", false, "purchase_id", "")
		if err := app.Save(entries); err != nil {
			return err
		}

		eventDetails := core.NewBaseCollection("event_details")
		eventDetails.ListRule = types.Pointer("")
		eventDetails.ViewRule = types.Pointer("")
		eventDetails.Fields.Add(
			&core.TextField{Name: "event_name", Required: true, Max: 200},
			&core.TextField{Name: "event_date", Max: 64},
			&core.TextField{Name: "venue", Max: 255},
			&core.TextField{Name: "description"},
		)
		eventDetails.Fields.Add(timestamps()...)
		if err := app.Save(eventDetails); err != nil {
			return err
		}

		settings := core.NewBaseCollection("settings")
		settings.Fields.Add(
			&core.TextField{Name: "key", Required: true, Max: 100},
			&core.TextField{Name: "value", Hidden: true},
		)
		settings.Fields.Add(timestamps()...)
		settings.AddIndex("idx_settings_key", true, "key", "")
		return app.Save(settings)
	}, func(app core.App) error {
		for _, name := range []string{"settings", "event_details", "entries", "tickets", "purchases", "ticket_types"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(collection); err != nil {
				return err
			}
		}
		return nil
	})
}
