package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// admins are the console operators; door staff log in here to use the scanner.
func init() {
	m.Register(func(app core.App) error {
		admins := core.NewAuthCollection("admins")
		admins.Fields.Add(
			&core.TextField{Name: "name", Max: 200},
		)
		return app.Save(admins)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("admins")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
