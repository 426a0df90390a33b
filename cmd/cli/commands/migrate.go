package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/ilford-drop-in/pkg/store/postgres"
)

// MigrateCmd creates the migrate command: applies pending Postgres schema
// migrations. Only usable when the store is backed by postgres.DB.
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ok := app.Store.(*postgres.DB)
			if !ok {
				return fmt.Errorf("migrate: store is not backed by postgres")
			}
			if err := db.RunMigrations(app.Ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
