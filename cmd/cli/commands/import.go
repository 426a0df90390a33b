package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/ilford-drop-in/pkg/importer"
)

// ImportCmd creates the import command: bulk-loads clients, therapists, or
// callouts from a CSV file into the store.
func ImportCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <clients|therapists|callouts> <file.csv>",
		Short: "Bulk-import clients, therapists, or callouts from a CSV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, path := args[0], args[1]

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()

			switch kind {
			case "clients":
				clients, err := importer.ImportClients(f)
				if err != nil {
					return err
				}
				for _, c := range clients {
					if err := app.Store.UpsertClient(app.Ctx, c); err != nil {
						return fmt.Errorf("failed to upsert client %s: %w", c.ID, err)
					}
				}
				app.Logger.Info("imported clients", zap.Int("count", len(clients)))
				fmt.Printf("imported %d clients\n", len(clients))

			case "therapists":
				therapists, err := importer.ImportTherapists(f)
				if err != nil {
					return err
				}
				for _, t := range therapists {
					if err := app.Store.UpsertTherapist(app.Ctx, t); err != nil {
						return fmt.Errorf("failed to upsert therapist %s: %w", t.ID, err)
					}
				}
				app.Logger.Info("imported therapists", zap.Int("count", len(therapists)))
				fmt.Printf("imported %d therapists\n", len(therapists))

			case "callouts":
				callouts, err := importer.ImportCallouts(f)
				if err != nil {
					return err
				}
				for _, co := range callouts {
					if err := app.Store.RecordCallout(app.Ctx, co); err != nil {
						return fmt.Errorf("failed to record callout: %w", err)
					}
				}
				app.Logger.Info("imported callouts", zap.Int("count", len(callouts)))
				fmt.Printf("imported %d callouts\n", len(callouts))

			default:
				return fmt.Errorf("unknown import kind %q (want clients, therapists, or callouts)", kind)
			}

			return nil
		},
	}

	return cmd
}
