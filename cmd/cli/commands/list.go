package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// ListCmd creates the list command: prints clients or therapists currently
// on file.
func ListCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <clients|therapists>",
		Short: "List clients or therapists on file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := app.Store.Snapshot(app.Ctx, time.Now())
			if err != nil {
				return fmt.Errorf("failed to load snapshot: %w", err)
			}

			switch args[0] {
			case "clients":
				fmt.Printf("\nFound %d clients:\n\n", len(snapshot.Clients))
				for _, c := range snapshot.Clients {
					fmt.Printf("- %s (%s) team=%s requirements=%v\n", c.Name, c.ID, c.TeamID, c.InsuranceRequirements)
				}
			case "therapists":
				fmt.Printf("\nFound %d therapists:\n\n", len(snapshot.Therapists))
				for _, t := range snapshot.Therapists {
					fmt.Printf("- %s (%s) role=%s team=%s qualifications=%v\n", t.Name, t.ID, t.Role, t.TeamID, t.Qualifications)
				}
			default:
				return fmt.Errorf("unknown list kind %q (want clients or therapists)", args[0])
			}

			return nil
		},
	}

	return cmd
}
