package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

// CalloutCmd creates the callout command: records a single-day
// unavailability window for a client or therapist.
func CalloutCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callout <client|therapist> <entity_id> <date>",
		Short: "Record a callout for a client or therapist on the given date",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kindArg, entityID, dateArg := args[0], args[1], args[2]

			var kind model.CalloutEntityKind
			switch kindArg {
			case "client":
				kind = model.CalloutClient
			case "therapist":
				kind = model.CalloutTherapist
			default:
				return fmt.Errorf("unknown entity kind %q (want client or therapist)", kindArg)
			}

			date, err := time.Parse("2006-01-02", dateArg)
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", dateArg, err)
			}

			reason, _ := cmd.Flags().GetString("reason")
			windowStart, _ := cmd.Flags().GetInt("window-start")
			windowEnd, _ := cmd.Flags().GetInt("window-end")
			if windowStart < 0 {
				windowStart = model.DefaultConstants().OPStartMin
			}
			if windowEnd < 0 {
				windowEnd = model.DefaultConstants().OPEndMin
			}

			co := model.Callout{
				ID:          uuid.NewString(),
				EntityKind:  kind,
				EntityID:    entityID,
				DateStart:   date,
				DateEnd:     date,
				WindowStart: windowStart,
				WindowEnd:   windowEnd,
				Reason:      reason,
			}

			if err := app.Store.RecordCallout(app.Ctx, co); err != nil {
				return fmt.Errorf("failed to record callout: %w", err)
			}

			fmt.Printf("recorded callout for %s %s on %s\n", kindArg, entityID, date.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().String("reason", "", "Reason for the callout")
	cmd.Flags().Int("window-start", -1, "Window start, minutes since midnight (default: operating start)")
	cmd.Flags().Int("window-end", -1, "Window end, minutes since midnight (default: operating end)")

	return cmd
}
