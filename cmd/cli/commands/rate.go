package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jakechorley/ilford-drop-in/pkg/store"
)

// RateCmd creates the rate command: records the interactive editor's
// rating of a previously generated schedule for the learning service to
// mine later.
func RateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <date> <rating>",
		Short: "Rate a schedule (0-1) so the learning service can mine it later",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := time.Parse("2006-01-02", args[0])
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", args[0], err)
			}
			rating, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid rating %q: %w", args[1], err)
			}

			saved, err := app.Store.LoadSchedulesForWeekday(app.Ctx, date.Weekday(), 50)
			if err != nil {
				return fmt.Errorf("failed to load schedules: %w", err)
			}

			var match *store.SavedSchedule
			for i := range saved {
				if saved[i].Date.Equal(date) {
					match = &saved[i]
					break
				}
			}
			if match == nil {
				return fmt.Errorf("no saved schedule found for %s", date.Format("2006-01-02"))
			}

			if err := app.Learning.RecordFeedback(app.Ctx, match.ID, date, match.Entries, rating, 0); err != nil {
				return fmt.Errorf("failed to record feedback: %w", err)
			}

			fmt.Printf("recorded rating %.2f for schedule %s on %s\n", rating, match.ID, date.Format("2006-01-02"))
			return nil
		},
	}
}
