package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// ViewCmd creates the view command: lists saved schedules for a weekday,
// most recent first.
func ViewCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "view <weekday>",
		Short: "View recently saved schedules for a weekday (e.g. Monday)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weekday, err := parseWeekday(args[0])
			if err != nil {
				return err
			}

			saved, err := app.Store.LoadSchedulesForWeekday(app.Ctx, weekday, 10)
			if err != nil {
				return fmt.Errorf("failed to load schedules: %w", err)
			}

			fmt.Printf("\n%d saved %s schedules:\n\n", len(saved), weekday)
			for _, s := range saved {
				rating := "unrated"
				if s.Rating != nil {
					rating = fmt.Sprintf("%.2f", *s.Rating)
				}
				fmt.Printf("- %s  entries=%-4d rating=%s  id=%s\n", s.Date.Format("2006-01-02"), len(s.Entries), rating, s.ID)
			}

			return nil
		},
	}
}

func parseWeekday(s string) (time.Weekday, error) {
	names := []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday,
	}
	for _, wd := range names {
		if strings.EqualFold(wd.String(), s) || strings.EqualFold(wd.String()[:3], s) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unrecognized weekday %q", s)
}
