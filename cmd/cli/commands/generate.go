package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/ilford-drop-in/pkg/core/engine"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/notify/gmail"
)

// GenerateCmd creates the generate command: runs the evolutionary engine
// for a single day and, unless --dry-run is set, persists the result.
func GenerateCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <date>",
		Short: "Generate a day schedule for the given date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			seedFlag, _ := cmd.Flags().GetInt64("seed")

			date, err := time.Parse("2006-01-02", args[0])
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", args[0], err)
			}

			snapshot, err := app.Store.Snapshot(app.Ctx, date)
			if err != nil {
				return fmt.Errorf("failed to load snapshot: %w", err)
			}

			var baseSchedule *model.BaseSchedule
			for i, bs := range snapshot.BaseSchedules {
				for _, wd := range bs.Weekdays {
					if wd == date.Weekday() {
						baseSchedule = &snapshot.BaseSchedules[i]
						break
					}
				}
				if baseSchedule != nil {
					break
				}
			}

			minedTop, err := app.Learning.TopSchedules(app.Ctx, date.Weekday(), 3)
			if err != nil {
				app.Logger.Warn("failed to load mined schedules, continuing without them", zap.Error(err))
			}
			lunchPrefs, err := app.Learning.LunchPreferences(app.Ctx)
			if err != nil {
				app.Logger.Warn("failed to load lunch preferences, continuing without them", zap.Error(err))
			}

			in := engine.Input{
				Clients:      snapshot.Clients,
				Therapists:   snapshot.Therapists,
				Date:         date,
				Callouts:     snapshot.Callouts,
				BaseSchedule: baseSchedule,
				MinedTop:     minedTop,
				LunchPrefs:   lunchPrefs,
				Constants:    model.DefaultConstants(),
				Metrics:      app.Metrics,
			}
			if seedFlag != 0 {
				in.RNGSeed = &seedFlag
			}

			app.Logger.Info("running engine", zap.String("date", date.Format("2006-01-02")),
				zap.Int("clients", len(in.Clients)), zap.Int("therapists", len(in.Therapists)))

			out, err := engine.Run(app.Ctx, in)
			if err != nil {
				return fmt.Errorf("engine run failed: %w", err)
			}

			fmt.Printf("\nSchedule for %s\n\n", date.Format("2006-01-02 (Monday)"))
			fmt.Printf("Status:      %s\n", out.Status)
			fmt.Printf("Generations: %d\n", out.Generations)
			fmt.Printf("Fitness:     %.1f\n", out.BestFitness)
			fmt.Printf("Violations:  %d\n", len(out.Violations))
			fmt.Printf("Entries:     %d\n\n", len(out.Schedule))

			for _, v := range out.Violations {
				fmt.Printf("  [%s] %s: %s\n", v.Severity, v.RuleID, v.Message)
			}

			if dryRun {
				fmt.Println("\ndry run: schedule was not saved")
				return nil
			}

			scheduleID, err := app.Store.SaveSchedule(app.Ctx, date, out.Schedule)
			if err != nil {
				return fmt.Errorf("failed to save schedule: %w", err)
			}
			fmt.Printf("\nsaved as schedule %s\n", scheduleID)

			if app.Notifier != nil {
				if err := gmail.NotifyScheduleReady(app.Notifier, app.Cfg.Notify, date, len(out.Schedule), len(out.Violations), out.Generations, out.BestFitness); err != nil {
					app.Logger.Warn("failed to send schedule-ready notification", zap.Error(err))
				}
			}

			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Run without saving to the store")
	cmd.Flags().Int64("seed", 0, "RNG seed for reproducible runs (0 = random)")

	return cmd
}
