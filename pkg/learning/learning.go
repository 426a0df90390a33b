// Package learning defines the optional learning-service collaborator of
// §6: a source of historically high-rated schedules and learned lunch
// preferences, consulted by the seeder and the evolutionary loop's
// population-seeding step. A caller with no learning service wires
// pkg/learning/noop instead.
package learning

import (
	"context"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

// Service is the learning-service contract. All methods must tolerate a
// cold cache (no mined history yet) by returning empty results, never an
// error, so the engine can run unconditionally on a fresh install.
type Service interface {
	// TopSchedules returns up to k historically high-rated schedules for
	// the given weekday, most-preferred first.
	TopSchedules(ctx context.Context, weekday time.Weekday, k int) ([][]model.ScheduleEntry, error)

	// LunchPreferences returns the learned preferred lunch window per
	// therapist ID, where known.
	LunchPreferences(ctx context.Context) (map[string]model.LunchPreference, error)

	// RecordFeedback writes the editor's rating through to the persisted
	// schedule identified by scheduleID (e.g. from the interactive editor)
	// and queues the event for future mining.
	RecordFeedback(ctx context.Context, scheduleID string, date time.Time, entries []model.ScheduleEntry, rating float64, violations int) error
}
