// Package store defines the §6 persistence contract: a read-through
// snapshot over clients, therapists, teams, callouts, base schedules, and
// settings. The engine itself never imports this package — it is glue
// between the store and the CLI that assembles an engine.Input.
package store

import (
	"context"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

// Snapshot is the read-through view the engine is built from.
type Snapshot struct {
	Clients       []model.Client
	Therapists    []model.Therapist
	Teams         []model.Team
	Callouts      []model.Callout
	BaseSchedules []model.BaseSchedule
	Settings      map[string]string // opaque JSON payloads, keyed by setting name
}

// Store is the collaborator contract. The engine consults it only once, at
// invocation time via Snapshot; everything else here serves the CLI's
// admin/import commands.
type Store interface {
	Snapshot(ctx context.Context, date time.Time) (*Snapshot, error)

	UpsertClient(ctx context.Context, c model.Client) error
	UpsertTherapist(ctx context.Context, t model.Therapist) error
	UpsertTeam(ctx context.Context, team model.Team) error
	RecordCallout(ctx context.Context, co model.Callout) error
	UpsertBaseSchedule(ctx context.Context, bs model.BaseSchedule) error

	SaveSchedule(ctx context.Context, date time.Time, entries []model.ScheduleEntry) (scheduleID string, err error)
	LoadSchedulesForWeekday(ctx context.Context, weekday time.Weekday, limit int) ([]SavedSchedule, error)
	UpdateRating(ctx context.Context, scheduleID string, rating float64) error
}

// SavedSchedule is one persisted schedule plus the rating it later
// received from the interactive editor, if any.
type SavedSchedule struct {
	ID      string
	Date    time.Time
	Entries []model.ScheduleEntry
	Rating  *float64
}
