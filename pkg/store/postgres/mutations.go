package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/store"
)

// UpsertTeam inserts or updates a team row.
func (d *DB) UpsertTeam(ctx context.Context, team model.Team) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO teams (id, name, color)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, color = EXCLUDED.color
	`, team.ID, team.Name, team.Color)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert team %s: %w", team.ID, err)
	}
	return nil
}

// UpsertClient inserts or updates a client row, including its allied-health
// needs encoded as JSON.
func (d *DB) UpsertClient(ctx context.Context, c model.Client) error {
	needsJSON, err := json.Marshal(c.AlliedHealthNeeds)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal allied-health needs for client %s: %w", c.ID, err)
	}
	reqs := make([]string, 0, len(c.InsuranceRequirements))
	for _, r := range c.InsuranceRequirements {
		reqs = append(reqs, string(r))
	}
	var teamID *string
	if c.TeamID != "" {
		teamID = &c.TeamID
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO clients (id, name, team_id, insurance_requirements, allied_health_needs)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			team_id = EXCLUDED.team_id,
			insurance_requirements = EXCLUDED.insurance_requirements,
			allied_health_needs = EXCLUDED.allied_health_needs
	`, c.ID, c.Name, teamID, reqs, needsJSON)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert client %s: %w", c.ID, err)
	}
	return nil
}

// UpsertTherapist inserts or updates a therapist row.
func (d *DB) UpsertTherapist(ctx context.Context, t model.Therapist) error {
	quals := make([]string, 0, len(t.Qualifications))
	for _, q := range t.Qualifications {
		quals = append(quals, string(q))
	}
	var ahCapable []string
	for kind, ok := range t.AHCapable {
		if ok {
			ahCapable = append(ahCapable, string(kind))
		}
	}
	var teamID *string
	if t.TeamID != "" {
		teamID = &t.TeamID
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO therapists (id, name, team_id, role, qualifications, ah_capable)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			team_id = EXCLUDED.team_id,
			role = EXCLUDED.role,
			qualifications = EXCLUDED.qualifications,
			ah_capable = EXCLUDED.ah_capable
	`, t.ID, t.Name, teamID, string(t.Role), quals, ahCapable)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert therapist %s: %w", t.ID, err)
	}
	return nil
}

// RecordCallout inserts a new callout. Callouts are treated as append-only
// records, not upserts, since a second callout covering an overlapping
// window is a distinct event.
func (d *DB) RecordCallout(ctx context.Context, co model.Callout) error {
	if co.ID == "" {
		co.ID = uuid.NewString()
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO callouts (id, entity_kind, entity_id, date_start, date_end, window_start, window_end, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, co.ID, string(co.EntityKind), co.EntityID, co.DateStart, co.DateEnd, co.WindowStart, co.WindowEnd, co.Reason)
	if err != nil {
		return fmt.Errorf("postgres: failed to record callout for %s %s: %w", co.EntityKind, co.EntityID, err)
	}
	return nil
}

// UpsertBaseSchedule replaces a base schedule and its entries wholesale
// within a single transaction.
func (d *DB) UpsertBaseSchedule(ctx context.Context, bs model.BaseSchedule) error {
	if bs.ID == "" {
		bs.ID = uuid.NewString()
	}
	weekdays := make([]int32, 0, len(bs.Weekdays))
	for _, w := range bs.Weekdays {
		weekdays = append(weekdays, int32(w))
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin base schedule transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO base_schedules (id, name, weekdays)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, weekdays = EXCLUDED.weekdays
	`, bs.ID, bs.Name, weekdays)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert base schedule %s: %w", bs.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM base_schedule_entries WHERE base_schedule_id = $1`, bs.ID); err != nil {
		return fmt.Errorf("postgres: failed to clear base schedule entries for %s: %w", bs.ID, err)
	}

	for _, e := range bs.Entries {
		entryID := e.ID
		if entryID == "" {
			entryID = uuid.NewString()
		}
		var clientID *string
		if e.ClientID != "" {
			clientID = &e.ClientID
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO base_schedule_entries (id, base_schedule_id, client_id, therapist_id, weekday, start_min, end_min, kind)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, entryID, bs.ID, clientID, e.TherapistID, int32(e.Weekday), e.StartMin, e.EndMin, string(e.Kind))
		if err != nil {
			return fmt.Errorf("postgres: failed to insert base schedule entry for %s: %w", bs.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit base schedule %s: %w", bs.ID, err)
	}
	return nil
}

// SaveSchedule persists a finished day schedule and returns its generated ID.
func (d *DB) SaveSchedule(ctx context.Context, date time.Time, entries []model.ScheduleEntry) (string, error) {
	scheduleID := uuid.NewString()

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("postgres: failed to begin schedule transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO schedules (id, date, weekday)
		VALUES ($1, $2, $3)
	`, scheduleID, date, int32(date.Weekday()))
	if err != nil {
		return "", fmt.Errorf("postgres: failed to insert schedule: %w", err)
	}

	for _, e := range entries {
		entryID := e.ID
		if entryID == "" {
			entryID = uuid.NewString()
		}
		var clientID *string
		if e.ClientID != "" {
			clientID = &e.ClientID
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_entries (id, schedule_id, client_id, therapist_id, weekday, start_min, end_min, kind)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, entryID, scheduleID, clientID, e.TherapistID, int32(e.Weekday), e.StartMin, e.EndMin, string(e.Kind))
		if err != nil {
			return "", fmt.Errorf("postgres: failed to insert schedule entry for schedule %s: %w", scheduleID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("postgres: failed to commit schedule %s: %w", scheduleID, err)
	}
	return scheduleID, nil
}

// LoadSchedulesForWeekday returns up to limit most-recently-created
// schedules for the given weekday, ordered newest first. Used by the
// learning service to mine historical high-rated schedules.
func (d *DB) LoadSchedulesForWeekday(ctx context.Context, weekday time.Weekday, limit int) ([]store.SavedSchedule, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, date, rating FROM schedules
		WHERE weekday = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, int32(weekday), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query schedules for weekday %s: %w", weekday, err)
	}

	type row struct {
		id     string
		date   time.Time
		rating *float64
	}
	var rowsOut []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.date, &r.rating); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: failed to scan schedule row: %w", err)
		}
		rowsOut = append(rowsOut, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed reading schedules for weekday %s: %w", weekday, err)
	}

	out := make([]store.SavedSchedule, 0, len(rowsOut))
	for _, r := range rowsOut {
		entries, err := d.scheduleEntries(ctx, r.id)
		if err != nil {
			return nil, err
		}
		out = append(out, store.SavedSchedule{
			ID:      r.id,
			Date:    r.date,
			Entries: entries,
			Rating:  r.rating,
		})
	}
	return out, nil
}

// UpdateRating writes the editor's rating onto a previously saved schedule,
// making it eligible for the learning service's rating-floor cache filter.
func (d *DB) UpdateRating(ctx context.Context, scheduleID string, rating float64) error {
	_, err := d.pool.Exec(ctx, `UPDATE schedules SET rating = $1 WHERE id = $2`, rating, scheduleID)
	if err != nil {
		return fmt.Errorf("postgres: failed to update rating for schedule %s: %w", scheduleID, err)
	}
	return nil
}

func (d *DB) scheduleEntries(ctx context.Context, scheduleID string) ([]model.ScheduleEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, client_id, therapist_id, weekday, start_min, end_min, kind
		FROM schedule_entries WHERE schedule_id = $1
	`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query schedule entries for %s: %w", scheduleID, err)
	}
	defer rows.Close()

	var out []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		var clientID *string
		var weekday int32
		if err := rows.Scan(&e.ID, &clientID, &e.TherapistID, &weekday, &e.StartMin, &e.EndMin, &e.Kind); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan schedule entry for %s: %w", scheduleID, err)
		}
		if clientID != nil {
			e.ClientID = *clientID
		}
		e.Weekday = time.Weekday(weekday)
		out = append(out, e)
	}
	return out, rows.Err()
}
