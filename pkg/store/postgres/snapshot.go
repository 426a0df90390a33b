package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/store"
)

// Snapshot retrieves the read-through view the engine is built from: every
// client, therapist, team, callout, base schedule, and setting currently
// on file. The engine never re-queries after this call returns.
func (d *DB) Snapshot(ctx context.Context, date time.Time) (*store.Snapshot, error) {
	teams, err := d.teams(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot teams: %w", err)
	}
	clients, err := d.clients(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot clients: %w", err)
	}
	therapists, err := d.therapists(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot therapists: %w", err)
	}
	callouts, err := d.callouts(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot callouts: %w", err)
	}
	baseSchedules, err := d.baseSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot base schedules: %w", err)
	}
	settings, err := d.settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot settings: %w", err)
	}

	return &store.Snapshot{
		Clients:       clients,
		Therapists:    therapists,
		Teams:         teams,
		Callouts:      callouts,
		BaseSchedules: baseSchedules,
		Settings:      settings,
	}, nil
}

func (d *DB) teams(ctx context.Context) ([]model.Team, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, color FROM teams`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) clients(ctx context.Context) ([]model.Client, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, team_id, insurance_requirements, allied_health_needs FROM clients`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		var c model.Client
		var teamID *string
		var reqs []string
		var needsJSON []byte
		if err := rows.Scan(&c.ID, &c.Name, &teamID, &reqs, &needsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		if teamID != nil {
			c.TeamID = *teamID
		}
		for _, r := range reqs {
			c.InsuranceRequirements = append(c.InsuranceRequirements, model.QualificationTag(r))
		}
		if len(needsJSON) > 0 {
			if err := json.Unmarshal(needsJSON, &c.AlliedHealthNeeds); err != nil {
				return nil, fmt.Errorf("failed to unmarshal allied-health needs for client %s: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) therapists(ctx context.Context) ([]model.Therapist, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, team_id, role, qualifications, ah_capable FROM therapists`)
	if err != nil {
		return nil, fmt.Errorf("failed to query therapists: %w", err)
	}
	defer rows.Close()

	var out []model.Therapist
	for rows.Next() {
		var t model.Therapist
		var teamID *string
		var quals, ahCapable []string
		if err := rows.Scan(&t.ID, &t.Name, &teamID, &t.Role, &quals, &ahCapable); err != nil {
			return nil, fmt.Errorf("failed to scan therapist: %w", err)
		}
		if teamID != nil {
			t.TeamID = *teamID
		}
		for _, q := range quals {
			t.Qualifications = append(t.Qualifications, model.QualificationTag(q))
		}
		t.AHCapable = make(map[model.AHKind]bool)
		for _, kind := range ahCapable {
			t.AHCapable[model.AHKind(kind)] = true
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) callouts(ctx context.Context) ([]model.Callout, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, entity_kind, entity_id, date_start, date_end, window_start, window_end, reason FROM callouts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query callouts: %w", err)
	}
	defer rows.Close()

	var out []model.Callout
	for rows.Next() {
		var c model.Callout
		if err := rows.Scan(&c.ID, &c.EntityKind, &c.EntityID, &c.DateStart, &c.DateEnd, &c.WindowStart, &c.WindowEnd, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan callout: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) baseSchedules(ctx context.Context) ([]model.BaseSchedule, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name, weekdays FROM base_schedules`)
	if err != nil {
		return nil, fmt.Errorf("failed to query base schedules: %w", err)
	}
	defer rows.Close()

	var out []model.BaseSchedule
	for rows.Next() {
		var bs model.BaseSchedule
		var weekdays []int32
		if err := rows.Scan(&bs.ID, &bs.Name, &weekdays); err != nil {
			return nil, fmt.Errorf("failed to scan base schedule: %w", err)
		}
		for _, w := range weekdays {
			bs.Weekdays = append(bs.Weekdays, time.Weekday(w))
		}
		entries, err := d.baseScheduleEntries(ctx, bs.ID)
		if err != nil {
			return nil, err
		}
		bs.Entries = entries
		out = append(out, bs)
	}
	return out, rows.Err()
}

func (d *DB) baseScheduleEntries(ctx context.Context, baseScheduleID string) ([]model.ScheduleEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, client_id, therapist_id, weekday, start_min, end_min, kind
		FROM base_schedule_entries WHERE base_schedule_id = $1
	`, baseScheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query base schedule entries: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		var clientID *string
		var weekday int32
		if err := rows.Scan(&e.ID, &clientID, &e.TherapistID, &weekday, &e.StartMin, &e.EndMin, &e.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan base schedule entry: %w", err)
		}
		if clientID != nil {
			e.ClientID = *clientID
		}
		e.Weekday = time.Weekday(weekday)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *DB) settings(ctx context.Context) (map[string]string, error) {
	rows, err := d.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out[key] = string(value)
	}
	return out, rows.Err()
}
