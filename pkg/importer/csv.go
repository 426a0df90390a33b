// Package importer implements the CSV-bulk-import collaborator named in
// §6 as out of scope for the engine itself: parsing clients, therapists,
// and callouts from flat files and turning them into model values the
// CLI can hand to a pkg/store.Store. Recurring callouts (e.g. "every
// Monday for the next 8 weeks") are expressed as an RFC 5545 rule in an
// optional column and expanded with rrule-go.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

const dateLayout = "2006-01-02"

// defaultRecurrenceHorizon bounds how far forward an open-ended recurrence
// rule is expanded, so a malformed or unbounded rrule can't generate an
// unbounded number of callouts.
const defaultRecurrenceHorizon = 16 * 7 * 24 * time.Hour

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ImportClients parses a CSV with header:
// id,name,team_id,insurance_requirements,ah_ot_per_week,ah_slp_per_week
func ImportClients(r io.Reader) ([]model.Client, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read clients csv: %w", err)
	}

	var out []model.Client
	for i, rec := range records {
		get := rec.get
		c := model.Client{
			ID:     orUUID(get("id")),
			Name:   get("name"),
			TeamID: get("team_id"),
		}
		for _, tag := range splitList(get("insurance_requirements")) {
			c.InsuranceRequirements = append(c.InsuranceRequirements, model.QualificationTag(tag))
		}
		if n, err := atoiOrZero(get("ah_ot_per_week")); err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid ah_ot_per_week: %w", i+2, err)
		} else if n > 0 {
			c.AlliedHealthNeeds = append(c.AlliedHealthNeeds, model.AlliedHealthNeed{Kind: model.AHOT, FrequencyPerWeek: n, DurationMinutes: 30})
		}
		if n, err := atoiOrZero(get("ah_slp_per_week")); err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid ah_slp_per_week: %w", i+2, err)
		} else if n > 0 {
			c.AlliedHealthNeeds = append(c.AlliedHealthNeeds, model.AlliedHealthNeed{Kind: model.AHSLP, FrequencyPerWeek: n, DurationMinutes: 30})
		}
		if c.Name == "" {
			return nil, fmt.Errorf("importer: row %d: missing name", i+2)
		}
		out = append(out, c)
	}
	return out, nil
}

// ImportTherapists parses a CSV with header:
// id,name,team_id,role,qualifications,ah_capable
func ImportTherapists(r io.Reader) ([]model.Therapist, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read therapists csv: %w", err)
	}

	var out []model.Therapist
	for i, rec := range records {
		get := rec.get
		role := model.Role(get("role"))
		if !role.IsValid() {
			return nil, fmt.Errorf("importer: row %d: unknown role %q", i+2, get("role"))
		}
		t := model.Therapist{
			ID:     orUUID(get("id")),
			Name:   get("name"),
			TeamID: get("team_id"),
			Role:   role,
		}
		for _, tag := range splitList(get("qualifications")) {
			t.Qualifications = append(t.Qualifications, model.QualificationTag(tag))
		}
		if ahCapable := splitList(get("ah_capable")); len(ahCapable) > 0 {
			t.AHCapable = make(map[model.AHKind]bool, len(ahCapable))
			for _, kind := range ahCapable {
				t.AHCapable[model.AHKind(kind)] = true
			}
		}
		if t.Name == "" {
			return nil, fmt.Errorf("importer: row %d: missing name", i+2)
		}
		out = append(out, t)
	}
	return out, nil
}

// ImportCallouts parses a CSV with header:
// entity_kind,entity_id,date_start,date_end,window_start,window_end,reason,rrule
//
// When rrule is present, date_start/date_end bound the expansion window
// and one Callout is emitted per occurrence; otherwise a single Callout
// spanning [date_start, date_end] is emitted.
func ImportCallouts(r io.Reader) ([]model.Callout, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read callouts csv: %w", err)
	}

	var out []model.Callout
	for i, rec := range records {
		get := rec.get

		kind := model.CalloutEntityKind(get("entity_kind"))
		if kind != model.CalloutClient && kind != model.CalloutTherapist {
			return nil, fmt.Errorf("importer: row %d: unknown entity_kind %q", i+2, get("entity_kind"))
		}
		entityID := get("entity_id")
		if entityID == "" {
			return nil, fmt.Errorf("importer: row %d: missing entity_id", i+2)
		}

		dateStart, err := time.Parse(dateLayout, get("date_start"))
		if err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid date_start: %w", i+2, err)
		}
		dateEnd, err := time.Parse(dateLayout, get("date_end"))
		if err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid date_end: %w", i+2, err)
		}
		windowStart, err := atoiOrZero(get("window_start"))
		if err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid window_start: %w", i+2, err)
		}
		windowEnd, err := atoiOrZero(get("window_end"))
		if err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid window_end: %w", i+2, err)
		}
		reason := get("reason")

		rruleStr := get("rrule")
		if rruleStr == "" {
			out = append(out, model.Callout{
				ID: uuid.NewString(), EntityKind: kind, EntityID: entityID,
				DateStart: dateStart, DateEnd: dateEnd,
				WindowStart: windowStart, WindowEnd: windowEnd, Reason: reason,
			})
			continue
		}

		parsed, err := rrule.StrToRRule(rruleStr)
		if err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid rrule: %w", i+2, err)
		}
		opts := parsed.OrigOptions
		opts.Dtstart = dateStart
		rule, err := rrule.NewRRule(opts)
		if err != nil {
			return nil, fmt.Errorf("importer: row %d: invalid rrule: %w", i+2, err)
		}

		horizon := dateEnd
		if maxHorizon := dateStart.Add(defaultRecurrenceHorizon); horizon.After(maxHorizon) {
			horizon = maxHorizon
		}

		for _, occurrence := range rule.Between(dateStart, horizon, true) {
			out = append(out, model.Callout{
				ID: uuid.NewString(), EntityKind: kind, EntityID: entityID,
				DateStart: occurrence, DateEnd: occurrence,
				WindowStart: windowStart, WindowEnd: windowEnd, Reason: reason,
			})
		}
	}
	return out, nil
}

type csvRow struct {
	header []string
	values []string
}

func (r csvRow) get(column string) string {
	for i, h := range r.header {
		if h == column && i < len(r.values) {
			return strings.TrimSpace(r.values[i])
		}
	}
	return ""
}

func readCSV(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]

	out := make([]csvRow, 0, len(rows)-1)
	for _, values := range rows[1:] {
		out = append(out, csvRow{header: header, values: values})
	}
	return out, nil
}

func orUUID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
