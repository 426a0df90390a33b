// Package validator implements the §4.3 full-schedule validator and the
// §4.4 coverage-gap computation.
package validator

import (
	"fmt"
	"sort"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/core/timeslot"
)

// Gap is one uncovered 15-minute-aligned interval for a client.
type Gap struct {
	ClientID string
	StartMin int
	EndMin   int
}

// Validate runs the kernel on every entry, then the aggregate checks, and
// returns a deduplicated list of tagged violations.
func Validate(k *kernel.Kernel, schedule []model.ScheduleEntry, date time.Time) []kernel.Violation {
	var out []kernel.Violation
	seen := make(map[string]bool)
	add := func(v kernel.Violation) {
		key := v.RuleID + "|" + v.EntryID + "|" + v.Detail
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, v)
	}

	for _, e := range schedule {
		_, violations := k.CanAdd(e, schedule, date, e.ID)
		for _, v := range violations {
			add(v)
		}
	}

	add2 := func(vs []kernel.Violation) {
		for _, v := range vs {
			add(v)
		}
	}

	add2(medicaidCapViolations(k, schedule))
	add2(lunchViolations(k, schedule))
	add2(weekendABAViolations(schedule, date))
	add2(bcbaNoDirectTimeViolations(k, schedule))
	add2(overloadedTherapistViolations(k, schedule))
	add2(teamAlignmentMismatchViolations(k, schedule))
	add2(coverageGapViolations(k, schedule, date))

	return out
}

func medicaidCapViolations(k *kernel.Kernel, schedule []model.ScheduleEntry) []kernel.Violation {
	var out []kernel.Violation
	byClient := map[string]map[string]bool{}
	for _, e := range schedule {
		if e.ClientID == "" {
			continue
		}
		c, ok := k.Clients[e.ClientID]
		if !ok || !c.HasTag(model.MDMedicaidTag) {
			continue
		}
		set := byClient[e.ClientID]
		if set == nil {
			set = make(map[string]bool)
			byClient[e.ClientID] = set
		}
		set[e.TherapistID] = true
	}
	for clientID, set := range byClient {
		if len(set) > k.Constants.MedicaidCap {
			out = append(out, kernel.Violation{
				RuleID:   "MEDICAID_CAP_VIOLATED",
				Message:  fmt.Sprintf("client %s seen by %d distinct therapists, cap is %d", clientID, len(set), k.Constants.MedicaidCap),
				Severity: kernel.Hard,
			})
		}
	}
	return out
}

func lunchViolations(k *kernel.Kernel, schedule []model.ScheduleEntry) []kernel.Violation {
	var out []kernel.Violation
	billableMinutes := map[string]int{}
	lunches := map[string][]model.ScheduleEntry{}
	for _, e := range schedule {
		if e.Kind == model.KindIndirect {
			lunches[e.TherapistID] = append(lunches[e.TherapistID], e)
			continue
		}
		if e.Kind == model.KindAdminTime {
			continue
		}
		billableMinutes[e.TherapistID] += e.Duration()
	}
	for therapistID, mins := range billableMinutes {
		if mins <= 0 {
			continue
		}
		ls := lunches[therapistID]
		switch len(ls) {
		case 0:
			out = append(out, kernel.Violation{RuleID: "MISSING_LUNCH", Message: fmt.Sprintf("therapist %s has billable work and no lunch", therapistID), Severity: kernel.Hard})
		case 1:
			l := ls[0]
			if l.StartMin < k.Constants.LunchStartMin || l.StartMin > k.Constants.LunchEndMin-k.Constants.LunchDuration {
				out = append(out, kernel.Violation{RuleID: "LUNCH_OUTSIDE_WINDOW", Message: fmt.Sprintf("therapist %s lunch starts at %s, outside window", therapistID, timeslot.FormatHHMM(l.StartMin)), Severity: kernel.Soft, EntryID: l.ID})
			}
		default:
			out = append(out, kernel.Violation{RuleID: "MULTIPLE_LUNCHES", Message: fmt.Sprintf("therapist %s has %d lunch entries", therapistID, len(ls)), Severity: kernel.Hard})
		}
	}
	return out
}

func weekendABAViolations(schedule []model.ScheduleEntry, date time.Time) []kernel.Violation {
	var out []kernel.Violation
	if date.Weekday() != time.Saturday && date.Weekday() != time.Sunday {
		return out
	}
	for _, e := range schedule {
		if e.Kind == model.KindABA {
			out = append(out, kernel.Violation{RuleID: "ABA_ON_WEEKEND", Message: "ABA entry scheduled on a weekend", Severity: kernel.Hard, EntryID: e.ID})
		}
	}
	return out
}

func bcbaNoDirectTimeViolations(k *kernel.Kernel, schedule []model.ScheduleEntry) []kernel.Violation {
	var out []kernel.Violation
	hasDirect := map[string]bool{}
	for _, e := range schedule {
		if e.HasClient() {
			hasDirect[e.TherapistID] = true
		}
	}
	for id, t := range k.Therapists {
		if t.Role != model.RoleBCBA {
			continue
		}
		appears := false
		for _, e := range schedule {
			if e.TherapistID == id {
				appears = true
				break
			}
		}
		if appears && !hasDirect[id] {
			out = append(out, kernel.Violation{RuleID: "BCBA_NO_DIRECT_TIME", Message: fmt.Sprintf("BCBA %s has no client-facing entries", id), Severity: kernel.Soft})
		}
	}
	return out
}

func overloadedTherapistViolations(k *kernel.Kernel, schedule []model.ScheduleEntry) []kernel.Violation {
	var out []kernel.Violation
	billable := map[string]int{}
	for _, e := range schedule {
		if e.HasClient() && e.Kind != model.KindIndirect {
			billable[e.TherapistID]++
		}
	}
	for id, count := range billable {
		if count > 4 {
			out = append(out, kernel.Violation{RuleID: "THERAPIST_OVERLOADED", Message: fmt.Sprintf("therapist %s has %d billable sessions", id, count), Severity: kernel.Soft})
		}
	}
	return out
}

// teamAlignmentMismatchViolations flags every entry whose client's team
// differs from its therapist's team, mirroring the condition repair's
// teamRealign step corrects.
func teamAlignmentMismatchViolations(k *kernel.Kernel, schedule []model.ScheduleEntry) []kernel.Violation {
	var out []kernel.Violation
	for _, e := range schedule {
		if e.ClientID == "" {
			continue
		}
		c, cok := k.Clients[e.ClientID]
		t, tok := k.Therapists[e.TherapistID]
		if !cok || !tok || c.TeamID == "" || c.TeamID == t.TeamID {
			continue
		}
		out = append(out, kernel.Violation{
			RuleID:   "TEAM_ALIGNMENT_MISMATCH",
			Message:  fmt.Sprintf("client %s (team %s) scheduled with therapist %s (team %s)", e.ClientID, c.TeamID, e.TherapistID, t.TeamID),
			Severity: kernel.Soft,
			EntryID:  e.ID,
		})
	}
	return out
}

// Gaps computes the §4.4 coverage-gap scan for every client on date's
// weekday. On weekends it returns nothing (ABA coverage does not apply).
func Gaps(k *kernel.Kernel, schedule []model.ScheduleEntry, date time.Time) []Gap {
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return nil
	}
	grid := timeslot.NewGrid(k.Constants)
	var gaps []Gap
	for clientID, c := range k.Clients {
		covered := make([]bool, grid.NumSlots())
		for _, co := range k.Callouts {
			if co.EntityKind != model.CalloutClient || co.EntityID != clientID || !co.CoversDate(date) {
				continue
			}
			markCovered(covered, grid, co.WindowStart, co.WindowEnd)
		}
		for _, e := range schedule {
			if e.ClientID != clientID {
				continue
			}
			if e.Kind == model.KindABA || e.Kind == model.KindAHOT || e.Kind == model.KindAHSLP {
				markCovered(covered, grid, e.StartMin, e.EndMin)
			}
		}
		_ = c
		gaps = append(gaps, gapsFromCoverage(clientID, covered, grid)...)
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].ClientID != gaps[j].ClientID {
			return gaps[i].ClientID < gaps[j].ClientID
		}
		return gaps[i].StartMin < gaps[j].StartMin
	})
	return gaps
}

func markCovered(covered []bool, grid timeslot.Grid, a, b int) {
	s := grid.SlotOf(a)
	e := grid.SlotOf(b)
	for i := s; i < e && i < len(covered); i++ {
		covered[i] = true
	}
}

func gapsFromCoverage(clientID string, covered []bool, grid timeslot.Grid) []Gap {
	var gaps []Gap
	i := 0
	for i < len(covered) {
		if covered[i] {
			i++
			continue
		}
		start := i
		for i < len(covered) && !covered[i] {
			i++
		}
		gaps = append(gaps, Gap{
			ClientID: clientID,
			StartMin: grid.MinuteOf(start),
			EndMin:   grid.MinuteOf(i),
		})
	}
	return gaps
}

func coverageGapViolations(k *kernel.Kernel, schedule []model.ScheduleEntry, date time.Time) []kernel.Violation {
	var out []kernel.Violation
	for _, g := range Gaps(k, schedule, date) {
		out = append(out, kernel.Violation{
			RuleID:   "COVERAGE_GAP",
			Message:  fmt.Sprintf("client %s uncovered %s-%s", g.ClientID, timeslot.FormatHHMM(g.StartMin), timeslot.FormatHHMM(g.EndMin)),
			Severity: kernel.Soft,
		})
	}
	return out
}
