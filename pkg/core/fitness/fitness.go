// Package fitness implements the §4.10 weighted-sum fitness function.
package fitness

import (
	"math"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/core/validator"
)

// Report carries the scalar score plus the violation list it was computed
// from, so callers can display residual violations without re-validating.
type Report struct {
	Score      float64
	Violations []kernel.Violation
}

// Score computes the adaptive-scale weighted sum of §4.10 over schedule.
func Score(k *kernel.Kernel, schedule []model.ScheduleEntry, date time.Time, numClients, numTherapists int) Report {
	sigma := math.Max(1, math.Log2(float64(maxInt(numClients*numTherapists, 1))))
	violations := validator.Validate(k, schedule, date)

	counts := map[string]int{}
	for _, v := range violations {
		counts[v.RuleID]++
	}

	score := 0.0
	score += float64(capped(counts["THERAPIST_CONFLICT"], 5)) * 5000 * sigma
	score += float64(capped(counts["CLIENT_CONFLICT"], 5)) * 5000 * sigma
	score += float64(counts["SAME_CLIENT_BACK_TO_BACK"]) * 6000 * sigma
	score += float64(capped(counts["CREDENTIAL_MISMATCH"]+counts["AH_QUALIFICATION_MISSING"], 5)) * 4000 * sigma
	score += float64(capped(counts["CALLOUT_OVERLAP"], 5)) * 4500 * sigma
	score += float64(capped(counts["MISSING_LUNCH"], maxInt(numTherapists, 1))) * 2500 * sigma
	score += float64(counts["LUNCH_OUTSIDE_WINDOW"]) * 200 * sigma
	score += float64(lunchStaggerPairs(k, schedule)) * 800 * sigma
	score += float64(counts["DURATION_INVALID"]) * 1000 * sigma
	score += float64(counts["MEDICAID_CAP_VIOLATED"]) * 2000 * sigma
	gapCap := 2 * maxInt(numClients, 1)
	gapPenaltyUnits := capped(coverageGapSlots(k, schedule, date)/4, gapCap)
	score += float64(gapPenaltyUnits) * 2000 * sigma * (float64(maxInt(numClients, 1)) / 10.0)
	score += float64(counts["THERAPIST_OVERLOADED"]) * 100 * sigma
	score += float64(counts["TEAM_ALIGNMENT_MISMATCH"]) * 100 * sigma
	score += fragmentationMinutes(schedule) * 10

	return Report{Score: score, Violations: violations}
}

// coverageGapSlots sums uncovered 15-minute slots across all clients,
// rather than counting contiguous gap intervals: a single 4-hour gap
// covers 16 slots, not one violation, and the §4.10 weight table's
// (count ÷ 4) term expects a slot count.
func coverageGapSlots(k *kernel.Kernel, schedule []model.ScheduleEntry, date time.Time) int {
	slots := 0
	for _, g := range validator.Gaps(k, schedule, date) {
		slots += (g.EndMin - g.StartMin) / 15
	}
	return slots
}

func capped(n, cap int) int {
	if n > cap {
		return cap
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// fragmentationMinutes sums idle minutes between a therapist's non-lunch
// entries, excluding 30-minute holes adjacent to that therapist's lunch.
func fragmentationMinutes(schedule []model.ScheduleEntry) float64 {
	byTherapist := map[string][]model.ScheduleEntry{}
	lunchOf := map[string]model.ScheduleEntry{}
	for _, e := range schedule {
		if e.Kind == model.KindIndirect {
			lunchOf[e.TherapistID] = e
			continue
		}
		byTherapist[e.TherapistID] = append(byTherapist[e.TherapistID], e)
	}

	total := 0.0
	for therapistID, entries := range byTherapist {
		sorted := append([]model.ScheduleEntry(nil), entries...)
		sortByStart(sorted)
		lunch, hasLunch := lunchOf[therapistID]
		for i := 0; i < len(sorted)-1; i++ {
			gap := sorted[i+1].StartMin - sorted[i].EndMin
			if gap <= 0 {
				continue
			}
			if hasLunch && gap == 30 && sorted[i].EndMin <= lunch.StartMin && sorted[i+1].StartMin >= lunch.EndMin {
				continue
			}
			total += float64(gap)
		}
	}
	return total
}

// lunchStaggerPairs counts pairs of same-team therapists whose lunches
// start within 30 minutes of each other.
func lunchStaggerPairs(k *kernel.Kernel, schedule []model.ScheduleEntry) int {
	var lunches []model.ScheduleEntry
	for _, e := range schedule {
		if e.Kind == model.KindIndirect {
			lunches = append(lunches, e)
		}
	}
	pairs := 0
	for i := 0; i < len(lunches); i++ {
		ti, ok := k.Therapists[lunches[i].TherapistID]
		if !ok || ti.TeamID == "" {
			continue
		}
		for j := i + 1; j < len(lunches); j++ {
			tj, ok := k.Therapists[lunches[j].TherapistID]
			if !ok || tj.TeamID != ti.TeamID {
				continue
			}
			if absInt(lunches[i].StartMin-lunches[j].StartMin) < 30 {
				pairs++
			}
		}
	}
	return pairs
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sortByStart(entries []model.ScheduleEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].StartMin > entries[j].StartMin; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}
