package fitness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

func testDate() time.Time { return time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC) }

func TestScoreNoMissingLunchWhenLunchScheduled(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	therapists := []model.Therapist{{ID: "t1"}}
	k := kernel.New(clients, therapists, nil, c)

	schedule := []model.ScheduleEntry{
		{ID: "lunch", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.LunchStartMin, EndMin: c.LunchStartMin + c.LunchDuration, Kind: model.KindIndirect},
	}

	report := Score(k, schedule, testDate(), len(clients), len(therapists))
	assert.Empty(t, findViolation(report.Violations, "MISSING_LUNCH"))
}

func TestScorePenalizesMissingLunch(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	therapists := []model.Therapist{{ID: "t1"}}
	k := kernel.New(clients, therapists, nil, c)

	schedule := []model.ScheduleEntry{
		{ID: "e1", ClientID: "c1", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA},
	}

	withMissingLunch := Score(k, schedule, testDate(), len(clients), len(therapists))
	assert.Greater(t, withMissingLunch.Score, 0.0)
}

func TestScoreIncreasesWithMoreHardViolations(t *testing.T) {
	c := model.DefaultConstants()
	therapists := []model.Therapist{{ID: "t1"}}
	k := kernel.New(nil, therapists, nil, c)

	oneConflict := []model.ScheduleEntry{
		{ID: "e1", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindAdminTime},
		{ID: "e2", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin + 30, EndMin: c.OPStartMin + 90, Kind: model.KindAdminTime},
	}
	noConflict := []model.ScheduleEntry{
		{ID: "e1", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindAdminTime},
	}

	withConflict := Score(k, oneConflict, testDate(), 0, 1)
	withoutConflict := Score(k, noConflict, testDate(), 0, 1)
	assert.Greater(t, withConflict.Score, withoutConflict.Score)
}

func TestScorePenalizesTeamAlignmentMismatchDistinctlyFromOverload(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1", TeamID: "team-a"}}
	mismatched := []model.Therapist{{ID: "t1", TeamID: "team-b"}}
	aligned := []model.Therapist{{ID: "t1", TeamID: "team-a"}}

	schedule := []model.ScheduleEntry{
		{ID: "e1", ClientID: "c1", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA},
		{ID: "lunch", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.LunchStartMin, EndMin: c.LunchStartMin + c.LunchDuration, Kind: model.KindIndirect},
	}

	kMismatched := kernel.New(clients, mismatched, nil, c)
	kAligned := kernel.New(clients, aligned, nil, c)

	mismatchReport := Score(kMismatched, schedule, testDate(), len(clients), len(mismatched))
	alignedReport := Score(kAligned, schedule, testDate(), len(clients), len(aligned))

	assert.NotEmpty(t, findViolation(mismatchReport.Violations, "TEAM_ALIGNMENT_MISMATCH"))
	assert.Empty(t, findViolation(alignedReport.Violations, "TEAM_ALIGNMENT_MISMATCH"))
	assert.Greater(t, mismatchReport.Score, alignedReport.Score)
	assert.Empty(t, findViolation(mismatchReport.Violations, "THERAPIST_OVERLOADED"))
}

func TestCoverageGapSlotsCountsQuarterHourIntervalsNotContiguousRuns(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	k := kernel.New(clients, nil, nil, c)

	// No entries at all: the client's entire operating window is one
	// contiguous uncovered gap, but it still spans many 15-minute slots.
	slots := coverageGapSlots(k, nil, testDate())
	assert.Greater(t, slots, 4)
}

func TestScorePenalizesLargeCoverageGapNonZero(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	therapists := []model.Therapist{{ID: "t1"}}
	k := kernel.New(clients, therapists, nil, c)

	report := Score(k, nil, testDate(), len(clients), len(therapists))
	assert.NotEmpty(t, findViolation(report.Violations, "COVERAGE_GAP"))
	assert.Greater(t, report.Score, 0.0)
}

func findViolation(vs []kernel.Violation, ruleID string) []kernel.Violation {
	var out []kernel.Violation
	for _, v := range vs {
		if v.RuleID == ruleID {
			out = append(out, v)
		}
	}
	return out
}
