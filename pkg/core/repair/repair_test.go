package repair

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

func testDate() time.Time { return time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC) } // Thursday

func newPipeline(k *kernel.Kernel, c model.Constants) *Pipeline {
	return &Pipeline{
		Kernel:    k,
		Constants: c,
		Date:      testDate(),
		RNG:       rand.New(rand.NewSource(1)),
	}
}

func TestCleanupMergeCombinesAdjacentSameClientABA(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, []model.Therapist{{ID: "t1"}}, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", TherapistID: "t1", ClientID: "c1", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA},
		{ID: "b", TherapistID: "t1", ClientID: "c1", StartMin: c.OPStartMin + 60, EndMin: c.OPStartMin + 120, Kind: model.KindABA},
	}

	merged := p.CleanupMerge(entries)
	assert.Len(t, merged, 1)
	assert.Equal(t, c.OPStartMin, merged[0].StartMin)
	assert.Equal(t, c.OPStartMin+120, merged[0].EndMin)
}

func TestCleanupMergeRefusesOverMaxDuration(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, []model.Therapist{{ID: "t1"}}, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", TherapistID: "t1", ClientID: "c1", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 120, Kind: model.KindABA},
		{ID: "b", TherapistID: "t1", ClientID: "c1", StartMin: c.OPStartMin + 120, EndMin: c.OPStartMin + 240, Kind: model.KindABA},
	}

	merged := p.CleanupMerge(entries)
	assert.Len(t, merged, 2)
}

func TestDurationClampExtendsShortABA(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, nil, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 15, Kind: model.KindABA},
	}
	out := p.durationClamp(entries)
	assert.Equal(t, c.ABAMinDuration, out[0].Duration())
}

func TestDurationClampTruncatesLongABA(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, nil, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 300, Kind: model.KindABA},
	}
	out := p.durationClamp(entries)
	assert.Equal(t, c.ABAMaxDuration, out[0].Duration())
}

func TestCredentialSwapFixesMismatch(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1", InsuranceRequirements: []model.QualificationTag{model.MDMedicaidTag}}}
	therapists := []model.Therapist{
		{ID: "unqualified"},
		{ID: "qualified", Qualifications: []model.QualificationTag{model.MDMedicaidTag}},
	}
	k := kernel.New(clients, therapists, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", ClientID: "c1", TherapistID: "unqualified", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA},
	}
	out := p.credentialSwap(entries)
	assert.False(t, k.CredentialMismatch(out[0]))
}

func TestMedicaidCapDropsOrSwapsExcessTherapists(t *testing.T) {
	c := model.DefaultConstants()
	c.MedicaidCap = 1
	clients := []model.Client{{ID: "c1", InsuranceRequirements: []model.QualificationTag{model.MDMedicaidTag}}}
	therapists := []model.Therapist{{ID: "t1"}, {ID: "t2"}}
	k := kernel.New(clients, therapists, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", ClientID: "c1", TherapistID: "t1", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA},
		{ID: "b", ClientID: "c1", TherapistID: "t2", StartMin: c.OPStartMin + 120, EndMin: c.OPStartMin + 180, Kind: model.KindABA},
	}
	out := p.medicaidCap(entries)

	seen := map[string]bool{}
	for _, e := range out {
		if e.ClientID == "c1" {
			seen[e.TherapistID] = true
		}
	}
	assert.LessOrEqual(t, len(seen), c.MedicaidCap)
}

func TestBackToBackShiftSeparatesTouchingEntries(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, []model.Therapist{{ID: "t1"}}, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", TherapistID: "t1", ClientID: "c1", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA},
		{ID: "b", TherapistID: "t1", ClientID: "c1", StartMin: c.OPStartMin + 60, EndMin: c.OPStartMin + 120, Kind: model.KindABA},
	}
	out := p.backToBackShift(entries)
	for _, e := range out {
		if e.ID == "a" || e.ID == "b" {
			for _, other := range out {
				if other.ID != e.ID && other.TherapistID == e.TherapistID {
					assert.False(t, e.EndMin == other.StartMin && e.ClientID == other.ClientID)
				}
			}
		}
	}
}

func TestRunProducesNoHardViolationsForFeasibleInput(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	therapists := []model.Therapist{{ID: "t1"}}
	k := kernel.New(clients, therapists, nil, c)
	p := newPipeline(k, c)

	entries := []model.ScheduleEntry{
		{ID: "a", ClientID: "c1", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA},
	}
	out := p.Run(entries)
	for _, e := range out {
		ok, violations := k.CanAdd(e, out, testDate(), e.ID)
		for _, v := range violations {
			assert.NotEqual(t, kernel.Hard, v.Severity, "unexpected hard violation: %+v", v)
		}
		_ = ok
	}
}
