package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

func testDate() time.Time { return time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC) }

func TestTherapistConflict(t *testing.T) {
	existing := model.ScheduleEntry{ID: "e1", TherapistID: "th1", Weekday: time.Thursday, StartMin: 60, EndMin: 120}
	overlapping := model.ScheduleEntry{ID: "e2", TherapistID: "th1", Weekday: time.Thursday, StartMin: 90, EndMin: 150}
	assert.True(t, TherapistConflict(overlapping, []model.ScheduleEntry{existing}))

	nonOverlapping := model.ScheduleEntry{ID: "e3", TherapistID: "th1", Weekday: time.Thursday, StartMin: 120, EndMin: 180}
	assert.False(t, TherapistConflict(nonOverlapping, []model.ScheduleEntry{existing}))
}

func TestClientConflictIgnoresEmptyClient(t *testing.T) {
	existing := model.ScheduleEntry{ID: "e1", ClientID: "", Weekday: time.Thursday, StartMin: 60, EndMin: 120}
	lunch := model.ScheduleEntry{ID: "e2", ClientID: "", Weekday: time.Thursday, StartMin: 90, EndMin: 150}
	assert.False(t, ClientConflict(lunch, []model.ScheduleEntry{existing}))
}

func TestCalloutConflict(t *testing.T) {
	date := testDate()
	co := model.Callout{
		EntityKind: model.CalloutTherapist, EntityID: "th1",
		DateStart: date, DateEnd: date,
		WindowStart: 9 * 60, WindowEnd: 12 * 60,
	}
	e := model.ScheduleEntry{TherapistID: "th1", StartMin: 10 * 60, EndMin: 11 * 60}
	assert.True(t, CalloutConflict(e, []model.Callout{co}, date))

	outside := model.ScheduleEntry{TherapistID: "th1", StartMin: 13 * 60, EndMin: 14 * 60}
	assert.False(t, CalloutConflict(outside, []model.Callout{co}, date))
}

func TestCredentialMismatch(t *testing.T) {
	clients := []model.Client{{ID: "c1", InsuranceRequirements: []model.QualificationTag{model.MDMedicaidTag}}}
	therapists := []model.Therapist{{ID: "t1", Qualifications: []model.QualificationTag{model.MDMedicaidTag}}, {ID: "t2"}}
	k := New(clients, therapists, nil, model.DefaultConstants())

	assert.False(t, k.CredentialMismatch(model.ScheduleEntry{ClientID: "c1", TherapistID: "t1"}))
	assert.True(t, k.CredentialMismatch(model.ScheduleEntry{ClientID: "c1", TherapistID: "t2"}))
	assert.False(t, k.CredentialMismatch(model.ScheduleEntry{ClientID: ""}))
}

func TestAHQualificationMissing(t *testing.T) {
	therapists := []model.Therapist{
		{ID: "ot1", AHCapable: map[model.AHKind]bool{model.AHOT: true}, Qualifications: []model.QualificationTag{"OT Certified"}},
		{ID: "rbt1"},
	}
	k := New(nil, therapists, nil, model.DefaultConstants())

	assert.False(t, k.AHQualificationMissing(model.ScheduleEntry{Kind: model.KindAHOT, TherapistID: "ot1"}))
	assert.True(t, k.AHQualificationMissing(model.ScheduleEntry{Kind: model.KindAHOT, TherapistID: "rbt1"}))
	assert.False(t, k.AHQualificationMissing(model.ScheduleEntry{Kind: model.KindABA, TherapistID: "rbt1"}))
}

func TestDurationInvalidABA(t *testing.T) {
	k := New(nil, nil, nil, model.DefaultConstants())
	assert.False(t, k.DurationInvalid(model.ScheduleEntry{Kind: model.KindABA, StartMin: 0, EndMin: 60}))
	assert.True(t, k.DurationInvalid(model.ScheduleEntry{Kind: model.KindABA, StartMin: 0, EndMin: 30}))
	assert.True(t, k.DurationInvalid(model.ScheduleEntry{Kind: model.KindABA, StartMin: 0, EndMin: 200}))
}

func TestDurationInvalidLunch(t *testing.T) {
	k := New(nil, nil, nil, model.DefaultConstants())
	assert.False(t, k.DurationInvalid(model.ScheduleEntry{Kind: model.KindIndirect, StartMin: 0, EndMin: 30}))
	assert.True(t, k.DurationInvalid(model.ScheduleEntry{Kind: model.KindIndirect, StartMin: 0, EndMin: 45}))
}

func TestOutsideOperatingHours(t *testing.T) {
	c := model.DefaultConstants()
	k := New(nil, nil, nil, c)

	inWindow := model.ScheduleEntry{Kind: model.KindABA, StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60}
	assert.False(t, k.OutsideOperatingHours(inWindow))

	beforeOpen := model.ScheduleEntry{Kind: model.KindABA, StartMin: c.OPStartMin - 60, EndMin: c.OPStartMin}
	assert.True(t, k.OutsideOperatingHours(beforeOpen))

	offGrid := model.ScheduleEntry{Kind: model.KindABA, StartMin: c.OPStartMin + 7, EndMin: c.OPStartMin + 67}
	assert.True(t, k.OutsideOperatingHours(offGrid))

	lunch := model.ScheduleEntry{Kind: model.KindIndirect, StartMin: c.OPStartMin + 7, EndMin: c.OPStartMin + 37}
	assert.False(t, k.OutsideOperatingHours(lunch))
}

func TestSameClientBackToBack(t *testing.T) {
	existing := model.ScheduleEntry{ID: "e1", TherapistID: "t1", ClientID: "c1", Weekday: time.Thursday, StartMin: 60, EndMin: 120}
	touching := model.ScheduleEntry{ID: "e2", TherapistID: "t1", ClientID: "c1", Weekday: time.Thursday, StartMin: 120, EndMin: 180}
	assert.True(t, SameClientBackToBack(touching, []model.ScheduleEntry{existing}))

	gapped := model.ScheduleEntry{ID: "e3", TherapistID: "t1", ClientID: "c1", Weekday: time.Thursday, StartMin: 135, EndMin: 195}
	assert.False(t, SameClientBackToBack(gapped, []model.ScheduleEntry{existing}))
}

func TestCanAddRejectsOnHardViolation(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	therapists := []model.Therapist{{ID: "t1"}}
	k := New(clients, therapists, nil, c)

	existing := model.ScheduleEntry{ID: "e1", TherapistID: "t1", ClientID: "c1", Weekday: time.Thursday, StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA}
	conflicting := model.ScheduleEntry{ID: "e2", TherapistID: "t1", ClientID: "c1", Weekday: time.Thursday, StartMin: c.OPStartMin + 30, EndMin: c.OPStartMin + 90, Kind: model.KindABA}

	ok, violations := k.CanAdd(conflicting, []model.ScheduleEntry{existing}, testDate(), "")
	require.False(t, ok)
	require.NotEmpty(t, violations)
	assert.Equal(t, Hard, violations[0].Severity)
}

func TestCanAddAllowsWhenIgnoringSelf(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	therapists := []model.Therapist{{ID: "t1"}}
	k := New(clients, therapists, nil, c)

	existing := model.ScheduleEntry{ID: "e1", TherapistID: "t1", ClientID: "c1", Weekday: time.Thursday, StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindABA}

	ok, violations := k.CanAdd(existing, []model.ScheduleEntry{existing}, testDate(), "e1")
	assert.True(t, ok)
	assert.Empty(t, violations)
}
