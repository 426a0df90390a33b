package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleSeniorTo(t *testing.T) {
	assert.True(t, RoleBCBA.SeniorTo(RoleRBT))
	assert.False(t, RoleRBT.SeniorTo(RoleBCBA))
	assert.False(t, RoleBCBA.SeniorTo(RoleBCBA))
}

func TestRoleIsValid(t *testing.T) {
	assert.True(t, RoleBCBA.IsValid())
	assert.False(t, Role("Nonsense").IsValid())
}

func TestClientHasTag(t *testing.T) {
	c := Client{InsuranceRequirements: []QualificationTag{MDMedicaidTag}}
	assert.True(t, c.HasTag(MDMedicaidTag))
	assert.False(t, c.HasTag(QualificationTag("OTHER")))
}

func TestTherapistMeetsRequirements(t *testing.T) {
	th := Therapist{Qualifications: []QualificationTag{"BCBA", MDMedicaidTag}}
	c := Client{InsuranceRequirements: []QualificationTag{MDMedicaidTag}}
	assert.True(t, th.MeetsRequirements(&c))

	c2 := Client{InsuranceRequirements: []QualificationTag{"OT Certified"}}
	assert.False(t, th.MeetsRequirements(&c2))
}

func TestCalloutCoversDate(t *testing.T) {
	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	co := Callout{DateStart: start, DateEnd: end}

	assert.True(t, co.CoversDate(time.Date(2026, 8, 4, 9, 0, 0, 0, time.UTC)))
	assert.True(t, co.CoversDate(start))
	assert.True(t, co.CoversDate(end))
	assert.False(t, co.CoversDate(time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)))
	assert.False(t, co.CoversDate(time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)))
}

func TestScheduleEntryOverlaps(t *testing.T) {
	e := ScheduleEntry{StartMin: 60, EndMin: 120}
	assert.True(t, e.Overlaps(90, 150))
	assert.True(t, e.Overlaps(0, 61))
	assert.False(t, e.Overlaps(120, 180))
	assert.False(t, e.Overlaps(0, 60))
}

func TestScheduleEntryDurationAndHasClient(t *testing.T) {
	e := ScheduleEntry{StartMin: 60, EndMin: 150, ClientID: "c1"}
	assert.Equal(t, 90, e.Duration())
	assert.True(t, e.HasClient())

	lunch := ScheduleEntry{StartMin: 60, EndMin: 90}
	assert.False(t, lunch.HasClient())
}

func TestDefaultConstantsNumSlots(t *testing.T) {
	c := DefaultConstants()
	require.Equal(t, 15, c.SlotMinutes)
	assert.Equal(t, (c.OPEndMin-c.OPStartMin)/c.SlotMinutes, c.NumSlots())
	assert.Equal(t, 36, c.NumSlots())
}
