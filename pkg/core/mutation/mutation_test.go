package mutation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

func testDate() time.Time { return time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC) }

func TestMutateDoesNotChangeLength(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, []model.Therapist{{ID: "t1"}}, nil, c)
	entries := []model.ScheduleEntry{
		{ID: "e1", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin + 60, EndMin: c.OPStartMin + 120, Kind: model.KindABA},
	}

	rng := rand.New(rand.NewSource(1))
	mutated := Mutate(k, entries, testDate(), c, rng)
	assert.Len(t, mutated, len(entries))
}

func TestMutateNeverChangesLunchEntries(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, []model.Therapist{{ID: "t1"}}, nil, c)
	lunch := model.ScheduleEntry{ID: "lunch", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.LunchStartMin, EndMin: c.LunchStartMin + c.LunchDuration, Kind: model.KindIndirect}
	entries := []model.ScheduleEntry{lunch}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		mutated := Mutate(k, entries, testDate(), c, rng)
		require.Len(t, mutated, 1)
		assert.Equal(t, lunch, mutated[0])
	}
}

func TestMutateProducesOnlyValidPlacementsOrOriginal(t *testing.T) {
	c := model.DefaultConstants()
	k := kernel.New(nil, []model.Therapist{{ID: "t1"}}, nil, c)
	original := model.ScheduleEntry{ID: "e1", TherapistID: "t1", Weekday: testDate().Weekday(), StartMin: c.OPStartMin + 60, EndMin: c.OPStartMin + 120, Kind: model.KindABA}
	entries := []model.ScheduleEntry{original}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		mutated := Mutate(k, entries, testDate(), c, rng)
		e := mutated[0]
		if e == original {
			continue
		}
		ok, _ := k.CanAdd(e, mutated, testDate(), e.ID)
		assert.True(t, ok, "mutated entry %+v should be valid on its own", e)
	}
}
