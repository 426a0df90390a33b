package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/core/timeslot"
)

func newTestTracker() *Tracker {
	return New(timeslot.NewGrid(model.DefaultConstants()))
}

func TestBookThenUnavailable(t *testing.T) {
	tr := newTestTracker()
	tr.Book("th1", "cl1", 9*60, 10*60)

	assert.False(t, tr.Available("th1", "", 9*60+30, 10*60+30, ""))
	assert.False(t, tr.Available("th2", "cl1", 9*60+30, 10*60+30, ""))
	assert.True(t, tr.Available("th1", "", 10*60, 11*60, ""))
}

func TestAvailableIgnoresOwnEntry(t *testing.T) {
	tr := newTestTracker()
	tr.Rebuild([]model.ScheduleEntry{
		{ID: "e1", TherapistID: "th1", ClientID: "cl1", StartMin: 9 * 60, EndMin: 10 * 60},
	}, nil, time.Now())

	assert.False(t, tr.Available("th1", "cl1", 9*60, 10*60, ""))
	assert.True(t, tr.Available("th1", "cl1", 9*60, 10*60, "e1"))
}

func TestRebuildAppliesCalloutsForCoveredDate(t *testing.T) {
	tr := newTestTracker()
	date := time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC)
	callouts := []model.Callout{
		{
			ID:          "co1",
			EntityKind:  model.CalloutTherapist,
			EntityID:    "th1",
			DateStart:   date,
			DateEnd:     date,
			WindowStart: 9 * 60,
			WindowEnd:   12 * 60,
		},
	}

	tr.Rebuild(nil, callouts, date)
	assert.False(t, tr.Available("th1", "", 9*60+30, 10*60, ""))

	tr.Rebuild(nil, callouts, date.AddDate(0, 0, 1))
	assert.True(t, tr.Available("th1", "", 9*60+30, 10*60, ""))
}

func TestRebuildClearsPriorState(t *testing.T) {
	tr := newTestTracker()
	tr.Book("th1", "", 9*60, 10*60)
	require.False(t, tr.Available("th1", "", 9*60+15, 9*60+45, ""))

	tr.Rebuild(nil, nil, time.Now())
	assert.True(t, tr.Available("th1", "", 9*60+15, 9*60+45, ""))
}
