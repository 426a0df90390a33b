// Package seeder implements the §4.6 constructive seeder: a
// priority-sorted task list greedily placed into a feasible-leaning
// starting schedule.
package seeder

import (
	"math/rand"
	"sort"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/availability"
	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/core/timeslot"
	"github.com/google/uuid"
)

// Options configures one seeding pass.
type Options struct {
	Clients          []model.Client
	Therapists       []model.Therapist
	Callouts         []model.Callout
	BaseSchedule     *model.BaseSchedule
	LunchPreferences map[string]model.LunchPreference
	Constants        model.Constants
	Date             time.Time
	RNG              *rand.Rand
}

type task struct {
	clientID     string
	kind         model.EntryKind
	priority     int
	minDuration  int
	maxDuration  int
	prefStartMin *int
	prefEndMin   *int
}

// Seed produces one feasible-leaning schedule for the weekday implied by
// opts.Date.
func Seed(k *kernel.Kernel, opts Options) []model.ScheduleEntry {
	grid := timeslot.NewGrid(opts.Constants)
	tracker := availability.New(grid)

	var entries []model.ScheduleEntry
	weekday := opts.Date.Weekday()

	// Step 1: graft in base-schedule entries for this weekday that don't
	// overlap a callout.
	if opts.BaseSchedule != nil && containsWeekday(opts.BaseSchedule.Weekdays, weekday) {
		for _, be := range opts.BaseSchedule.Entries {
			if be.Weekday != weekday {
				continue
			}
			e := be
			e.ID = uuid.NewString()
			if kernel.CalloutConflict(e, opts.Callouts, opts.Date) {
				continue
			}
			entries = append(entries, e)
			tracker.Book(e.TherapistID, e.ClientID, e.StartMin, e.EndMin)
		}
	}
	tracker.Rebuild(entries, opts.Callouts, opts.Date)

	if weekday != time.Saturday && weekday != time.Sunday {
		tasks := buildTaskList(opts.Clients, opts.Therapists)
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].priority > tasks[j].priority })

		for _, tk := range tasks {
			entries = placeTask(k, tracker, opts, tk, entries)
		}
	}

	entries = placeLunches(k, tracker, opts, entries)

	return entries
}

func containsWeekday(ws []time.Weekday, d time.Weekday) bool {
	for _, w := range ws {
		if w == d {
			return true
		}
	}
	return false
}

func buildTaskList(clients []model.Client, therapists []model.Therapist) []task {
	var tasks []task
	for i := range clients {
		c := &clients[i]
		for _, need := range c.AlliedHealthNeeds {
			qualified := countQualified(c, need.Kind, therapists)
			kind := model.KindAHOT
			if need.Kind == model.AHSLP {
				kind = model.KindAHSLP
			}
			tasks = append(tasks, task{
				clientID:     c.ID,
				kind:         kind,
				priority:     1000 - 10*qualified + need.DurationMinutes,
				minDuration:  need.DurationMinutes,
				maxDuration:  need.DurationMinutes,
				prefStartMin: need.PreferredStartMin,
				prefEndMin:   need.PreferredEndMin,
			})
		}
		qualified := countQualifiedABA(c, therapists)
		tasks = append(tasks, task{
			clientID:    c.ID,
			kind:        model.KindABA,
			priority:    500 - 10*qualified + 180,
			minDuration: 60,
			maxDuration: 180,
		})
	}
	return tasks
}

func countQualified(c *model.Client, kind model.AHKind, therapists []model.Therapist) int {
	n := 0
	for i := range therapists {
		t := &therapists[i]
		if t.AHCapable[kind] && t.MeetsRequirements(c) {
			n++
		}
	}
	return n
}

func countQualifiedABA(c *model.Client, therapists []model.Therapist) int {
	n := 0
	for i := range therapists {
		if therapists[i].MeetsRequirements(c) {
			n++
		}
	}
	return n
}

func placeTask(k *kernel.Kernel, tracker *availability.Tracker, opts Options, tk task, entries []model.ScheduleEntry) []model.ScheduleEntry {
	eligible := eligibleTherapists(k, tk)
	opts.RNG.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })

	windowStart, windowEnd := opts.Constants.OPStartMin, opts.Constants.OPEndMin
	if tk.prefStartMin != nil {
		windowStart = *tk.prefStartMin
	}
	if tk.prefEndMin != nil {
		windowEnd = *tk.prefEndMin
	}

	grid := timeslot.NewGrid(opts.Constants)
	for _, therapistID := range eligible {
		for slot := grid.SlotOf(windowStart); grid.MinuteOf(slot)+tk.minDuration <= windowEnd && grid.MinuteOf(slot)+tk.minDuration <= opts.Constants.OPEndMin; slot++ {
			start := grid.MinuteOf(slot)
			end := start + tk.minDuration
			if !tracker.Available(therapistID, tk.clientID, start, end, "") {
				continue
			}
			// extend greedily up to the maximum while both remain free
			for end-start < tk.maxDuration {
				nextEnd := end + opts.Constants.SlotMinutes
				if nextEnd > opts.Constants.OPEndMin || nextEnd > windowEnd {
					break
				}
				if !tracker.Available(therapistID, tk.clientID, end, nextEnd, "") {
					break
				}
				end = nextEnd
			}

			entry := model.ScheduleEntry{
				ID:          uuid.NewString(),
				ClientID:    tk.clientID,
				TherapistID: therapistID,
				Weekday:     opts.Date.Weekday(),
				StartMin:    start,
				EndMin:      end,
				Kind:        tk.kind,
			}

			if softTeamAffinityReject(k, entry, opts.RNG) {
				continue
			}

			if ok, _ := k.CanAdd(entry, entries, opts.Date, ""); !ok {
				continue
			}

			entries = append(entries, entry)
			tracker.Book(entry.TherapistID, entry.ClientID, entry.StartMin, entry.EndMin)
			return entries
		}
	}
	return entries
}

func eligibleTherapists(k *kernel.Kernel, tk task) []string {
	var out []string
	c, ok := k.Clients[tk.clientID]
	if !ok {
		return nil
	}
	for id, t := range k.Therapists {
		if !t.MeetsRequirements(c) {
			continue
		}
		switch tk.kind {
		case model.KindAHOT:
			if !t.AHCapable[model.AHOT] {
				continue
			}
		case model.KindAHSLP:
			if !t.AHCapable[model.AHSLP] {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// softTeamAffinityReject rejects cross-team placements with probability 0.7.
func softTeamAffinityReject(k *kernel.Kernel, e model.ScheduleEntry, rng *rand.Rand) bool {
	if e.ClientID == "" {
		return false
	}
	c, cok := k.Clients[e.ClientID]
	t, tok := k.Therapists[e.TherapistID]
	if !cok || !tok || c.TeamID == "" || t.TeamID == "" {
		return false
	}
	if c.TeamID == t.TeamID {
		return false
	}
	return rng.Float64() < 0.7
}

func placeLunches(k *kernel.Kernel, tracker *availability.Tracker, opts Options, entries []model.ScheduleEntry) []model.ScheduleEntry {
	billable := map[string]int{}
	for _, e := range entries {
		if e.HasClient() && e.Kind != model.KindIndirect {
			billable[e.TherapistID] += e.Duration()
		}
	}
	grid := timeslot.NewGrid(opts.Constants)
	for id, mins := range billable {
		if mins < 300 {
			continue
		}
		placed := false
		if pref, ok := opts.LunchPreferences[id]; ok {
			if tracker.Available(id, "", pref.StartMin, pref.StartMin+opts.Constants.LunchDuration, "") {
				entries = append(entries, newLunch(id, opts, pref.StartMin))
				tracker.Book(id, "", pref.StartMin, pref.StartMin+opts.Constants.LunchDuration)
				placed = true
			}
		}
		if placed {
			continue
		}
		latestStart := opts.Constants.LunchEndMin - opts.Constants.LunchDuration
		for start := opts.Constants.LunchStartMin; start <= latestStart; start += grid.SlotMinutes {
			if tracker.Available(id, "", start, start+opts.Constants.LunchDuration, "") {
				entries = append(entries, newLunch(id, opts, start))
				tracker.Book(id, "", start, start+opts.Constants.LunchDuration)
				break
			}
		}
	}
	return entries
}

func newLunch(therapistID string, opts Options, start int) model.ScheduleEntry {
	return model.ScheduleEntry{
		ID:          uuid.NewString(),
		TherapistID: therapistID,
		Weekday:     opts.Date.Weekday(),
		StartMin:    start,
		EndMin:      start + opts.Constants.LunchDuration,
		Kind:        model.KindIndirect,
	}
}
