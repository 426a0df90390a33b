// Package crossover implements the §4.8 therapist-partition crossover with
// conflict-dropping reinsert.
package crossover

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/jakechorley/ilford-drop-in/pkg/core/availability"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/core/timeslot"
)

// Rate is the probability crossover is applied; otherwise the offspring is
// a clone of one parent.
const Rate = 0.7

// Cross partitions therapists into two disjoint halves and merges
// parent1's entries for H1 with parent2's entries for H2, replaying them
// in (BCBA-first, then ascending start) order into a fresh availability
// tracker, dropping any entry whose therapist or client slot is already
// booked.
func Cross(parent1, parent2 []model.ScheduleEntry, therapists []model.Therapist, constants model.Constants, rng *rand.Rand) []model.ScheduleEntry {
	if rng.Float64() >= Rate {
		clone := make([]model.ScheduleEntry, len(parent1))
		copy(clone, parent1)
		return clone
	}

	h1 := make(map[string]bool)
	ids := make([]string, len(therapists))
	for i, t := range therapists {
		ids[i] = t.ID
	}
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	for i, id := range ids {
		if i < len(ids)/2 {
			h1[id] = true
		}
	}
	roleOf := make(map[string]model.Role, len(therapists))
	for _, t := range therapists {
		roleOf[t.ID] = t.Role
	}

	var pooled []model.ScheduleEntry
	for _, e := range parent1 {
		if h1[e.TherapistID] {
			c := e
			c.ID = uuid.NewString()
			pooled = append(pooled, c)
		}
	}
	for _, e := range parent2 {
		if !h1[e.TherapistID] {
			c := e
			c.ID = uuid.NewString()
			pooled = append(pooled, c)
		}
	}

	sort.SliceStable(pooled, func(i, j int) bool {
		iBCBA := roleOf[pooled[i].TherapistID] == model.RoleBCBA
		jBCBA := roleOf[pooled[j].TherapistID] == model.RoleBCBA
		if iBCBA != jBCBA {
			return iBCBA
		}
		return pooled[i].StartMin < pooled[j].StartMin
	})

	grid := timeslot.NewGrid(constants)
	tracker := availability.New(grid)
	var offspring []model.ScheduleEntry
	for _, e := range pooled {
		if !tracker.Available(e.TherapistID, e.ClientID, e.StartMin, e.EndMin, "") {
			continue
		}
		tracker.Book(e.TherapistID, e.ClientID, e.StartMin, e.EndMin)
		offspring = append(offspring, e)
	}
	return offspring
}
