// Package mutation implements the §4.7 mutation operators: slide and
// resize, applied per-individual at a fixed rate.
package mutation

import (
	"math/rand"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

// IndividualRate is the probability an individual is mutated at all.
const IndividualRate = 0.95

// EntryRate is the approximate fraction of entries perturbed within a
// mutated individual.
const EntryRate = 0.10

// Mutate returns a copy of entries with each entry independently perturbed
// with probability EntryRate, iff the individual itself is selected for
// mutation at IndividualRate.
func Mutate(k *kernel.Kernel, entries []model.ScheduleEntry, date time.Time, constants model.Constants, rng *rand.Rand) []model.ScheduleEntry {
	if rng.Float64() >= IndividualRate {
		out := make([]model.ScheduleEntry, len(entries))
		copy(out, entries)
		return out
	}

	out := make([]model.ScheduleEntry, len(entries))
	copy(out, entries)

	for i := range out {
		if rng.Float64() >= EntryRate {
			continue
		}
		if out[i].Kind == model.KindIndirect {
			continue
		}
		if rng.Intn(2) == 0 {
			out[i] = slide(k, out, out[i], date, constants, rng)
		} else if out[i].Kind == model.KindABA {
			out[i] = resize(k, out, out[i], date, constants, rng)
		}
	}
	return out
}

func slide(k *kernel.Kernel, schedule []model.ScheduleEntry, e model.ScheduleEntry, date time.Time, constants model.Constants, rng *rand.Rand) model.ScheduleEntry {
	delta := constants.SlotMinutes
	if rng.Intn(2) == 0 {
		delta = -delta
	}
	candidate := e
	candidate.StartMin += delta
	candidate.EndMin += delta
	if ok, _ := k.CanAdd(candidate, schedule, date, e.ID); !ok {
		return e
	}
	return candidate
}

func resize(k *kernel.Kernel, schedule []model.ScheduleEntry, e model.ScheduleEntry, date time.Time, constants model.Constants, rng *rand.Rand) model.ScheduleEntry {
	delta := constants.SlotMinutes
	if rng.Intn(2) == 0 {
		delta = -delta
	}
	candidate := e
	candidate.EndMin += delta
	if candidate.Duration() < constants.ABAMinDuration || candidate.Duration() > constants.ABAMaxDuration {
		return e
	}
	if ok, _ := k.CanAdd(candidate, schedule, date, e.ID); !ok {
		return e
	}
	return candidate
}
