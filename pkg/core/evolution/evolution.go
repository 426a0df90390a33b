// Package evolution implements the §4.11 evolutionary loop — population
// init, elitist selection with diversity injection, generational
// replacement, plateau termination — and the §4.11 local-search polish.
package evolution

import (
	"math/rand"
	"sort"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/crossover"
	"github.com/jakechorley/ilford-drop-in/pkg/core/fitness"
	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/core/mutation"
	"github.com/jakechorley/ilford-drop-in/pkg/core/repair"
	"github.com/jakechorley/ilford-drop-in/pkg/core/seeder"
)

// Config holds the §4.11 tunables.
type Config struct {
	PopulationSize     int
	MaxGenerations     int
	ElitismFraction    float64
	CrossoverRate      float64
	MutationRate       float64
	PlateauGenerations int
	TournamentSize     int
	UniformPickRate    float64
	LocalSearchMaxIter int
}

// DefaultConfig returns the §4.11 defaults.
func DefaultConfig() Config {
	return Config{
		PopulationSize:     50,
		MaxGenerations:     150,
		ElitismFraction:    0.10,
		CrossoverRate:      crossover.Rate,
		MutationRate:       mutation.IndividualRate,
		PlateauGenerations: 30,
		TournamentSize:     5,
		UniformPickRate:    0.30,
		LocalSearchMaxIter: 30,
	}
}

// Individual is one candidate schedule and its cached score.
type Individual struct {
	Entries    []model.ScheduleEntry
	Score      float64
	Violations []kernel.Violation
}

// Observer receives progress callbacks; both methods are optional no-ops
// when Observer is nil. OnGeneration is called once per generation
// boundary and doubles as the cooperative cancellation check point of §5.
type Observer interface {
	OnGeneration(generation int, bestScore float64)
	Cancelled() bool
}

// SeedSources bundles the population-initialization inputs of §4.11.
type SeedSources struct {
	CallerSeed    []model.ScheduleEntry // optional
	BaseSchedule  *model.BaseSchedule   // optional
	MinedTop      [][]model.ScheduleEntry // from the learning service, for this weekday
	Clients       []model.Client
	Therapists    []model.Therapist
	Callouts      []model.Callout
	LunchPrefs    map[string]model.LunchPreference
}

// Outcome is the result of running the full evolutionary loop plus local
// search.
type Outcome struct {
	Best        Individual
	Generations int
	Cancelled   bool
}

// evaluate scores entries and wraps them into an Individual.
func evaluate(k *kernel.Kernel, entries []model.ScheduleEntry, date time.Time, numClients, numTherapists int) Individual {
	report := fitness.Score(k, entries, date, numClients, numTherapists)
	return Individual{Entries: entries, Score: report.Score, Violations: report.Violations}
}

// BuildInitialPopulation constructs the §4.11 initial population: the
// repair-mutated caller seed if any, the repair-mutated base schedule if
// any, up to 20% from mined top-rated schedules, and the remainder from
// fresh constructive seeds.
func BuildInitialPopulation(k *kernel.Kernel, cfg Config, sources SeedSources, constants model.Constants, date time.Time, rng *rand.Rand) []Individual {
	pipeline := &repair.Pipeline{Kernel: k, Constants: constants, Date: date, LunchPreferences: sources.LunchPrefs, RNG: rng}
	numClients, numTherapists := len(sources.Clients), len(sources.Therapists)

	pop := make([]Individual, 0, cfg.PopulationSize)

	if sources.CallerSeed != nil {
		entries := pipeline.Run(mutation.Mutate(k, sources.CallerSeed, date, constants, rng))
		pop = append(pop, evaluate(k, entries, date, numClients, numTherapists))
	}

	if sources.BaseSchedule != nil {
		seedOpts := seeder.Options{
			Clients: nil, Therapists: sources.Therapists, Callouts: sources.Callouts,
			BaseSchedule: sources.BaseSchedule, Constants: constants, Date: date, RNG: rng,
		}
		base := seedFromBaseOnly(seedOpts)
		entries := pipeline.Run(mutation.Mutate(k, base, date, constants, rng))
		pop = append(pop, evaluate(k, entries, date, numClients, numTherapists))
	}

	minedBudget := int(0.20 * float64(cfg.PopulationSize))
	for i := 0; i < minedBudget && i < len(sources.MinedTop) && len(pop) < cfg.PopulationSize; i++ {
		entries := pipeline.Run(mutation.Mutate(k, sources.MinedTop[i], date, constants, rng))
		pop = append(pop, evaluate(k, entries, date, numClients, numTherapists))
	}

	for len(pop) < cfg.PopulationSize {
		opts := seeder.Options{
			Clients: sources.Clients, Therapists: sources.Therapists, Callouts: sources.Callouts,
			LunchPreferences: sources.LunchPrefs, Constants: constants, Date: date, RNG: rng,
		}
		entries := seeder.Seed(k, opts)
		pop = append(pop, evaluate(k, entries, date, numClients, numTherapists))
	}

	return pop
}

// seedFromBaseOnly runs the constructive seeder with an empty client list so
// only the base-schedule graft (step 1) and lunch placement happen.
func seedFromBaseOnly(opts seeder.Options) []model.ScheduleEntry {
	return seeder.Seed(&kernel.Kernel{
		Clients:    map[string]*model.Client{},
		Therapists: therapistMap(opts.Therapists),
		Callouts:   opts.Callouts,
		Constants:  opts.Constants,
	}, opts)
}

func therapistMap(ts []model.Therapist) map[string]*model.Therapist {
	m := make(map[string]*model.Therapist, len(ts))
	for i := range ts {
		m[ts[i].ID] = &ts[i]
	}
	return m
}

// Run executes the outer generational loop followed by the local-search
// polish, per §4.11.
func Run(k *kernel.Kernel, cfg Config, population []Individual, constants model.Constants, date time.Time, therapists []model.Therapist, numClients int, observer Observer, rng *rand.Rand) Outcome {
	sortByScore(population)

	best := population[0]
	plateauCount := 0
	generation := 0

	for generation = 1; generation <= cfg.MaxGenerations; generation++ {
		if population[0].Score < best.Score {
			best = population[0]
			plateauCount = 0
		} else {
			plateauCount++
		}

		if observer != nil {
			observer.OnGeneration(generation, best.Score)
			if observer.Cancelled() {
				return Outcome{Best: best, Generations: generation, Cancelled: true}
			}
		}

		if best.Score == 0 {
			break
		}
		if plateauCount >= cfg.PlateauGenerations {
			break
		}

		eliteCount := int(cfg.ElitismFraction * float64(len(population)))
		next := make([]Individual, 0, len(population))
		next = append(next, population[:eliteCount]...)

		pipeline := &repair.Pipeline{Kernel: k, Constants: constants, Date: date, RNG: rng}
		for len(next) < len(population) {
			parent1 := selectParent(population, cfg, rng)
			parent2 := selectParent(population, cfg, rng)
			offspringEntries := crossover.Cross(parent1.Entries, parent2.Entries, therapists, constants, rng)
			offspringEntries = pipeline.Run(offspringEntries)
			offspringEntries = mutation.Mutate(k, offspringEntries, date, constants, rng)
			offspringEntries = pipeline.Run(offspringEntries)
			next = append(next, evaluate(k, offspringEntries, date, numClients, len(therapists)))
		}

		population = next
		sortByScore(population)
	}

	if population[0].Score < best.Score {
		best = population[0]
	}

	best = localSearch(k, best, cfg, constants, date, numClients, len(therapists), rng)

	pipeline := &repair.Pipeline{Kernel: k, Constants: constants, Date: date, RNG: rng}
	finalEntries := pipeline.CleanupMerge(best.Entries)
	best = evaluate(k, finalEntries, date, numClients, len(therapists))

	return Outcome{Best: best, Generations: generation, Cancelled: false}
}

func sortByScore(pop []Individual) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].Score < pop[j].Score })
}

// selectParent implements diversity-preserving selection: 30% uniform pick,
// else a 5-way tournament. Selection is always with replacement.
func selectParent(population []Individual, cfg Config, rng *rand.Rand) Individual {
	if rng.Float64() < cfg.UniformPickRate {
		return population[rng.Intn(len(population))]
	}
	best := population[rng.Intn(len(population))]
	for i := 1; i < cfg.TournamentSize; i++ {
		cand := population[rng.Intn(len(population))]
		if cand.Score < best.Score {
			best = cand
		}
	}
	return best
}

// localSearch tries every pair of client-bearing entries on distinct
// therapists, swapping their therapists, accepting when fitness strictly
// decreases, stopping at the first no-improvement iteration.
func localSearch(k *kernel.Kernel, best Individual, cfg Config, constants model.Constants, date time.Time, numClients, numTherapists int, rng *rand.Rand) Individual {
	for iter := 0; iter < cfg.LocalSearchMaxIter; iter++ {
		improved := false
		entries := best.Entries
		for i := 0; i < len(entries) && !improved; i++ {
			if !entries[i].HasClient() {
				continue
			}
			for j := i + 1; j < len(entries); j++ {
				if !entries[j].HasClient() || entries[i].TherapistID == entries[j].TherapistID {
					continue
				}
				candidate := make([]model.ScheduleEntry, len(entries))
				copy(candidate, entries)
				candidate[i].TherapistID, candidate[j].TherapistID = candidate[j].TherapistID, candidate[i].TherapistID

				if ok, _ := k.CanAdd(candidate[i], candidate, date, candidate[i].ID); !ok {
					continue
				}
				if ok, _ := k.CanAdd(candidate[j], candidate, date, candidate[j].ID); !ok {
					continue
				}

				candScore := fitness.Score(k, candidate, date, numClients, numTherapists)
				if candScore.Score < best.Score {
					best = Individual{Entries: candidate, Score: candScore.Score, Violations: candScore.Violations}
					improved = true
					break
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}
