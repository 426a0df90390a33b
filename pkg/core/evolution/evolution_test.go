package evolution

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

func testDate() time.Time { return time.Date(2026, 8, 6, 0, 0, 0, 0, time.UTC) } // Thursday

type cancelAfter struct {
	n      int
	calls  int
	scores []float64
}

func (o *cancelAfter) OnGeneration(generation int, bestScore float64) {
	o.calls++
	o.scores = append(o.scores, bestScore)
}

func (o *cancelAfter) Cancelled() bool {
	return o.calls >= o.n
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 8
	cfg.MaxGenerations = 10
	cfg.PlateauGenerations = 5
	cfg.LocalSearchMaxIter = 2
	return cfg
}

func TestRunTerminatesAndReturnsNonWorseThanInitialBest(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}, {ID: "c2"}}
	therapists := []model.Therapist{{ID: "t1"}, {ID: "t2"}}
	k := kernel.New(clients, therapists, nil, c)
	cfg := smallConfig()
	rng := rand.New(rand.NewSource(1))

	sources := SeedSources{Clients: clients, Therapists: therapists}
	pop := BuildInitialPopulation(k, cfg, sources, c, testDate(), rng)
	require.NotEmpty(t, pop)

	initialBest := pop[0].Score
	for _, ind := range pop {
		if ind.Score < initialBest {
			initialBest = ind.Score
		}
	}

	outcome := Run(k, cfg, pop, c, testDate(), therapists, len(clients), nil, rng)
	assert.LessOrEqual(t, outcome.Best.Score, initialBest)
	assert.False(t, outcome.Cancelled)
	assert.Greater(t, outcome.Generations, 0)
}

func TestRunHonorsCancellation(t *testing.T) {
	c := model.DefaultConstants()
	clients := []model.Client{{ID: "c1"}}
	therapists := []model.Therapist{{ID: "t1"}}
	k := kernel.New(clients, therapists, nil, c)
	cfg := smallConfig()
	cfg.MaxGenerations = 1000
	rng := rand.New(rand.NewSource(2))

	sources := SeedSources{Clients: clients, Therapists: therapists}
	pop := BuildInitialPopulation(k, cfg, sources, c, testDate(), rng)

	observer := &cancelAfter{n: 3}
	outcome := Run(k, cfg, pop, c, testDate(), therapists, len(clients), observer, rng)
	assert.True(t, outcome.Cancelled)
	assert.LessOrEqual(t, outcome.Generations, 4)
}

func TestBuildInitialPopulationHonorsCallerSeed(t *testing.T) {
	c := model.DefaultConstants()
	therapists := []model.Therapist{{ID: "t1"}}
	k := kernel.New(nil, therapists, nil, c)
	cfg := smallConfig()
	rng := rand.New(rand.NewSource(1))

	callerSeed := []model.ScheduleEntry{
		{ID: "seed1", TherapistID: "t1", StartMin: c.OPStartMin, EndMin: c.OPStartMin + 60, Kind: model.KindAdminTime},
	}
	sources := SeedSources{Therapists: therapists, CallerSeed: callerSeed}
	pop := BuildInitialPopulation(k, cfg, sources, c, testDate(), rng)
	assert.Len(t, pop, cfg.PopulationSize)
}

func TestSelectParentUniformAndTournamentBothReturnPopulationMember(t *testing.T) {
	pop := []Individual{{Score: 10}, {Score: 5}, {Score: 1}}
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		p := selectParent(pop, cfg, rng)
		found := false
		for _, ind := range pop {
			if ind.Score == p.Score {
				found = true
			}
		}
		assert.True(t, found)
	}
}
