// Package engine implements the single `run` entrypoint of §6: given a
// roster of clients, a pool of therapists, a date, and a set of callouts,
// it produces a day-schedule minimizing the §4.10 fitness function.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/evolution"
	"github.com/jakechorley/ilford-drop-in/pkg/core/kernel"
	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/metrics"
)

// Input bundles the snapshot the engine consumes; everything here is
// cloned by value at entry and never re-read from a live store.
type Input struct {
	Clients      []model.Client
	Therapists   []model.Therapist
	Date         time.Time
	Callouts     []model.Callout
	Seed         []model.ScheduleEntry // optional, caller-supplied
	BaseSchedule *model.BaseSchedule   // optional
	MinedTop     [][]model.ScheduleEntry
	LunchPrefs   map[string]model.LunchPreference
	Constants    model.Constants
	RNGSeed      *int64 // optional, for reproducibility
	Cancel       func() bool // optional cooperative cancellation check
	Metrics      *metrics.Collector // optional Prometheus instrumentation
}

// Output matches §6's returned shape exactly.
type Output struct {
	Schedule    []model.ScheduleEntry
	Violations  []kernel.Violation
	Generations int
	BestFitness float64
	Success     bool
	Status      string
}

// cancellationObserver adapts an Input's Cancel func and optional metrics
// collector to evolution.Observer.
type cancellationObserver struct {
	cancel  func() bool
	metrics *metrics.Collector
}

func (o cancellationObserver) OnGeneration(generation int, bestScore float64) {
	o.metrics.ObserveGeneration(bestScore)
}

func (o cancellationObserver) Cancelled() bool {
	if o.cancel == nil {
		return false
	}
	return o.cancel()
}

// Run is the engine's single entrypoint: `run(clients, therapists, date,
// callouts, seed?)`.
func Run(ctx context.Context, in Input) (Output, error) {
	if inputErr, ok := validateInput(in); ok {
		return Output{Schedule: nil, Violations: []kernel.Violation{inputErr}, Success: false, Status: inputErr.Message}, nil
	}

	constants := in.Constants
	if constants.SlotMinutes == 0 {
		constants = model.DefaultConstants()
	}

	if len(in.Clients) == 0 || len(in.Therapists) == 0 {
		return Output{Schedule: nil, Success: true, Status: "no clients or no therapists: nothing to schedule"}, nil
	}

	in.Clients = append([]model.Client(nil), in.Clients...)
	in.Therapists = append([]model.Therapist(nil), in.Therapists...)
	in.Callouts = append([]model.Callout(nil), in.Callouts...)
	in.Seed = append([]model.ScheduleEntry(nil), in.Seed...)

	k := kernel.New(in.Clients, in.Therapists, in.Callouts, constants)

	seedValue := time.Now().UnixNano()
	if in.RNGSeed != nil {
		seedValue = *in.RNGSeed
	}
	rng := rand.New(rand.NewSource(seedValue))

	cfg := evolution.DefaultConfig()
	sources := evolution.SeedSources{
		CallerSeed:   in.Seed,
		BaseSchedule: in.BaseSchedule,
		MinedTop:     in.MinedTop,
		Clients:      in.Clients,
		Therapists:   in.Therapists,
		Callouts:     in.Callouts,
		LunchPrefs:   in.LunchPrefs,
	}

	population := evolution.BuildInitialPopulation(k, cfg, sources, constants, in.Date, rng)

	started := time.Now()
	observer := cancellationObserver{cancel: in.Cancel, metrics: in.Metrics}
	outcome := evolution.Run(k, cfg, population, constants, in.Date, in.Therapists, len(in.Clients), observer, rng)
	elapsed := time.Since(started)

	status := fmt.Sprintf("completed after %d generations, best fitness %.1f", outcome.Generations, outcome.Best.Score)
	if outcome.Cancelled {
		status = fmt.Sprintf("cancelled after %d generations, best fitness %.1f", outcome.Generations, outcome.Best.Score)
	}

	success := !outcome.Cancelled && outcome.Best.Score < 500

	metricsStatus := "degraded"
	switch {
	case outcome.Cancelled:
		metricsStatus = "cancelled"
	case success:
		metricsStatus = "success"
	}
	in.Metrics.ObserveRun(metricsStatus, elapsed.Seconds())

	return Output{
		Schedule:    outcome.Best.Entries,
		Violations:  outcome.Best.Violations,
		Generations: outcome.Generations,
		BestFitness: outcome.Best.Score,
		Success:     success,
		Status:      status,
	}, nil
}

// validateInput implements the §7 input-error taxonomy.
func validateInput(in Input) (kernel.Violation, bool) {
	if in.Date.IsZero() {
		return kernel.Violation{RuleID: "MISSING_DATE", Message: "no date supplied", Severity: kernel.Hard}, true
	}
	if in.Clients == nil && in.Therapists == nil {
		return kernel.Violation{RuleID: "MISSING_DATA", Message: "no clients or therapists supplied", Severity: kernel.Hard}, true
	}
	clientIDs := make(map[string]bool, len(in.Clients))
	for _, c := range in.Clients {
		clientIDs[c.ID] = true
	}
	therapistIDs := make(map[string]bool, len(in.Therapists))
	for _, t := range in.Therapists {
		therapistIDs[t.ID] = true
	}
	for _, co := range in.Callouts {
		switch co.EntityKind {
		case model.CalloutClient:
			if !clientIDs[co.EntityID] {
				return kernel.Violation{RuleID: "UNKNOWN_ENTITY", Message: fmt.Sprintf("callout references unknown client %q", co.EntityID), Severity: kernel.Hard}, true
			}
		case model.CalloutTherapist:
			if !therapistIDs[co.EntityID] {
				return kernel.Violation{RuleID: "UNKNOWN_ENTITY", Message: fmt.Sprintf("callout references unknown therapist %q", co.EntityID), Severity: kernel.Hard}, true
			}
		}
	}
	return kernel.Violation{}, false
}
