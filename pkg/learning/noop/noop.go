// Package noop implements learning.Service with no backing store, for
// callers that have not wired a learning service. Every method returns an
// empty, error-free result, matching §6's "no learning service" behavior.
package noop

import (
	"context"
	"time"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
)

// Service is the no-op learning.Service implementation.
type Service struct{}

// New returns a Service.
func New() Service { return Service{} }

func (Service) TopSchedules(ctx context.Context, weekday time.Weekday, k int) ([][]model.ScheduleEntry, error) {
	return nil, nil
}

func (Service) LunchPreferences(ctx context.Context) (map[string]model.LunchPreference, error) {
	return nil, nil
}

func (Service) RecordFeedback(ctx context.Context, scheduleID string, date time.Time, entries []model.ScheduleEntry, rating float64, violations int) error {
	return nil
}
