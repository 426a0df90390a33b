package noop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServiceMethodsAreEmptyAndErrorFree(t *testing.T) {
	s := New()
	ctx := context.Background()

	schedules, err := s.TopSchedules(ctx, time.Monday, 5)
	assert.NoError(t, err)
	assert.Nil(t, schedules)

	prefs, err := s.LunchPreferences(ctx)
	assert.NoError(t, err)
	assert.Nil(t, prefs)

	err = s.RecordFeedback(ctx, "sched-1", time.Now(), nil, 4.5, 0)
	assert.NoError(t, err)
}
