// Package redislearning implements learning.Service backed by a Redis
// cache over the persisted schedule history, grounded in the teacher
// pack's pkg/cache/redis.go and internal/repository/cache_repository.go
// (noah-isme-sma-adp-api): JSON-marshaled values, bounded TTLs, redis.Nil
// treated as a cache miss rather than an error.
package redislearning

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakechorley/ilford-drop-in/pkg/core/model"
	"github.com/jakechorley/ilford-drop-in/pkg/store"
)

const (
	topScheduleTTL    = 24 * time.Hour
	lunchPrefTTL      = 6 * time.Hour
	feedbackListKey   = "learning:feedback"
	feedbackListCap   = 500
	scanWindow        = 50  // how many recent schedules per weekday to mine
	ratingCacheFloor  = 3.0 // minimum rating for a schedule to be cache-eligible
	maxCachedTopK     = 20  // upper bound on k invalidated per weekday on feedback
)

// Service caches mined schedule history and learned lunch preferences in
// Redis, falling back to the backing store on a cache miss.
type Service struct {
	client *redis.Client
	store  store.Store
	logger *zap.Logger
}

// New returns a Service. logger may be nil.
func New(client *redis.Client, backing store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, store: backing, logger: logger}
}

func topScheduleKey(weekday time.Weekday, k int) string {
	return fmt.Sprintf("learning:top:%d:%d", weekday, k)
}

// TopSchedules returns up to k historically best-rated schedules for
// weekday, most-preferred first.
func (s *Service) TopSchedules(ctx context.Context, weekday time.Weekday, k int) ([][]model.ScheduleEntry, error) {
	key := topScheduleKey(weekday, k)

	if cached, err := s.getCached(ctx, key); err == nil {
		var out [][]model.ScheduleEntry
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
		s.logger.Warn("redislearning: discarding malformed cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		s.logger.Warn("redislearning: cache read failed, falling back to store", zap.Error(err))
	}

	saved, err := s.store.LoadSchedulesForWeekday(ctx, weekday, scanWindow)
	if err != nil {
		return nil, fmt.Errorf("redislearning: failed to load schedules for %s: %w", weekday, err)
	}

	sort.Slice(saved, func(i, j int) bool {
		ri, rj := saved[i].Rating, saved[j].Rating
		if ri == nil {
			return false
		}
		if rj == nil {
			return true
		}
		return *ri > *rj
	})

	var out [][]model.ScheduleEntry
	for _, sched := range saved {
		if sched.Rating == nil || *sched.Rating < ratingCacheFloor {
			continue
		}
		out = append(out, sched.Entries)
		if len(out) == k {
			break
		}
	}

	s.setCached(ctx, key, out, topScheduleTTL)
	return out, nil
}

// LunchPreferences derives each therapist's median lunch start time
// across recent schedules.
func (s *Service) LunchPreferences(ctx context.Context) (map[string]model.LunchPreference, error) {
	const key = "learning:lunchprefs"

	if cached, err := s.getCached(ctx, key); err == nil {
		var out map[string]model.LunchPreference
		if err := json.Unmarshal(cached, &out); err == nil {
			return out, nil
		}
		s.logger.Warn("redislearning: discarding malformed lunch-preference cache entry")
	} else if err != redis.Nil {
		s.logger.Warn("redislearning: cache read failed, falling back to store", zap.Error(err))
	}

	starts := make(map[string][]int)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		saved, err := s.store.LoadSchedulesForWeekday(ctx, wd, scanWindow)
		if err != nil {
			return nil, fmt.Errorf("redislearning: failed to load schedules for %s: %w", wd, err)
		}
		for _, sched := range saved {
			for _, e := range sched.Entries {
				if e.Kind == model.KindIndirect {
					starts[e.TherapistID] = append(starts[e.TherapistID], e.StartMin)
				}
			}
		}
	}

	out := make(map[string]model.LunchPreference, len(starts))
	for therapistID, values := range starts {
		out[therapistID] = model.LunchPreference{
			StartMin: median(values),
			EndMin:   median(values) + 30,
		}
	}

	s.setCached(ctx, key, out, lunchPrefTTL)
	return out, nil
}

// RecordFeedback writes rating through to the persisted schedule, appends
// the rating event to a bounded Redis list for later batch mining, then
// invalidates date's weekday from the top-schedule cache so a subsequent
// TopSchedules call re-mines the store rather than serving a ranking
// computed before this rating existed.
func (s *Service) RecordFeedback(ctx context.Context, scheduleID string, date time.Time, entries []model.ScheduleEntry, rating float64, violations int) error {
	if err := s.store.UpdateRating(ctx, scheduleID, rating); err != nil {
		return fmt.Errorf("redislearning: failed to write through rating for schedule %s: %w", scheduleID, err)
	}

	if s.client == nil {
		return nil
	}
	event := struct {
		Date       time.Time `json:"date"`
		Rating     float64   `json:"rating"`
		Violations int       `json:"violations"`
		EntryCount int       `json:"entry_count"`
	}{Date: date, Rating: rating, Violations: violations, EntryCount: len(entries)}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redislearning: failed to marshal feedback event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, feedbackListKey, payload)
	pipe.LTrim(ctx, feedbackListKey, 0, feedbackListCap-1)
	for k := 1; k <= maxCachedTopK; k++ {
		pipe.Del(ctx, topScheduleKey(date.Weekday(), k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redislearning: failed to record feedback: %w", err)
	}
	return nil
}

func (s *Service) getCached(ctx context.Context, key string) ([]byte, error) {
	if s.client == nil {
		return nil, redis.Nil
	}
	return s.client.Get(ctx, key).Bytes()
}

func (s *Service) setCached(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.client == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("redislearning: failed to marshal cache value", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.Warn("redislearning: failed to write cache value", zap.String("key", key), zap.Error(err))
	}
}

func median(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	return sorted[len(sorted)/2]
}
