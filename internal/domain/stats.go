package domain

import (
	"context"
	"strings"
	"time"
)

// WorkoutSummary aggregates all of a user's workouts.
type WorkoutSummary struct {
	TotalWorkouts int
	AvgDuration   float64
	AvgCalories   float64
	TotalCalories int
	FirstWorkout  *time.Time
	LastWorkout   *time.Time
}

// ExerciseHistoryEntry is one past performance of a catalog exercise.
type ExerciseHistoryEntry struct {
	WorkoutExercise
	WorkoutDate time.Time
	WorkoutName string
}

// DailyStat aggregates one day of a month.
type DailyStat struct {
	Day           time.Time
	WorkoutsCount int
	AvgDuration   float64
	TotalCalories int
}

// FrequentExercise ranks catalog exercises by how often they were attached.
type FrequentExercise struct {
	ExerciseID string
	Name       string
	Frequency  int
	AvgWeight  float64
	MaxWeight  float64
}

// StatsRepository runs the read-only aggregation queries.
type StatsRepository interface {
	WorkoutSummary(ctx context.Context, userID string) (WorkoutSummary, error)
	ExerciseHistory(ctx context.Context, userID, exerciseRef string) ([]ExerciseHistoryEntry, error)
	MonthlyStats(ctx context.Context, userID string, year int, month time.Month) ([]DailyStat, error)
	FrequentExercises(ctx context.Context, userID string, limit int) ([]FrequentExercise, error)
}

// StatsService validates query parameters for the stats endpoints.
type StatsService struct {
	repo StatsRepository
	now  func() time.Time
}

// NewStatsService constructs a StatsService.
func NewStatsService(repo StatsRepository) *StatsService {
	return &StatsService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Summary returns the workout summary.
func (s *StatsService) Summary(ctx context.Context, userID string) (WorkoutSummary, error) {
	return s.repo.WorkoutSummary(ctx, userID)
}

// ExerciseHistory lists performances of one catalog exercise, newest first.
func (s *StatsService) ExerciseHistory(ctx context.Context, userID, exerciseRef string) ([]ExerciseHistoryEntry, error) {
	exerciseRef = strings.TrimSpace(exerciseRef)
	if exerciseRef == "" {
		return nil, Validation("exercise id is required")
	}
	return s.repo.ExerciseHistory(ctx, userID, exerciseRef)
}

// Monthly returns per-day stats. Zero year or month default to the current one.
func (s *StatsService) Monthly(ctx context.Context, userID string, year, month int) ([]DailyStat, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if year < 1900 || year > 9999 {
		return nil, Validation("year is out of range")
	}
	if month < 1 || month > 12 {
		return nil, Validation("month must be between 1 and 12")
	}
	return s.repo.MonthlyStats(ctx, userID, year, time.Month(month))
}

// Frequent returns the most attached exercises. limit defaults to 5.
func (s *StatsService) Frequent(ctx context.Context, userID string, limit int) ([]FrequentExercise, error) {
	if limit == 0 {
		limit = 5
	}
	if limit < 0 || limit > 50 {
		return nil, Validation("limit must be between 1 and 50")
	}
	return s.repo.FrequentExercises(ctx, userID, limit)
}
