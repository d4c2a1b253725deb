package memory

import (
	"context"
	"sort"
	"time"

	"example.com/fittracker/internal/domain"
)

func (s *Store) WorkoutSummary(_ context.Context, userID string) (domain.WorkoutSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sum         domain.WorkoutSummary
		durationSum int
	)
	for _, w := range s.workouts {
		if w.UserID != userID {
			continue
		}
		sum.TotalWorkouts++
		durationSum += w.Duration
		sum.TotalCalories += w.CaloriesBurned
		d := w.Date
		if sum.FirstWorkout == nil || d.Before(*sum.FirstWorkout) {
			sum.FirstWorkout = &d
		}
		if sum.LastWorkout == nil || d.After(*sum.LastWorkout) {
			last := d
			sum.LastWorkout = &last
		}
	}
	if sum.TotalWorkouts > 0 {
		sum.AvgDuration = float64(durationSum) / float64(sum.TotalWorkouts)
		sum.AvgCalories = float64(sum.TotalCalories) / float64(sum.TotalWorkouts)
	}
	return sum, nil
}

func (s *Store) ExerciseHistory(_ context.Context, userID, exerciseRef string) ([]domain.ExerciseHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.ExerciseHistoryEntry{}
	for _, e := range s.entries {
		w, ok := s.workouts[e.WorkoutID]
		if !ok || w.UserID != userID || e.ExerciseID != exerciseRef {
			continue
		}
		out = append(out, domain.ExerciseHistoryEntry{WorkoutExercise: e, WorkoutDate: w.Date, WorkoutName: w.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WorkoutDate.Equal(out[j].WorkoutDate) {
			return out[i].WorkoutDate.After(out[j].WorkoutDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MonthlyStats(_ context.Context, userID string, year int, month time.Month) ([]domain.DailyStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type acc struct {
		count, duration, calories int
	}
	days := map[time.Time]*acc{}
	for _, w := range s.workouts {
		if w.UserID != userID || w.Date.Year() != year || w.Date.Month() != month {
			continue
		}
		a, ok := days[w.Date]
		if !ok {
			a = &acc{}
			days[w.Date] = a
		}
		a.count++
		a.duration += w.Duration
		a.calories += w.CaloriesBurned
	}

	out := make([]domain.DailyStat, 0, len(days))
	for day, a := range days {
		out = append(out, domain.DailyStat{
			Day:           day,
			WorkoutsCount: a.count,
			AvgDuration:   float64(a.duration) / float64(a.count),
			TotalCalories: a.calories,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (s *Store) FrequentExercises(_ context.Context, userID string, limit int) ([]domain.FrequentExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ ref, name string }
	type acc struct {
		count     int
		weightSum float64
		maxWeight float64
	}
	groups := map[key]*acc{}
	for _, e := range s.entries {
		w, ok := s.workouts[e.WorkoutID]
		if !ok || w.UserID != userID {
			continue
		}
		k := key{e.ExerciseID, e.Name}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		a.weightSum += e.Weight
		if e.Weight > a.maxWeight {
			a.maxWeight = e.Weight
		}
	}

	out := make([]domain.FrequentExercise, 0, len(groups))
	for k, a := range groups {
		out = append(out, domain.FrequentExercise{
			ExerciseID: k.ref,
			Name:       k.name,
			Frequency:  a.count,
			AvgWeight:  a.weightSum / float64(a.count),
			MaxWeight:  a.maxWeight,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].ExerciseID < out[j].ExerciseID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
