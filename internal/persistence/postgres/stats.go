package postgres

import (
	"context"
	"time"

	"example.com/fittracker/internal/domain"
)

// WorkoutSummary aggregates over every workout of the user.
func (r *Repository) WorkoutSummary(ctx context.Context, userID string) (domain.WorkoutSummary, error) {
	var s domain.WorkoutSummary
	if !validIDs(userID) {
		return s, nil
	}
	const query = `SELECT COUNT(*),
            COALESCE(AVG(duration), 0)::float8,
            COALESCE(AVG(calories_burned), 0)::float8,
            COALESCE(SUM(calories_burned), 0)::int,
            MIN(date), MAX(date)
        FROM workouts WHERE user_id=$1`
	err := r.pool.QueryRow(ctx, query, userID).Scan(&s.TotalWorkouts, &s.AvgDuration, &s.AvgCalories, &s.TotalCalories, &s.FirstWorkout, &s.LastWorkout)
	return s, err
}

// ExerciseHistory lists entries for one catalog reference, newest workout first.
func (r *Repository) ExerciseHistory(ctx context.Context, userID, exerciseRef string) ([]domain.ExerciseHistoryEntry, error) {
	out := []domain.ExerciseHistoryEntry{}
	if !validIDs(userID) {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+`, w.date, w.name
        FROM workout_exercises we
        JOIN workouts w ON w.id = we.workout_id
        WHERE w.user_id=$1 AND we.exercise_id=$2
        ORDER BY w.date DESC, we.created_at DESC`, userID, exerciseRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var h domain.ExerciseHistoryEntry
		e := &h.WorkoutExercise
		if err := rows.Scan(&e.ID, &e.WorkoutID, &e.ExerciseID, &e.Name, &e.Sets, &e.Reps, &e.Weight, &e.Duration, &e.Notes, &e.MET, &e.CaloriesBurned, &e.CreatedAt, &e.UpdatedAt, &h.WorkoutDate, &h.WorkoutName); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// MonthlyStats groups the month's workouts by day.
func (r *Repository) MonthlyStats(ctx context.Context, userID string, year int, month time.Month) ([]domain.DailyStat, error) {
	out := []domain.DailyStat{}
	if !validIDs(userID) {
		return out, nil
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := r.pool.Query(ctx, `SELECT date, COUNT(*), AVG(duration)::float8, COALESCE(SUM(calories_burned), 0)::int
        FROM workouts
        WHERE user_id=$1 AND date >= $2 AND date < $3
        GROUP BY date
        ORDER BY date`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.DailyStat
		if err := rows.Scan(&d.Day, &d.WorkoutsCount, &d.AvgDuration, &d.TotalCalories); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FrequentExercises ranks catalog references by attach count.
func (r *Repository) FrequentExercises(ctx context.Context, userID string, limit int) ([]domain.FrequentExercise, error) {
	out := []domain.FrequentExercise{}
	if !validIDs(userID) {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT we.exercise_id, we.name, COUNT(*),
            COALESCE(AVG(we.weight), 0)::float8, COALESCE(MAX(we.weight), 0)::float8
        FROM workout_exercises we
        JOIN workouts w ON w.id = we.workout_id
        WHERE w.user_id=$1
        GROUP BY we.exercise_id, we.name
        ORDER BY COUNT(*) DESC, we.exercise_id
        LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var f domain.FrequentExercise
		if err := rows.Scan(&f.ExerciseID, &f.Name, &f.Frequency, &f.AvgWeight, &f.MaxWeight); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
