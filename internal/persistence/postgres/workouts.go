package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/events"
)

const workoutColumns = `id, user_id, name, COALESCE(description, ''), date, duration, calories_burned, created_at, updated_at`

const entryColumns = `we.id, we.workout_id, we.exercise_id, we.name, we.sets, we.reps, we.weight, we.duration, COALESCE(we.notes, ''), we.met, we.calories_burned, we.created_at, we.updated_at`

func scanWorkout(row pgx.Row) (domain.Workout, error) {
	var w domain.Workout
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.Date, &w.Duration, &w.CaloriesBurned, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func scanEntry(row pgx.Row) (domain.WorkoutExercise, error) {
	var e domain.WorkoutExercise
	err := row.Scan(&e.ID, &e.WorkoutID, &e.ExerciseID, &e.Name, &e.Sets, &e.Reps, &e.Weight, &e.Duration, &e.Notes, &e.MET, &e.CaloriesBurned, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// CreateWorkout inserts the workout and its workout.created outbox event.
func (r *Repository) CreateWorkout(ctx context.Context, w domain.Workout) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO workouts (id, user_id, name, description, date, duration, calories_burned, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
		if _, err := tx.Exec(ctx, stmt, w.ID, w.UserID, w.Name, nullIfEmpty(w.Description), w.Date, w.Duration, w.CaloriesBurned, w.CreatedAt, w.UpdatedAt); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, outboxRecord{
			UserID:      w.UserID,
			AggregateID: w.ID,
			EventType:   events.WorkoutCreated,
			OccurredAt:  w.CreatedAt,
			Payload: events.WorkoutCreatedPayload{
				WorkoutID:      w.ID,
				UserID:         w.UserID,
				Name:           w.Name,
				Date:           w.Date.Format("2006-01-02"),
				Duration:       w.Duration,
				CaloriesBurned: w.CaloriesBurned,
				OccurredAt:     w.CreatedAt,
			},
		})
	})
}

// GetWorkout loads one workout owned by userID, without its entries.
func (r *Repository) GetWorkout(ctx context.Context, userID, workoutID string) (*domain.Workout, error) {
	if !validIDs(userID, workoutID) {
		return nil, nil
	}
	w, err := scanWorkout(r.pool.QueryRow(ctx, `SELECT `+workoutColumns+` FROM workouts WHERE id=$1 AND user_id=$2`, workoutID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// ListWorkouts pages by (date, id) descending. The returned cursor is nil on
// the last page.
func (r *Repository) ListWorkouts(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	if !validIDs(userID) {
		return []domain.Workout{}, nil, nil
	}

	var (
		rows pgx.Rows
		err  error
	)
	// One extra row tells us whether another page exists.
	if cursor == nil {
		rows, err = r.pool.Query(ctx, `SELECT `+workoutColumns+` FROM workouts
            WHERE user_id=$1
            ORDER BY date DESC, id DESC
            LIMIT $2`, userID, limit+1)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+workoutColumns+` FROM workouts
            WHERE user_id=$1 AND (date, id) < ($2, $3)
            ORDER BY date DESC, id DESC
            LIMIT $4`, userID, cursor.Date, cursor.ID, limit+1)
	}
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	workouts := make([]domain.Workout, 0, limit)
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, nil, err
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(workouts) > limit {
		workouts = workouts[:limit]
		last := workouts[len(workouts)-1]
		next = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return workouts, next, nil
}

// UpdateWorkout edits the descriptive columns. calories_burned is untouched.
func (r *Repository) UpdateWorkout(ctx context.Context, userID, workoutID string, f domain.WorkoutFields, now time.Time) (*domain.Workout, error) {
	if !validIDs(userID, workoutID) {
		return nil, nil
	}
	const stmt = `UPDATE workouts SET name=$3, description=$4, date=$5, duration=$6, updated_at=$7
        WHERE id=$1 AND user_id=$2
        RETURNING ` + workoutColumns
	w, err := scanWorkout(r.pool.QueryRow(ctx, stmt, workoutID, userID, f.Name, nullIfEmpty(f.Description), f.Date, f.Duration, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// DeleteWorkout removes the workout; entries go with it through the cascade.
func (r *Repository) DeleteWorkout(ctx context.Context, userID, workoutID string) (bool, error) {
	if !validIDs(userID, workoutID) {
		return false, nil
	}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM workouts WHERE id=$1 AND user_id=$2`, workoutID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errNoMatch
		}
		now := time.Now().UTC()
		return r.insertOutbox(ctx, tx, outboxRecord{
			UserID:      userID,
			AggregateID: workoutID,
			EventType:   events.WorkoutDeleted,
			OccurredAt:  now,
			Payload: events.WorkoutDeletedPayload{
				WorkoutID:  workoutID,
				UserID:     userID,
				OccurredAt: now,
			},
		})
	})
	if errors.Is(err, errNoMatch) {
		return false, nil
	}
	return err == nil, err
}

// ListWorkoutExercises returns the entries of a workout in attach order.
func (r *Repository) ListWorkoutExercises(ctx context.Context, userID, workoutID string) ([]domain.WorkoutExercise, error) {
	entries := []domain.WorkoutExercise{}
	if !validIDs(userID, workoutID) {
		return entries, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+`
        FROM workout_exercises we
        JOIN workouts w ON w.id = we.workout_id
        WHERE we.workout_id=$1 AND w.user_id=$2
        ORDER BY we.created_at, we.id`, workoutID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AttachExercise adds the entry's calories to the parent, inserts the entry
// and records the event. Updating the parent first takes its row lock, so
// concurrent attaches to one workout serialise on the total.
func (r *Repository) AttachExercise(ctx context.Context, userID string, e domain.WorkoutExercise) (bool, error) {
	if !validIDs(userID, e.WorkoutID) {
		return false, nil
	}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if err := adjustWorkoutCalories(ctx, tx, userID, e.WorkoutID, e.CaloriesBurned, e.CreatedAt); err != nil {
			return err
		}

		const stmt = `INSERT INTO workout_exercises (id, workout_id, exercise_id, name, sets, reps, weight, duration, notes, met, calories_burned, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
		if _, err := tx.Exec(ctx, stmt, e.ID, e.WorkoutID, e.ExerciseID, e.Name, e.Sets, e.Reps, e.Weight, e.Duration, nullIfEmpty(e.Notes), e.MET, e.CaloriesBurned, e.CreatedAt, e.UpdatedAt); err != nil {
			return err
		}

		return r.insertOutbox(ctx, tx, entryEvent(events.WorkoutExerciseAttached, userID, e, e.CaloriesBurned, e.CreatedAt))
	})
	if errors.Is(err, errNoMatch) {
		return false, nil
	}
	return err == nil, err
}

// UpdateExerciseEntry locks the entry, applies mutate and moves the parent
// total by the calorie difference.
func (r *Repository) UpdateExerciseEntry(ctx context.Context, userID, workoutID, entryID string, mutate func(*domain.WorkoutExercise)) (*domain.WorkoutExercise, error) {
	if !validIDs(userID, workoutID, entryID) {
		return nil, nil
	}
	var updated domain.WorkoutExercise
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		current, err := scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+`
            FROM workout_exercises we
            JOIN workouts w ON w.id = we.workout_id
            WHERE we.id=$1 AND we.workout_id=$2 AND w.user_id=$3
            FOR UPDATE OF we`, entryID, workoutID, userID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNoMatch
			}
			return err
		}

		updated = current
		mutate(&updated)
		delta := updated.CaloriesBurned - current.CaloriesBurned

		const stmt = `UPDATE workout_exercises SET sets=$2, reps=$3, weight=$4, duration=$5, notes=$6, calories_burned=$7, updated_at=$8
            WHERE id=$1`
		if _, err := tx.Exec(ctx, stmt, entryID, updated.Sets, updated.Reps, updated.Weight, updated.Duration, nullIfEmpty(updated.Notes), updated.CaloriesBurned, updated.UpdatedAt); err != nil {
			return err
		}
		if err := adjustWorkoutCalories(ctx, tx, userID, workoutID, delta, updated.UpdatedAt); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, entryEvent(events.WorkoutExerciseUpdated, userID, updated, delta, updated.UpdatedAt))
	})
	if errors.Is(err, errNoMatch) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DetachExercise deletes the entry and subtracts its calories from the parent.
func (r *Repository) DetachExercise(ctx context.Context, userID, workoutID, entryID string) (*domain.WorkoutExercise, error) {
	if !validIDs(userID, workoutID, entryID) {
		return nil, nil
	}
	var removed domain.WorkoutExercise
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		removed, err = scanEntry(tx.QueryRow(ctx, `DELETE FROM workout_exercises we
            USING workouts w
            WHERE we.id=$1 AND we.workout_id=$2 AND w.id = we.workout_id AND w.user_id=$3
            RETURNING `+entryColumns, entryID, workoutID, userID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNoMatch
			}
			return err
		}

		now := time.Now().UTC()
		if err := adjustWorkoutCalories(ctx, tx, userID, workoutID, -removed.CaloriesBurned, now); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, entryEvent(events.WorkoutExerciseDetached, userID, removed, -removed.CaloriesBurned, now))
	})
	if errors.Is(err, errNoMatch) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &removed, nil
}

// adjustWorkoutCalories moves the parent total by delta. It returns errNoMatch
// when the workout does not exist for userID.
func adjustWorkoutCalories(ctx context.Context, tx pgx.Tx, userID, workoutID string, delta int, now time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE workouts SET calories_burned = calories_burned + $3, updated_at=$4
        WHERE id=$1 AND user_id=$2`, workoutID, userID, delta, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoMatch
	}
	return nil
}

func entryEvent(eventType, userID string, e domain.WorkoutExercise, delta int, at time.Time) outboxRecord {
	return outboxRecord{
		UserID:      userID,
		AggregateID: e.WorkoutID,
		SubjectID:   e.ID,
		EventType:   eventType,
		OccurredAt:  at,
		Payload: events.WorkoutExerciseChangedPayload{
			WorkoutID:      e.WorkoutID,
			UserID:         userID,
			EntryID:        e.ID,
			ExerciseID:     e.ExerciseID,
			CaloriesBurned: e.CaloriesBurned,
			CaloriesDelta:  delta,
			OccurredAt:     at,
		},
	}
}
