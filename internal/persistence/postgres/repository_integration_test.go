//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/events"
	"example.com/fittracker/internal/testsupport"
)

func TestRepository(t *testing.T) {
	pool := testsupport.StartPostgres(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	newUser := func(t *testing.T, name string) domain.User {
		now := time.Now().UTC().Truncate(time.Microsecond)
		u := domain.User{
			ID:           uuid.NewString(),
			Username:     name,
			Email:        name + "@example.com",
			PasswordHash: "x",
			FirstName:    "First",
			LastName:     "Last",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.CreateUser(ctx, u))
		return u
	}
	newWorkout := func(t *testing.T, userID string, date time.Time) domain.Workout {
		now := time.Now().UTC().Truncate(time.Microsecond)
		w := domain.Workout{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      "Leg Day",
			Date:      date,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, repo.CreateWorkout(ctx, w))
		return w
	}
	newEntry := func(workoutID string, calories int) domain.WorkoutExercise {
		now := time.Now().UTC().Truncate(time.Microsecond)
		return domain.WorkoutExercise{
			ID:             uuid.NewString(),
			WorkoutID:      workoutID,
			ExerciseID:     "111",
			Name:           "Squat",
			Weight:         80,
			Duration:       40,
			MET:            6,
			CaloriesBurned: calories,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		u := newUser(t, "alice")
		dup := u
		dup.ID = uuid.NewString()
		dup.Username = "alice2"

		err := repo.CreateUser(ctx, dup)
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("profile update keeps unset fields", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		u := newUser(t, "bob")
		age, height, weight := 30, 180.0, 80.0

		updated, err := repo.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Age: &age, Height: &height, Weight: &weight}, time.Now().UTC())
		require.NoError(t, err)
		require.Equal(t, "First", updated.FirstName)
		require.Equal(t, 30, *updated.Age)
		require.InDelta(t, 180.0, *updated.Height, 0.01)

		missing, err := repo.UpdateProfile(ctx, uuid.NewString(), domain.ProfileUpdate{Age: &age}, time.Now().UTC())
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("workouts are isolated per user", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		owner := newUser(t, "owner")
		other := newUser(t, "other")
		w := newWorkout(t, owner.ID, today)

		got, err := repo.GetWorkout(ctx, owner.ID, w.ID)
		require.NoError(t, err)
		require.NotNil(t, got)

		got, err = repo.GetWorkout(ctx, other.ID, w.ID)
		require.NoError(t, err)
		require.Nil(t, got)

		updated, err := repo.UpdateWorkout(ctx, other.ID, w.ID, domain.WorkoutFields{Name: "x", Date: today}, time.Now())
		require.NoError(t, err)
		require.Nil(t, updated)

		attached, err := repo.AttachExercise(ctx, other.ID, newEntry(w.ID, 100))
		require.NoError(t, err)
		require.False(t, attached)

		deleted, err := repo.DeleteWorkout(ctx, other.ID, w.ID)
		require.NoError(t, err)
		require.False(t, deleted)

		got, err = repo.GetWorkout(ctx, owner.ID, "not-a-uuid")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("entry mutations keep the total consistent", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		u := newUser(t, "carol")
		w := newWorkout(t, u.ID, today)

		entry := newEntry(w.ID, 320)
		attached, err := repo.AttachExercise(ctx, u.ID, entry)
		require.NoError(t, err)
		require.True(t, attached)

		updated, err := repo.UpdateExerciseEntry(ctx, u.ID, w.ID, entry.ID, func(e *domain.WorkoutExercise) {
			e.Duration = 20
			e.CaloriesBurned = domain.EstimateCalories(e.MET, e.Weight, e.Duration)
			e.UpdatedAt = time.Now().UTC()
		})
		require.NoError(t, err)
		require.Equal(t, 160, updated.CaloriesBurned)

		got, err := repo.GetWorkout(ctx, u.ID, w.ID)
		require.NoError(t, err)
		require.Equal(t, 160, got.CaloriesBurned)

		removed, err := repo.DetachExercise(ctx, u.ID, w.ID, entry.ID)
		require.NoError(t, err)
		require.NotNil(t, removed)

		got, err = repo.GetWorkout(ctx, u.ID, w.ID)
		require.NoError(t, err)
		require.Zero(t, got.CaloriesBurned)

		removed, err = repo.DetachExercise(ctx, u.ID, w.ID, entry.ID)
		require.NoError(t, err)
		require.Nil(t, removed)

		var eventTypes []string
		rows, err := pool.Query(ctx, `SELECT event_type FROM outbox WHERE aggregate_id=$1 ORDER BY event_id`, w.ID)
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var et string
			require.NoError(t, rows.Scan(&et))
			eventTypes = append(eventTypes, et)
		}
		require.Equal(t, []string{
			events.WorkoutCreated,
			events.WorkoutExerciseAttached,
			events.WorkoutExerciseUpdated,
			events.WorkoutExerciseDetached,
		}, eventTypes)
	})

	t.Run("concurrent attaches sum exactly", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		u := newUser(t, "dave")
		w := newWorkout(t, u.ID, today)

		const workers = 12
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(calories int) {
				defer wg.Done()
				_, err := repo.AttachExercise(ctx, u.ID, newEntry(w.ID, calories))
				errs <- err
			}(i + 1)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		entries, err := repo.ListWorkoutExercises(ctx, u.ID, w.ID)
		require.NoError(t, err)
		require.Len(t, entries, workers)

		sum := 0
		for _, e := range entries {
			sum += e.CaloriesBurned
		}
		got, err := repo.GetWorkout(ctx, u.ID, w.ID)
		require.NoError(t, err)
		require.Equal(t, sum, got.CaloriesBurned)
		require.Equal(t, workers*(workers+1)/2, got.CaloriesBurned)
	})

	t.Run("list pages by date and id", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		u := newUser(t, "erin")
		for i := 0; i < 5; i++ {
			newWorkout(t, u.ID, today.AddDate(0, 0, -i))
		}

		seen := map[string]bool{}
		var cursor *domain.Cursor
		pages := 0
		for {
			page, next, err := repo.ListWorkouts(ctx, u.ID, cursor, 2)
			require.NoError(t, err)
			for i, w := range page {
				require.False(t, seen[w.ID])
				seen[w.ID] = true
				if i > 0 {
					require.False(t, w.Date.After(page[i-1].Date))
				}
			}
			pages++
			if next == nil {
				break
			}
			cursor = next
		}
		require.Len(t, seen, 5)
		require.Equal(t, 3, pages)
	})

	t.Run("refresh rotation has a single winner", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		u := newUser(t, "frank")
		svc := auth.NewService(auth.Config{Secret: "s", Issuer: "fittracker"}, repo)

		pair, err := svc.IssuePair(ctx, u.ID)
		require.NoError(t, err)

		const attempts = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Rotate(ctx, pair.RefreshToken)
				if err != nil && !errors.Is(err, auth.ErrUnauthenticated) {
					t.Errorf("unexpected rotate error: %v", err)
					return
				}
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, wins)
	})

	t.Run("stats aggregate per user", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		u := newUser(t, "gina")
		first := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
		w1 := newWorkout(t, u.ID, first)
		w2 := newWorkout(t, u.ID, first.AddDate(0, 0, 1))

		for _, w := range []domain.Workout{w1, w2} {
			ok, err := repo.AttachExercise(ctx, u.ID, newEntry(w.ID, 100))
			require.NoError(t, err)
			require.True(t, ok)
		}

		summary, err := repo.WorkoutSummary(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, 2, summary.TotalWorkouts)
		require.Equal(t, 200, summary.TotalCalories)
		require.True(t, summary.FirstWorkout.Equal(first))

		monthly, err := repo.MonthlyStats(ctx, u.ID, 2025, time.March)
		require.NoError(t, err)
		require.Len(t, monthly, 2)

		history, err := repo.ExerciseHistory(ctx, u.ID, "111")
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, w2.ID, history[0].WorkoutID)

		frequent, err := repo.FrequentExercises(ctx, u.ID, 5)
		require.NoError(t, err)
		require.Len(t, frequent, 1)
		require.Equal(t, 2, frequent[0].Frequency)
		require.InDelta(t, 80.0, frequent[0].MaxWeight, 0.001)
	})
}
