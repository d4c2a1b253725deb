// Package memory provides an in-process implementation of every fittracker
// repository. It backs the "memory" storage driver and the HTTP tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/events"
)

// Store keeps all state behind one mutex, which gives every method the same
// atomicity the Postgres transactions provide.
type Store struct {
	mu        sync.Mutex
	users     map[string]domain.User
	tokens    map[string]auth.RefreshToken
	workouts  map[string]domain.Workout
	entries   map[string]domain.WorkoutExercise
	goals     map[string]domain.Goal
	exercises map[string]domain.Exercise
	events    []RecordedEvent
}

// RecordedEvent mirrors an outbox row.
type RecordedEvent struct {
	Type      string
	UserID    string
	WorkoutID string
	Payload   interface{}
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		tokens:    make(map[string]auth.RefreshToken),
		workouts:  make(map[string]domain.Workout),
		entries:   make(map[string]domain.WorkoutExercise),
		goals:     make(map[string]domain.Goal),
		exercises: make(map[string]domain.Exercise),
	}
}

// Events returns a copy of the events recorded so far.
func (s *Store) Events() []RecordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedEvent(nil), s.events...)
}

func (s *Store) record(eventType, userID, workoutID string, payload interface{}) {
	s.events = append(s.events, RecordedEvent{Type: eventType, UserID: userID, WorkoutID: workoutID, Payload: payload})
}

// Users.

func (s *Store) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return domain.Conflict("a user with this email or username already exists")
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, update domain.ProfileUpdate, now time.Time) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	if update.Age != nil {
		v := *update.Age
		u.Age = &v
	}
	if update.Height != nil {
		v := *update.Height
		u.Height = &v
	}
	if update.Weight != nil {
		v := *update.Weight
		u.Weight = &v
	}
	u.UpdatedAt = now
	s.users[userID] = u
	return &u, nil
}

// Refresh tokens.

func (s *Store) CreateRefreshToken(_ context.Context, t auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Token] = t
	return nil
}

func (s *Store) RotateRefreshToken(_ context.Context, presented string, next auth.RefreshToken, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tokens[presented]
	if !ok || current.Used || !current.ExpiresAt.After(now) {
		return "", auth.ErrUnauthenticated
	}
	current.Used = true
	s.tokens[presented] = current

	next.UserID = current.UserID
	s.tokens[next.Token] = next
	return current.UserID, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.tokens[token]; ok {
		current.Used = true
		s.tokens[token] = current
	}
	return nil
}

// Workouts.

func (s *Store) CreateWorkout(_ context.Context, w domain.Workout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Exercises = nil
	s.workouts[w.ID] = w
	s.record(events.WorkoutCreated, w.UserID, w.ID, events.WorkoutCreatedPayload{
		WorkoutID:      w.ID,
		UserID:         w.UserID,
		Name:           w.Name,
		Date:           w.Date.Format("2006-01-02"),
		Duration:       w.Duration,
		CaloriesBurned: w.CaloriesBurned,
		OccurredAt:     w.CreatedAt,
	})
	return nil
}

func (s *Store) ownedWorkout(userID, workoutID string) (domain.Workout, bool) {
	w, ok := s.workouts[workoutID]
	if !ok || w.UserID != userID {
		return domain.Workout{}, false
	}
	return w, true
}

func (s *Store) GetWorkout(_ context.Context, userID, workoutID string) (*domain.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.ownedWorkout(userID, workoutID)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *Store) ListWorkouts(_ context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]domain.Workout, 0)
	for _, w := range s.workouts {
		if w.UserID == userID {
			all = append(all, w)
		}
	}
	sort.Slice(all, func(i, j int) bool { return workoutAfter(all[i], all[j].Date, all[j].ID) })

	out := make([]domain.Workout, 0, limit)
	for _, w := range all {
		if cursor != nil && !workoutAfter(domain.Workout{Date: cursor.Date, ID: cursor.ID}, w.Date, w.ID) {
			continue
		}
		out = append(out, w)
		if len(out) > limit {
			break
		}
	}

	var next *domain.Cursor
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = &domain.Cursor{Date: last.Date, ID: last.ID}
	}
	return out, next, nil
}

// workoutAfter reports whether w sorts before (date, id) in descending order.
func workoutAfter(w domain.Workout, date time.Time, id string) bool {
	if !w.Date.Equal(date) {
		return w.Date.After(date)
	}
	return w.ID > id
}

func (s *Store) UpdateWorkout(_ context.Context, userID, workoutID string, f domain.WorkoutFields, now time.Time) (*domain.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.ownedWorkout(userID, workoutID)
	if !ok {
		return nil, nil
	}
	w.Name = f.Name
	w.Description = f.Description
	w.Date = f.Date
	w.Duration = f.Duration
	w.UpdatedAt = now
	s.workouts[workoutID] = w
	return &w, nil
}

func (s *Store) DeleteWorkout(_ context.Context, userID, workoutID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ownedWorkout(userID, workoutID); !ok {
		return false, nil
	}
	delete(s.workouts, workoutID)
	for id, e := range s.entries {
		if e.WorkoutID == workoutID {
			delete(s.entries, id)
		}
	}
	now := time.Now().UTC()
	s.record(events.WorkoutDeleted, userID, workoutID, events.WorkoutDeletedPayload{WorkoutID: workoutID, UserID: userID, OccurredAt: now})
	return true, nil
}

func (s *Store) ListWorkoutExercises(_ context.Context, userID, workoutID string) ([]domain.WorkoutExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.WorkoutExercise{}
	if _, ok := s.ownedWorkout(userID, workoutID); !ok {
		return out, nil
	}
	for _, e := range s.entries {
		if e.WorkoutID == workoutID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []domain.WorkoutExercise) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

func (s *Store) AttachExercise(_ context.Context, userID string, e domain.WorkoutExercise) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.ownedWorkout(userID, e.WorkoutID)
	if !ok {
		return false, nil
	}
	w.CaloriesBurned += e.CaloriesBurned
	w.UpdatedAt = e.CreatedAt
	s.workouts[w.ID] = w
	s.entries[e.ID] = e
	s.record(events.WorkoutExerciseAttached, userID, w.ID, entryPayload(userID, e, e.CaloriesBurned, e.CreatedAt))
	return true, nil
}

func (s *Store) UpdateExerciseEntry(_ context.Context, userID, workoutID, entryID string, mutate func(*domain.WorkoutExercise)) (*domain.WorkoutExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.ownedWorkout(userID, workoutID)
	if !ok {
		return nil, nil
	}
	current, ok := s.entries[entryID]
	if !ok || current.WorkoutID != workoutID {
		return nil, nil
	}

	updated := current
	mutate(&updated)
	delta := updated.CaloriesBurned - current.CaloriesBurned

	s.entries[entryID] = updated
	w.CaloriesBurned += delta
	w.UpdatedAt = updated.UpdatedAt
	s.workouts[workoutID] = w
	s.record(events.WorkoutExerciseUpdated, userID, workoutID, entryPayload(userID, updated, delta, updated.UpdatedAt))
	return &updated, nil
}

func (s *Store) DetachExercise(_ context.Context, userID, workoutID, entryID string) (*domain.WorkoutExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.ownedWorkout(userID, workoutID)
	if !ok {
		return nil, nil
	}
	removed, ok := s.entries[entryID]
	if !ok || removed.WorkoutID != workoutID {
		return nil, nil
	}

	now := time.Now().UTC()
	delete(s.entries, entryID)
	w.CaloriesBurned -= removed.CaloriesBurned
	w.UpdatedAt = now
	s.workouts[workoutID] = w
	s.record(events.WorkoutExerciseDetached, userID, workoutID, entryPayload(userID, removed, -removed.CaloriesBurned, now))
	return &removed, nil
}

func entryPayload(userID string, e domain.WorkoutExercise, delta int, at time.Time) events.WorkoutExerciseChangedPayload {
	return events.WorkoutExerciseChangedPayload{
		WorkoutID:      e.WorkoutID,
		UserID:         userID,
		EntryID:        e.ID,
		ExerciseID:     e.ExerciseID,
		CaloriesBurned: e.CaloriesBurned,
		CaloriesDelta:  delta,
		OccurredAt:     at,
	}
}

// Goals.

func (s *Store) CreateGoal(_ context.Context, g domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Goal{}
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetGoal(_ context.Context, userID, goalID string) (*domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	return &g, nil
}

func (s *Store) UpdateGoal(_ context.Context, userID, goalID string, in domain.GoalInput, now time.Time) (*domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, nil
	}
	g.Type = in.Type
	g.TargetValue = in.TargetValue
	g.StartDate = in.StartDate
	g.EndDate = in.EndDate
	g.Status = in.Status
	g.UpdatedAt = now
	s.goals[goalID] = g
	return &g, nil
}

func (s *Store) DeleteGoal(_ context.Context, userID, goalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return false, nil
	}
	delete(s.goals, goalID)
	return true, nil
}

// User-authored exercises.

func (s *Store) CreateExercise(_ context.Context, ex domain.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exercises[ex.ID] = ex
	return nil
}

func (s *Store) ListExercises(_ context.Context, userID string) ([]domain.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Exercise{}
	for _, ex := range s.exercises {
		if ex.UserID == userID {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetExercise(_ context.Context, userID, exerciseID string) (*domain.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.exercises[exerciseID]
	if !ok || ex.UserID != userID {
		return nil, nil
	}
	return &ex, nil
}

func (s *Store) UpdateExercise(_ context.Context, userID, exerciseID string, in domain.ExerciseInput, now time.Time) (*domain.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.exercises[exerciseID]
	if !ok || ex.UserID != userID {
		return nil, nil
	}
	ex.Name = in.Name
	ex.Description = in.Description
	ex.Category = in.Category
	ex.UpdatedAt = now
	s.exercises[exerciseID] = ex
	return &ex, nil
}

func (s *Store) DeleteExercise(_ context.Context, userID, exerciseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.exercises[exerciseID]
	if !ok || ex.UserID != userID {
		return false, nil
	}
	delete(s.exercises, exerciseID)
	return true, nil
}
