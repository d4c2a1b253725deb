package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/fittracker/internal/catalog"
	"example.com/fittracker/internal/observability"
)

// Workout is one training session owned by a user. CaloriesBurned is the sum
// of its entries' calories plus any baseline supplied at creation.
type Workout struct {
	ID             string
	UserID         string
	Name           string
	Description    string
	Date           time.Time
	Duration       int
	CaloriesBurned int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Exercises      []WorkoutExercise
}

// WorkoutExercise is an exercise entry attached to a workout. ExerciseID is
// the catalog reference, not a local foreign key.
type WorkoutExercise struct {
	ID             string
	WorkoutID      string
	ExerciseID     string
	Name           string
	Sets           int
	Reps           int
	Weight         float64
	Duration       float64
	Notes          string
	MET            float64
	CaloriesBurned int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Cursor models the workout list pagination token.
type Cursor struct {
	Date time.Time
	ID   string
}

// WorkoutFields are the caller-editable workout columns.
type WorkoutFields struct {
	Name        string
	Description string
	Date        time.Time
	Duration    int
}

// CreateWorkoutInput captures the payload for a new workout.
type CreateWorkoutInput struct {
	WorkoutFields
	CaloriesBurned int
}

// AttachExerciseInput describes an exercise entry to attach.
type AttachExerciseInput struct {
	ExerciseRef string
	Name        string
	Sets        int
	Reps        int
	Weight      float64
	Duration    float64
	Notes       string
}

// ExerciseEntryUpdate carries the editable fields of an entry.
type ExerciseEntryUpdate struct {
	Sets     int
	Reps     int
	Weight   float64
	Duration float64
	Notes    string
}

// WorkoutRepository persists the workout aggregate. Implementations scope every
// statement by both the workout and the owning user. Lookups and mutations
// that match nothing return a nil result (or false) and a nil error.
type WorkoutRepository interface {
	CreateWorkout(ctx context.Context, workout Workout) error
	GetWorkout(ctx context.Context, userID, workoutID string) (*Workout, error)
	ListWorkouts(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error)
	UpdateWorkout(ctx context.Context, userID, workoutID string, fields WorkoutFields, now time.Time) (*Workout, error)
	DeleteWorkout(ctx context.Context, userID, workoutID string) (bool, error)
	ListWorkoutExercises(ctx context.Context, userID, workoutID string) ([]WorkoutExercise, error)

	// AttachExercise inserts the entry and adds its calories to the parent
	// total in one transaction.
	AttachExercise(ctx context.Context, userID string, entry WorkoutExercise) (bool, error)
	// UpdateExerciseEntry locks the entry, applies mutate, and moves the
	// parent total by the calorie difference in one transaction.
	UpdateExerciseEntry(ctx context.Context, userID, workoutID, entryID string, mutate func(*WorkoutExercise)) (*WorkoutExercise, error)
	// DetachExercise deletes the entry and subtracts its calories from the
	// parent total in one transaction.
	DetachExercise(ctx context.Context, userID, workoutID, entryID string) (*WorkoutExercise, error)
}

// ExerciseCatalog resolves catalog references.
type ExerciseCatalog interface {
	GetByID(ctx context.Context, ref string) (*catalog.Exercise, error)
}

// Composer owns the workout aggregate and its calorie total.
type Composer struct {
	repo    WorkoutRepository
	catalog ExerciseCatalog
	now     func() time.Time
}

// NewComposer constructs a Composer.
func NewComposer(repo WorkoutRepository, cat ExerciseCatalog) *Composer {
	return &Composer{
		repo:    repo,
		catalog: cat,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (f WorkoutFields) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return Validation("name is required")
	}
	if f.Duration < 0 {
		return Validation("duration must be >= 0")
	}
	return nil
}

// CreateWorkout inserts a workout owned by userID.
func (c *Composer) CreateWorkout(ctx context.Context, userID string, input CreateWorkoutInput) (*Workout, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.CaloriesBurned < 0 {
		return nil, Validation("calories_burned must be >= 0")
	}

	now := c.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}
	workout := Workout{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           strings.TrimSpace(input.Name),
		Description:    input.Description,
		Date:           truncateDay(date),
		Duration:       input.Duration,
		CaloriesBurned: input.CaloriesBurned,
		CreatedAt:      now,
		UpdatedAt:      now,
		Exercises:      []WorkoutExercise{},
	}

	if err := c.repo.CreateWorkout(ctx, workout); err != nil {
		return nil, err
	}
	observability.RecordWorkoutPersisted(now)
	return &workout, nil
}

// GetWorkout returns the workout with its entries in attach order.
func (c *Composer) GetWorkout(ctx context.Context, userID, workoutID string) (*Workout, error) {
	workout, err := c.repo.GetWorkout(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if workout == nil {
		return nil, NotFound("workout")
	}
	entries, err := c.repo.ListWorkoutExercises(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	workout.Exercises = entries
	return workout, nil
}

// ListWorkouts pages through the user's workouts, newest first.
func (c *Composer) ListWorkouts(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Workout, *Cursor, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return c.repo.ListWorkouts(ctx, userID, cursor, limit)
}

// UpdateWorkout edits the descriptive fields. The calorie total is not
// writable here.
func (c *Composer) UpdateWorkout(ctx context.Context, userID, workoutID string, fields WorkoutFields) (*Workout, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}
	if fields.Date.IsZero() {
		return nil, Validation("date is required")
	}
	fields.Name = strings.TrimSpace(fields.Name)
	fields.Date = truncateDay(fields.Date)

	workout, err := c.repo.UpdateWorkout(ctx, userID, workoutID, fields, c.now())
	if err != nil {
		return nil, err
	}
	if workout == nil {
		return nil, NotFound("workout")
	}
	return workout, nil
}

// DeleteWorkout removes the workout and its entries.
func (c *Composer) DeleteWorkout(ctx context.Context, userID, workoutID string) error {
	deleted, err := c.repo.DeleteWorkout(ctx, userID, workoutID)
	if err != nil {
		return err
	}
	if !deleted {
		return NotFound("workout")
	}
	return nil
}

func (in AttachExerciseInput) validate() error {
	if strings.TrimSpace(in.ExerciseRef) == "" {
		return Validation("exercise_id is required")
	}
	return validateEffort(in.Sets, in.Reps, in.Weight, in.Duration)
}

func validateEffort(sets, reps int, weight, duration float64) error {
	if sets < 0 || reps < 0 {
		return Validation("sets and reps must be >= 0")
	}
	if weight < 0 || duration < 0 {
		return Validation("weight and duration must be >= 0")
	}
	return nil
}

// AttachExercise validates the catalog reference, computes the entry's
// calories and commits the entry together with the parent total.
func (c *Composer) AttachExercise(ctx context.Context, userID, workoutID string, input AttachExerciseInput) (*WorkoutExercise, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	workout, err := c.repo.GetWorkout(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if workout == nil {
		return nil, NotFound("workout")
	}

	ref := strings.TrimSpace(input.ExerciseRef)
	meta, err := c.catalog.GetByID(ctx, ref)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, invalidReference(ref, err)
		}
		return nil, upstreamUnavailable(err)
	}

	met := meta.METOrDefault(DefaultMET)
	name := firstNonEmpty(meta.Name, input.Name, ref)
	now := c.now()
	entry := WorkoutExercise{
		ID:             uuid.NewString(),
		WorkoutID:      workoutID,
		ExerciseID:     ref,
		Name:           name,
		Sets:           input.Sets,
		Reps:           input.Reps,
		Weight:         input.Weight,
		Duration:       input.Duration,
		Notes:          input.Notes,
		MET:            met,
		CaloriesBurned: EstimateCalories(met, input.Weight, input.Duration),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	attached, err := c.repo.AttachExercise(ctx, userID, entry)
	if err != nil {
		return nil, err
	}
	if !attached {
		return nil, NotFound("workout")
	}
	observability.RecordCaloriesAttached(entry.CaloriesBurned)
	return &entry, nil
}

// UpdateExerciseEntry edits an entry and recomputes its calories from the
// MET stored at attach time; the parent total moves by the difference.
func (c *Composer) UpdateExerciseEntry(ctx context.Context, userID, workoutID, entryID string, input ExerciseEntryUpdate) (*WorkoutExercise, error) {
	if err := validateEffort(input.Sets, input.Reps, input.Weight, input.Duration); err != nil {
		return nil, err
	}
	if err := c.requireWorkout(ctx, userID, workoutID); err != nil {
		return nil, err
	}

	now := c.now()
	entry, err := c.repo.UpdateExerciseEntry(ctx, userID, workoutID, entryID, func(e *WorkoutExercise) {
		e.Sets = input.Sets
		e.Reps = input.Reps
		e.Weight = input.Weight
		e.Duration = input.Duration
		e.Notes = input.Notes
		e.CaloriesBurned = EstimateCalories(e.MET, e.Weight, e.Duration)
		e.UpdatedAt = now
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, NotFound("exercise entry")
	}
	return entry, nil
}

// DetachExercise removes an entry and its calories from the workout.
func (c *Composer) DetachExercise(ctx context.Context, userID, workoutID, entryID string) error {
	if err := c.requireWorkout(ctx, userID, workoutID); err != nil {
		return err
	}
	entry, err := c.repo.DetachExercise(ctx, userID, workoutID, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return NotFound("exercise entry")
	}
	return nil
}

func (c *Composer) requireWorkout(ctx context.Context, userID, workoutID string) error {
	workout, err := c.repo.GetWorkout(ctx, userID, workoutID)
	if err != nil {
		return err
	}
	if workout == nil {
		return NotFound("workout")
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
