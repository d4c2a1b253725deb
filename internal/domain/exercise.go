package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Exercise is a user-authored exercise definition, independent of the catalog.
type Exercise struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Category    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExerciseInput carries the writable exercise fields.
type ExerciseInput struct {
	Name        string
	Description string
	Category    string
}

// ExerciseRepository persists user-authored exercises scoped by owner.
type ExerciseRepository interface {
	CreateExercise(ctx context.Context, exercise Exercise) error
	ListExercises(ctx context.Context, userID string) ([]Exercise, error)
	GetExercise(ctx context.Context, userID, exerciseID string) (*Exercise, error)
	UpdateExercise(ctx context.Context, userID, exerciseID string, input ExerciseInput, now time.Time) (*Exercise, error)
	DeleteExercise(ctx context.Context, userID, exerciseID string) (bool, error)
}

// ExerciseService manages user-authored exercises.
type ExerciseService struct {
	repo ExerciseRepository
	now  func() time.Time
}

// NewExerciseService constructs an ExerciseService.
func NewExerciseService(repo ExerciseRepository) *ExerciseService {
	return &ExerciseService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (in *ExerciseInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return Validation("name is required")
	}
	return nil
}

// Create stores a new exercise.
func (s *ExerciseService) Create(ctx context.Context, userID string, in ExerciseInput) (*Exercise, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	ex := Exercise{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateExercise(ctx, ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

// List returns the caller's exercises ordered by name.
func (s *ExerciseService) List(ctx context.Context, userID string) ([]Exercise, error) {
	return s.repo.ListExercises(ctx, userID)
}

// Get returns one exercise.
func (s *ExerciseService) Get(ctx context.Context, userID, exerciseID string) (*Exercise, error) {
	ex, err := s.repo.GetExercise(ctx, userID, exerciseID)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, NotFound("exercise")
	}
	return ex, nil
}

// Update replaces the exercise's writable fields.
func (s *ExerciseService) Update(ctx context.Context, userID, exerciseID string, in ExerciseInput) (*Exercise, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	ex, err := s.repo.UpdateExercise(ctx, userID, exerciseID, in, s.now())
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, NotFound("exercise")
	}
	return ex, nil
}

// Delete removes an exercise.
func (s *ExerciseService) Delete(ctx context.Context, userID, exerciseID string) error {
	ok, err := s.repo.DeleteExercise(ctx, userID, exerciseID)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("exercise")
	}
	return nil
}
