package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GoalStatus tracks a goal's lifecycle.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAbandoned GoalStatus = "abandoned"
)

// Goal is a user-defined training target.
type Goal struct {
	ID          string
	UserID      string
	Type        string
	TargetValue float64
	StartDate   time.Time
	EndDate     time.Time
	Status      GoalStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GoalInput carries the writable goal fields.
type GoalInput struct {
	Type        string
	TargetValue float64
	StartDate   time.Time
	EndDate     time.Time
	Status      GoalStatus
}

// GoalRepository persists goals scoped by owner.
type GoalRepository interface {
	CreateGoal(ctx context.Context, goal Goal) error
	ListGoals(ctx context.Context, userID string) ([]Goal, error)
	GetGoal(ctx context.Context, userID, goalID string) (*Goal, error)
	UpdateGoal(ctx context.Context, userID, goalID string, input GoalInput, now time.Time) (*Goal, error)
	DeleteGoal(ctx context.Context, userID, goalID string) (bool, error)
}

// GoalService manages goals.
type GoalService struct {
	repo GoalRepository
	now  func() time.Time
}

// NewGoalService constructs a GoalService.
func NewGoalService(repo GoalRepository) *GoalService {
	return &GoalService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (in *GoalInput) normalize() error {
	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" {
		return Validation("type is required")
	}
	if in.TargetValue <= 0 {
		return Validation("target_value must be > 0")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return Validation("start_date and end_date are required")
	}
	in.StartDate = truncateDay(in.StartDate)
	in.EndDate = truncateDay(in.EndDate)
	if in.EndDate.Before(in.StartDate) {
		return Validation("end_date must not be before start_date")
	}
	if in.Status == "" {
		in.Status = GoalActive
	}
	switch in.Status {
	case GoalActive, GoalCompleted, GoalAbandoned:
	default:
		return Validation("status must be one of active, completed, abandoned")
	}
	return nil
}

// Create stores a new goal.
func (s *GoalService) Create(ctx context.Context, userID string, in GoalInput) (*Goal, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	goal := Goal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        in.Type,
		TargetValue: in.TargetValue,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateGoal(ctx, goal); err != nil {
		return nil, err
	}
	return &goal, nil
}

// List returns the caller's goals, newest first.
func (s *GoalService) List(ctx context.Context, userID string) ([]Goal, error) {
	return s.repo.ListGoals(ctx, userID)
}

// Get returns one goal.
func (s *GoalService) Get(ctx context.Context, userID, goalID string) (*Goal, error) {
	goal, err := s.repo.GetGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, NotFound("goal")
	}
	return goal, nil
}

// Update replaces the goal's writable fields.
func (s *GoalService) Update(ctx context.Context, userID, goalID string, in GoalInput) (*Goal, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	goal, err := s.repo.UpdateGoal(ctx, userID, goalID, in, s.now())
	if err != nil {
		return nil, err
	}
	if goal == nil {
		return nil, NotFound("goal")
	}
	return goal, nil
}

// Delete removes a goal.
func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	ok, err := s.repo.DeleteGoal(ctx, userID, goalID)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("goal")
	}
	return nil
}
