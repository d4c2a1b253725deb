package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/fittracker/internal/domain"
)

const goalColumns = `id, user_id, type, target_value, start_date, end_date, status, created_at, updated_at`

func scanGoal(row pgx.Row) (*domain.Goal, error) {
	var (
		g      domain.Goal
		status string
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Type, &g.TargetValue, &g.StartDate, &g.EndDate, &status, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	g.Status = domain.GoalStatus(status)
	return &g, nil
}

func (r *Repository) CreateGoal(ctx context.Context, g domain.Goal) error {
	const stmt = `INSERT INTO goals (id, user_id, type, target_value, start_date, end_date, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, stmt, g.ID, g.UserID, g.Type, g.TargetValue, g.StartDate, g.EndDate, string(g.Status), g.CreatedAt, g.UpdatedAt)
	return err
}

func (r *Repository) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	goals := []domain.Goal{}
	if !validIDs(userID) {
		return goals, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (r *Repository) GetGoal(ctx context.Context, userID, goalID string) (*domain.Goal, error) {
	if !validIDs(userID, goalID) {
		return nil, nil
	}
	return scanGoal(r.pool.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id=$1 AND user_id=$2`, goalID, userID))
}

func (r *Repository) UpdateGoal(ctx context.Context, userID, goalID string, in domain.GoalInput, now time.Time) (*domain.Goal, error) {
	if !validIDs(userID, goalID) {
		return nil, nil
	}
	const stmt = `UPDATE goals SET type=$3, target_value=$4, start_date=$5, end_date=$6, status=$7, updated_at=$8
        WHERE id=$1 AND user_id=$2
        RETURNING ` + goalColumns
	return scanGoal(r.pool.QueryRow(ctx, stmt, goalID, userID, in.Type, in.TargetValue, in.StartDate, in.EndDate, string(in.Status), now))
}

func (r *Repository) DeleteGoal(ctx context.Context, userID, goalID string) (bool, error) {
	if !validIDs(userID, goalID) {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM goals WHERE id=$1 AND user_id=$2`, goalID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
