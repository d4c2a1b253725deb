package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/fittracker/internal/domain"
)

const exerciseColumns = `id, user_id, name, COALESCE(description, ''), COALESCE(category, ''), created_at, updated_at`

func scanExercise(row pgx.Row) (*domain.Exercise, error) {
	var ex domain.Exercise
	if err := row.Scan(&ex.ID, &ex.UserID, &ex.Name, &ex.Description, &ex.Category, &ex.CreatedAt, &ex.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ex, nil
}

func (r *Repository) CreateExercise(ctx context.Context, ex domain.Exercise) error {
	const stmt = `INSERT INTO exercises (id, user_id, name, description, category, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, stmt, ex.ID, ex.UserID, ex.Name, nullIfEmpty(ex.Description), nullIfEmpty(ex.Category), ex.CreatedAt, ex.UpdatedAt)
	return err
}

func (r *Repository) ListExercises(ctx context.Context, userID string) ([]domain.Exercise, error) {
	out := []domain.Exercise{}
	if !validIDs(userID) {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE user_id=$1 ORDER BY name, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ex)
	}
	return out, rows.Err()
}

func (r *Repository) GetExercise(ctx context.Context, userID, exerciseID string) (*domain.Exercise, error) {
	if !validIDs(userID, exerciseID) {
		return nil, nil
	}
	return scanExercise(r.pool.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id=$1 AND user_id=$2`, exerciseID, userID))
}

func (r *Repository) UpdateExercise(ctx context.Context, userID, exerciseID string, in domain.ExerciseInput, now time.Time) (*domain.Exercise, error) {
	if !validIDs(userID, exerciseID) {
		return nil, nil
	}
	const stmt = `UPDATE exercises SET name=$3, description=$4, category=$5, updated_at=$6
        WHERE id=$1 AND user_id=$2
        RETURNING ` + exerciseColumns
	return scanExercise(r.pool.QueryRow(ctx, stmt, exerciseID, userID, in.Name, nullIfEmpty(in.Description), nullIfEmpty(in.Category), now))
}

func (r *Repository) DeleteExercise(ctx context.Context, userID, exerciseID string) (bool, error) {
	if !validIDs(userID, exerciseID) {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM exercises WHERE id=$1 AND user_id=$2`, exerciseID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
