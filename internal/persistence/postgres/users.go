package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/domain"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, age, height::float8, weight::float8, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Age, &u.Height, &u.Weight, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts an account. Duplicate email or username is a Conflict.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	const stmt = `INSERT INTO users (id, username, email, password_hash, first_name, last_name, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := r.pool.Exec(ctx, stmt, u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.Conflict("a user with this email or username already exists")
	}
	return err
}

// FindUserByEmail looks an account up by its normalised email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

// FindUserByID looks an account up by ID.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validIDs(id) {
		return nil, nil
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// UpdateProfile applies the non-nil fields of update.
func (r *Repository) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate, now time.Time) (*domain.User, error) {
	if !validIDs(userID) {
		return nil, nil
	}
	const stmt = `UPDATE users SET
            first_name = COALESCE($2::text, first_name),
            last_name  = COALESCE($3::text, last_name),
            age        = COALESCE($4::int, age),
            height     = COALESCE($5::float8, height),
            weight     = COALESCE($6::float8, weight),
            updated_at = $7
        WHERE id=$1
        RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, stmt, userID, update.FirstName, update.LastName, update.Age, update.Height, update.Weight, now))
}

// CreateRefreshToken persists a new unused refresh token.
func (r *Repository) CreateRefreshToken(ctx context.Context, t auth.RefreshToken) error {
	const stmt = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, used, created_at)
        VALUES ($1,$2,$3,$4,false,$5)`
	_, err := r.pool.Exec(ctx, stmt, t.ID, t.UserID, t.Token, t.ExpiresAt, t.CreatedAt)
	return err
}

// RevokeRefreshToken marks token used so it can no longer be rotated.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `UPDATE refresh_tokens SET used=true WHERE token=$1`, token)
	return err
}

// RotateRefreshToken consumes presented with a conditional update and stores
// next for the same user in one transaction. Row locking makes concurrent
// rotations of the same token serialise; the losers see used=true.
func (r *Repository) RotateRefreshToken(ctx context.Context, presented string, next auth.RefreshToken, now time.Time) (string, error) {
	var userID string
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		const consume = `UPDATE refresh_tokens SET used=true
            WHERE token=$1 AND used=false AND expires_at > $2
            RETURNING user_id`
		if err := tx.QueryRow(ctx, consume, presented, now).Scan(&userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return auth.ErrUnauthenticated
			}
			return err
		}

		const insert = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, used, created_at)
            VALUES ($1,$2,$3,$4,false,$5)`
		_, err := tx.Exec(ctx, insert, next.ID, userID, next.Token, next.ExpiresAt, next.CreatedAt)
		return err
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}
