//go:build integration

// Package testsupport starts throwaway infrastructure for integration tests.
package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fittracker/db"
)

// StartPostgres runs a disposable Postgres container, applies the embedded
// migrations and returns a pool closed at test cleanup.
func StartPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fittracker"),
		postgrescontainer.WithUsername("fittracker"),
		postgrescontainer.WithPassword("fittracker"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool := waitForDatabase(t, ctx, connStr)
	t.Cleanup(pool.Close)

	_, err = db.Apply(ctx, pool)
	require.NoError(t, err)
	return pool
}

// ResetTables truncates every application table between subtests.
func ResetTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE users, refresh_tokens, workouts, workout_exercises, goals, exercises, outbox, outbox_dlq, workout_event_log RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func waitForDatabase(t *testing.T, ctx context.Context, connStr string) *pgxpool.Pool {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool
			}
			pool.Close()
		}
		if time.Now().After(deadline) {
			require.NoError(t, err)
		}
		time.Sleep(time.Second)
	}
}
