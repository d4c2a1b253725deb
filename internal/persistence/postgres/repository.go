// Package postgres implements the fittracker repositories on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/events"
)

var (
	_ domain.UserRepository     = (*Repository)(nil)
	_ domain.WorkoutRepository  = (*Repository)(nil)
	_ domain.GoalRepository     = (*Repository)(nil)
	_ domain.ExerciseRepository = (*Repository)(nil)
	_ domain.StatsRepository    = (*Repository)(nil)
	_ auth.RefreshTokenStore    = (*Repository)(nil)
)

// Repository provides Postgres-backed persistence for accounts, refresh
// tokens, workouts, goals, exercises, stats and outbox events.
type Repository struct {
	pool  *pgxpool.Pool
	topic string
}

// Option customises a Repository.
type Option func(*Repository)

// WithEventTopic overrides the Kafka topic recorded on outbox rows.
func WithEventTopic(topic string) Option {
	return func(r *Repository) {
		if topic != "" {
			r.topic = topic
		}
	}
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, opts ...Option) *Repository {
	r := &Repository{pool: pool, topic: events.DefaultTopic}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	URL              string
	MaxConns         int32
	StatementTimeout time.Duration
}

// NewPool opens a pgx pool with the server-side statement timeout applied to
// every connection.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.StatementTimeout > 0 {
		pcfg.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// errNoMatch aborts a transaction whose guarded statement matched no row.
var errNoMatch = errors.New("no matching row")

// withTx runs fn inside a transaction. The transaction is rolled back when fn
// returns an error or panics and committed otherwise.
func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type outboxRecord struct {
	UserID      string
	AggregateID string
	SubjectID   string
	EventType   string
	OccurredAt  time.Time
	Payload     interface{}
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	if _, ok := events.Schemas[rec.EventType]; !ok {
		return fmt.Errorf("unknown event type: %s", rec.EventType)
	}
	body, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}

	subject := rec.SubjectID
	if subject == "" {
		subject = rec.AggregateID
	}
	dedupeKey := fmt.Sprintf("%s:%s:%d", subject, rec.EventType, rec.OccurredAt.UnixNano())

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		rec.UserID,
		"workout",
		rec.AggregateID,
		rec.EventType,
		r.topic,
		events.SubjectFor(r.topic, rec.EventType),
		rec.AggregateID,
		body,
		dedupeKey,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// validIDs reports whether every id parses as a UUID. Malformed path
// parameters are treated as misses instead of reaching the database.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
