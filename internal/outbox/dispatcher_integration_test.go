//go:build integration

package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/events"
	"example.com/fittracker/internal/testsupport"
)

func TestDispatcher(t *testing.T) {
	pool := testsupport.StartPostgres(t)
	ctx := context.Background()

	t.Run("publishes with headers and wire framing", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		userID := uuid.NewString()
		workoutID := uuid.NewString()
		require.NotZero(t, seedOutbox(t, ctx, pool, userID, workoutID, events.WorkoutCreated))

		producer := &stubProducer{}
		registry := &stubRegistry{id: 42}
		dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

		beforeDelivered := testutil.ToFloat64(deliveredCounter)
		beforeHistogram := histogramSampleCount(t)

		require.NoError(t, dispatcher.processBatch(ctx))

		require.Len(t, producer.writes, 1)
		require.Equal(t, events.DefaultTopic, producer.writes[0].topic)
		require.Len(t, producer.writes[0].messages, 1)

		msg := producer.writes[0].messages[0]
		require.Equal(t, workoutID, string(msg.Key))
		require.Equal(t, byte(0), msg.Value[0])
		require.Equal(t, uint32(42), binary.BigEndian.Uint32(msg.Value[1:5]))
		require.True(t, json.Valid(msg.Value[5:]))

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		require.Equal(t, events.WorkoutCreated, headers[events.HeaderEventType])
		require.Equal(t, userID, headers[events.HeaderUserID])
		require.Equal(t, events.SubjectFor(events.DefaultTopic, events.WorkoutCreated), headers[events.HeaderSchemaSubject])

		require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(deliveredCounter), 0.0001)
		require.Greater(t, histogramSampleCount(t), beforeHistogram)

		var published int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
		require.Equal(t, 1, published)

		// A second pass finds nothing left to send.
		require.NoError(t, dispatcher.processBatch(ctx))
		require.Len(t, producer.writes, 1)
	})

	t.Run("batch duration includes delivery time", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), events.WorkoutCreated))

		producer := &stubProducer{delay: 100 * time.Millisecond}
		dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 3}, 10*time.Millisecond, 5)

		beforeSum := histogramSampleSum(t)
		require.NoError(t, dispatcher.processBatch(ctx))
		require.Len(t, producer.writes, 1)
		require.GreaterOrEqual(t, histogramSampleSum(t)-beforeSum, 0.1)
	})

	t.Run("routes failed batches to the dlq", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		userID := uuid.NewString()
		require.NotZero(t, seedOutbox(t, ctx, pool, userID, uuid.NewString(), events.WorkoutExerciseAttached))

		producer := &stubProducer{err: errors.New("kafka write failed")}
		dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

		beforeFailed := testutil.ToFloat64(failedCounter)
		beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(events.DefaultTopic))

		require.NoError(t, dispatcher.processBatch(ctx))

		require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
		require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(events.DefaultTopic)), 0.0001)

		var dlqCount int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE user_id = $1`, userID).Scan(&dlqCount))
		require.Equal(t, 1, dlqCount)
	})

	t.Run("caches schema ids across a batch", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		userID := uuid.NewString()
		require.NotZero(t, seedOutbox(t, ctx, pool, userID, uuid.NewString(), events.WorkoutCreated))
		require.NotZero(t, seedOutbox(t, ctx, pool, userID, uuid.NewString(), events.WorkoutCreated))

		producer := &stubProducer{}
		registry := &stubRegistry{id: 21}
		dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

		require.NoError(t, dispatcher.processBatch(ctx))

		require.Len(t, producer.writes, 1)
		require.Len(t, producer.writes[0].messages, 2)
		require.Len(t, registry.calls, 1)
	})

	t.Run("unknown event type goes to the dlq", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		eventID := seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), "workout.unknown")

		producer := &stubProducer{}
		registry := &stubRegistry{id: 99}
		dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

		require.NoError(t, dispatcher.processBatch(ctx))
		require.Empty(t, producer.writes)
		require.Empty(t, registry.calls)

		var reason string
		require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&reason))
		require.Contains(t, reason, "no schema metadata for event_type=workout.unknown")
	})

	t.Run("fresh claims are not picked up twice", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), events.WorkoutCreated))

		dispatcher := NewDispatcher(pool, &stubProducer{}, &stubRegistry{id: 1}, 10*time.Millisecond, 5)
		claimed, err := dispatcher.fetchAndClaim(ctx)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		again, err := dispatcher.fetchAndClaim(ctx)
		require.NoError(t, err)
		require.Empty(t, again)
	})
}

func TestDLQManager(t *testing.T) {
	pool := testsupport.StartPostgres(t)
	ctx := context.Background()

	failOnce := func(t *testing.T) {
		t.Helper()
		require.NotZero(t, seedOutbox(t, ctx, pool, uuid.NewString(), uuid.NewString(), events.WorkoutCreated))
		dispatcher := NewDispatcher(pool, &stubProducer{err: errors.New("broker down")}, &stubRegistry{id: 3}, 10*time.Millisecond, 5)
		require.NoError(t, dispatcher.processBatch(ctx))
	}

	t.Run("requeues and the replay publishes", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		failOnce(t)

		before := testutil.ToFloat64(replayOutcomes.WithLabelValues(events.WorkoutCreated, outcomeRequeued))
		manager := NewDLQManager(pool, 5, time.Second)
		replayed, err := manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, replayed)
		require.InDelta(t, before+1, testutil.ToFloat64(replayOutcomes.WithLabelValues(events.WorkoutCreated, outcomeRequeued)), 0.0001)
		require.Zero(t, testutil.ToFloat64(pendingReplays))

		var dlqCount, pending int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
		require.Zero(t, dlqCount)
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND dedupe_key IS NULL`).Scan(&pending))
		require.Equal(t, 1, pending)

		producer := &stubProducer{}
		dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 3}, 10*time.Millisecond, 5)
		require.NoError(t, dispatcher.processBatch(ctx))
		require.Len(t, producer.writes, 1)
	})

	t.Run("quarantines after the retry limit", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		failOnce(t)
		_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 3`)
		require.NoError(t, err)

		before := testutil.ToFloat64(replayOutcomes.WithLabelValues(events.WorkoutCreated, outcomeQuarantined))
		manager := NewDLQManager(pool, 3, time.Second)
		processed, err := manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, processed)
		require.InDelta(t, before+1, testutil.ToFloat64(replayOutcomes.WithLabelValues(events.WorkoutCreated, outcomeQuarantined)), 0.0001)

		var reason string
		require.NoError(t, pool.QueryRow(ctx, `SELECT quarantine_reason FROM outbox_dlq WHERE quarantined_at IS NOT NULL`).Scan(&reason))
		require.Equal(t, "retry limit reached", reason)

		processed, err = manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.Zero(t, processed)
	})

	t.Run("schedules a retry when requeue fails", func(t *testing.T) {
		testsupport.ResetTables(t, pool)
		failOnce(t)
		_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET schema_subject = ''`)
		require.NoError(t, err)

		before := testutil.ToFloat64(replayOutcomes.WithLabelValues(events.WorkoutCreated, outcomeRetryScheduled))
		manager := NewDLQManager(pool, 5, time.Minute)
		_, err = manager.RunOnce(ctx, 10)
		require.NoError(t, err)
		require.InDelta(t, before+1, testutil.ToFloat64(replayOutcomes.WithLabelValues(events.WorkoutCreated, outcomeRetryScheduled)), 0.0001)
		require.Equal(t, 1.0, testutil.ToFloat64(pendingReplays))

		var retries int
		var nextRetry time.Time
		require.NoError(t, pool.QueryRow(ctx, `SELECT retry_count, next_retry_at FROM outbox_dlq`).Scan(&retries, &nextRetry))
		require.Equal(t, 1, retries)
		require.True(t, nextRetry.After(time.Now().Add(30*time.Second)))
	})
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	delay  time.Duration
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: append([]kafka.Message(nil), msgs...)})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	calls []string
}

func (s *stubRegistry) EnsureSchema(_ context.Context, subject string, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, subject)
	return s.id, nil
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	return metric.GetHistogram().GetSampleCount()
}

func histogramSampleSum(t *testing.T) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	return metric.GetHistogram().GetSampleSum()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID, workoutID, eventType string) int64 {
	t.Helper()

	payload, err := json.Marshal(events.WorkoutDeletedPayload{WorkoutID: workoutID, UserID: userID, OccurredAt: time.Now().UTC()})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ($1,'workout',$2,$3,$4,$5,$6,$7)
         RETURNING event_id`,
		userID, workoutID, eventType, events.DefaultTopic, events.SubjectFor(events.DefaultTopic, eventType), workoutID, payload,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}
