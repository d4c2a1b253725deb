//go:build integration

package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/fittracker/internal/consumer"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/events"
	"example.com/fittracker/internal/persistence/postgres"
	"example.com/fittracker/internal/testsupport"
)

// TestWorkoutEventsReachTheEventLog drives a workout write through the outbox,
// a real broker and the consumer into workout_event_log.
func TestWorkoutEventsReachTheEventLog(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pool := testsupport.StartPostgres(t)
	repo := postgres.NewRepository(pool)

	kc, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0", kafkacontainer.WithClusterID("fittracker-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kc.Terminate(context.Background()) })

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: events.DefaultTopic, NumPartitions: 1, ReplicationFactor: 1}))
	require.NoError(t, conn.Close())

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := domain.User{ID: uuid.NewString(), Username: "pipeline", Email: "pipeline@example.com", PasswordHash: "x", FirstName: "Pi", LastName: "Pe", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateUser(ctx, user))
	workout := domain.Workout{ID: uuid.NewString(), UserID: user.ID, Name: "Leg Day", Date: now.Truncate(24 * time.Hour), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.CreateWorkout(ctx, workout))

	producer := NewKafkaProducer(brokers)
	t.Cleanup(func() { _ = producer.Close() })
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 12}, 10*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "fittracker-pipeline-test",
		Topic:       events.DefaultTopic,
		StartOffset: kafka.FirstOffset,
	})
	t.Cleanup(func() { _ = reader.Close() })

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = consumer.NewProcessor(reader, consumer.NewPersistenceHandler(pool)).Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		var eventType string
		var schemaID int
		err := pool.QueryRow(ctx, `SELECT event_type, schema_id FROM workout_event_log WHERE workout_id = $1`, workout.ID).Scan(&eventType, &schemaID)
		return err == nil && eventType == events.WorkoutCreated && schemaID == 12
	}, 90*time.Second, time.Second)
}
