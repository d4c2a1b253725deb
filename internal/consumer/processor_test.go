package consumer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/events"
)

func framed(schemaID uint32, payload string) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	return value
}

func workoutRecord(offset int64, eventType string, value []byte) kafka.Message {
	return kafka.Message{
		Topic:     events.DefaultTopic,
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(eventType)},
			{Key: events.HeaderUserID, Value: []byte("user-1")},
			{Key: events.HeaderSchemaSubject, Value: []byte(events.SubjectFor(events.DefaultTopic, eventType))},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"workout_id":"w-1","user_id":"user-1"}`
	reader := &stubReader{messages: []kafka.Message{workoutRecord(10, events.WorkoutCreated, framed(42, payload))}}
	handler := &stubHandler{}
	before := testutil.ToFloat64(consumedEvents.WithLabelValues(events.WorkoutCreated, resultStored))

	err := NewProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.InDelta(t, before+1, testutil.ToFloat64(consumedEvents.WithLabelValues(events.WorkoutCreated, resultStored)), 0.0001)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.WorkoutCreated, handler.last.EventType)
	require.Equal(t, "user-1", handler.last.UserID)
	require.Equal(t, "w-1", handler.last.WorkoutID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorRetriesThenSkipsFailingRecord(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{workoutRecord(20, events.WorkoutDeleted, framed(9, `{"workout_id":"w-2"}`))}}
	handler := &stubHandler{err: errors.New("boom")}
	var logs bytes.Buffer

	beforeSkipped := testutil.ToFloat64(consumedEvents.WithLabelValues(events.WorkoutDeleted, resultSkipped))
	beforeStored := testutil.ToFloat64(consumedEvents.WithLabelValues(events.WorkoutDeleted, resultStored))

	err := NewProcessor(reader, handler,
		WithHandlerRetries(2, time.Millisecond),
		WithLogger(zerolog.New(&logs)),
	).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Contains(t, logs.String(), "handler failed after retries")
	require.InDelta(t, beforeSkipped+1, testutil.ToFloat64(consumedEvents.WithLabelValues(events.WorkoutDeleted, resultSkipped)), 0.0001)
	require.InDelta(t, beforeStored, testutil.ToFloat64(consumedEvents.WithLabelValues(events.WorkoutDeleted, resultStored)), 0.0001)
}

func TestProcessorRecoversOnRetry(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{workoutRecord(21, events.WorkoutCreated, framed(1, `{"workout_id":"w-3"}`))}}
	handler := &stubHandler{err: errors.New("transient"), failures: 1}

	err := NewProcessor(reader, handler, WithHandlerRetries(3, time.Millisecond)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

func TestProcessorCommitsMalformedRecords(t *testing.T) {
	noHeader := workoutRecord(30, events.WorkoutCreated, framed(1, `{}`))
	noHeader.Headers = nil

	reader := &stubReader{messages: []kafka.Message{
		workoutRecord(31, events.WorkoutCreated, []byte{0, 1}),
		workoutRecord(32, events.WorkoutCreated, append([]byte{1}, framed(1, `{}`)[1:]...)),
		workoutRecord(33, events.WorkoutCreated, framed(1, `not json`)),
		noHeader,
	}}
	handler := &stubHandler{}
	before := testutil.ToFloat64(malformedRecords)

	err := NewProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 4, reader.commitCalls)
	require.InDelta(t, before+4, testutil.ToFloat64(malformedRecords), 0.0001)
}

func TestDecodeMessageReadsHeadersAndFrame(t *testing.T) {
	msg, err := decodeMessage(workoutRecord(7, events.WorkoutExerciseAttached, framed(300, `{"workout_id":"w-9","entry_id":"e-1"}`)))
	require.NoError(t, err)
	require.Equal(t, 300, msg.SchemaID)
	require.Equal(t, "w-9", msg.WorkoutID)
	require.Equal(t, events.SubjectFor(events.DefaultTopic, events.WorkoutExerciseAttached), msg.SchemaSubject)
	require.Equal(t, int64(7), msg.Offset)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls    int
	err      error
	failures int
	last     Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.err != nil && (h.failures == 0 || h.calls <= h.failures) {
		return h.err
	}
	return nil
}
