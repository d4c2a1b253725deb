// Package events defines the workout event payloads written to the outbox
// and the routing metadata shared by producer and consumer.
package events

import "time"

// DefaultTopic carries every workout event, keyed by workout ID.
const DefaultTopic = "workout_events"

// Event types.
const (
	WorkoutCreated          = "workout.created"
	WorkoutDeleted          = "workout.deleted"
	WorkoutExerciseAttached = "workout.exercise_attached"
	WorkoutExerciseUpdated  = "workout.exercise_updated"
	WorkoutExerciseDetached = "workout.exercise_detached"
)

// Header keys set on every Kafka record.
const (
	HeaderEventType     = "event_type"
	HeaderUserID        = "user_id"
	HeaderSchemaSubject = "schema_subject"
)

// SubjectFor returns the schema registry subject for one event type on a
// topic. Each event type evolves under its own subject, so unrelated payload
// shapes never meet a compatibility check.
func SubjectFor(topic, eventType string) string {
	return topic + "-" + eventType
}

// WorkoutCreatedPayload is emitted when a workout is inserted.
type WorkoutCreatedPayload struct {
	WorkoutID      string    `json:"workout_id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Date           string    `json:"date"`
	Duration       int       `json:"duration"`
	CaloriesBurned int       `json:"calories_burned"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// WorkoutDeletedPayload is emitted when a workout and its entries are removed.
type WorkoutDeletedPayload struct {
	WorkoutID  string    `json:"workout_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WorkoutExerciseChangedPayload is emitted on attach, update and detach.
// CaloriesDelta is the amount the parent total moved by.
type WorkoutExerciseChangedPayload struct {
	WorkoutID      string    `json:"workout_id"`
	UserID         string    `json:"user_id"`
	EntryID        string    `json:"entry_id"`
	ExerciseID     string    `json:"exercise_id"`
	CaloriesBurned int       `json:"calories_burned"`
	CaloriesDelta  int       `json:"calories_delta"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Schemas maps each event type to the JSON schema registered for it.
var Schemas = map[string]string{
	WorkoutCreated:          workoutCreatedSchema,
	WorkoutDeleted:          workoutDeletedSchema,
	WorkoutExerciseAttached: workoutExerciseChangedSchema,
	WorkoutExerciseUpdated:  workoutExerciseChangedSchema,
	WorkoutExerciseDetached: workoutExerciseChangedSchema,
}

const workoutCreatedSchema = `{
  "type": "object",
  "title": "WorkoutCreated",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "name": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "duration": {"type": "integer"},
    "calories_burned": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "name", "date", "occurred_at"],
  "additionalProperties": false
}`

const workoutDeletedSchema = `{
  "type": "object",
  "title": "WorkoutDeleted",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "occurred_at"],
  "additionalProperties": false
}`

const workoutExerciseChangedSchema = `{
  "type": "object",
  "title": "WorkoutExerciseChanged",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "entry_id": {"type": "string"},
    "exercise_id": {"type": "string"},
    "calories_burned": {"type": "integer"},
    "calories_delta": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "entry_id", "exercise_id", "calories_delta", "occurred_at"],
  "additionalProperties": false
}`
