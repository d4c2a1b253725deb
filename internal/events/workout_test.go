package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEverySchemaIsValidJSON(t *testing.T) {
	for eventType, schema := range Schemas {
		require.True(t, json.Valid([]byte(schema)), eventType)
	}
	require.Len(t, Schemas, 5)
}

func TestSubjectFor(t *testing.T) {
	require.Equal(t, "workout_events-workout.created", SubjectFor(DefaultTopic, WorkoutCreated))
}
