package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCaloriesAttached(t *testing.T) {
	beforeEntries := testutil.ToFloat64(exercisesAttached)
	beforeCalories := testutil.ToFloat64(caloriesAttached)

	RecordCaloriesAttached(175)
	RecordCaloriesAttached(0)

	require.Equal(t, beforeEntries+2, testutil.ToFloat64(exercisesAttached))
	require.Equal(t, beforeCalories+175, testutil.ToFloat64(caloriesAttached))
}

func TestRecordWorkoutPersistedIgnoresZeroTime(t *testing.T) {
	ts := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	RecordWorkoutPersisted(ts)
	RecordWorkoutPersisted(time.Time{})

	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(workoutPersistGauge))
}
