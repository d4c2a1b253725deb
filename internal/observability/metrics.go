// Package observability holds process-wide Prometheus collectors for the
// workout aggregate.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittracker",
		Subsystem: "workouts",
		Name:      "last_workout_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout written to storage.",
	})
	caloriesAttached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "workouts",
		Name:      "calories_attached_total",
		Help:      "Sum of calories added to workouts through attached exercises.",
	})
	exercisesAttached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "workouts",
		Name:      "exercises_attached_total",
		Help:      "Number of exercise entries attached to workouts.",
	})
)

func init() {
	prometheus.MustRegister(workoutPersistGauge, caloriesAttached, exercisesAttached)
}

// RecordWorkoutPersisted updates the persistence watermark gauge.
func RecordWorkoutPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutPersistGauge.Set(float64(ts.Unix()))
}

// RecordCaloriesAttached counts one attached entry and its calories.
func RecordCaloriesAttached(calories int) {
	exercisesAttached.Inc()
	if calories > 0 {
		caloriesAttached.Add(float64(calories))
	}
}
