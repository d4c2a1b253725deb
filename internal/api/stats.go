package api

import (
	"net/http"
	"strconv"
	"time"
)

// WorkoutSummaryView aggregates all of the caller's workouts.
type WorkoutSummaryView struct {
	TotalWorkouts int     `json:"total_workouts"`
	AvgDuration   float64 `json:"avg_duration"`
	AvgCalories   float64 `json:"avg_calories"`
	TotalCalories int     `json:"total_calories"`
	FirstWorkout  *Date   `json:"first_workout"`
	LastWorkout   *Date   `json:"last_workout"`
}

// ExerciseHistoryView is one past performance of an exercise.
type ExerciseHistoryView struct {
	WorkoutExerciseView
	WorkoutDate Date   `json:"workout_date"`
	WorkoutName string `json:"workout_name"`
}

// DailyStatView is one day of the monthly breakdown.
type DailyStatView struct {
	Day           Date    `json:"day"`
	WorkoutsCount int     `json:"workouts_count"`
	AvgDuration   float64 `json:"avg_duration"`
	TotalCalories int     `json:"total_calories"`
}

// FrequentExerciseView ranks an exercise by attach count.
type FrequentExerciseView struct {
	ExerciseID string  `json:"exercise_id"`
	Name       string  `json:"name"`
	Frequency  int     `json:"frequency"`
	AvgWeight  float64 `json:"avg_weight"`
	MaxWeight  float64 `json:"max_weight"`
}

func (h *Handler) workoutStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Stats.Summary(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WorkoutSummaryView{
		TotalWorkouts: summary.TotalWorkouts,
		AvgDuration:   summary.AvgDuration,
		AvgCalories:   summary.AvgCalories,
		TotalCalories: summary.TotalCalories,
		FirstWorkout:  optionalDate(summary.FirstWorkout),
		LastWorkout:   optionalDate(summary.LastWorkout),
	})
}

func (h *Handler) exerciseHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Stats.ExerciseHistory(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]ExerciseHistoryView, 0, len(history))
	for _, entry := range history {
		views = append(views, ExerciseHistoryView{
			WorkoutExerciseView: toWorkoutExerciseView(entry.WorkoutExercise),
			WorkoutDate:         Date{entry.WorkoutDate},
			WorkoutName:         entry.WorkoutName,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) monthlyStats(w http.ResponseWriter, r *http.Request) {
	year, ok := intParam(w, r, "year")
	if !ok {
		return
	}
	month, ok := intParam(w, r, "month")
	if !ok {
		return
	}

	days, err := h.Stats.Monthly(r.Context(), currentUser(r), year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]DailyStatView, 0, len(days))
	for _, day := range days {
		views = append(views, DailyStatView{
			Day:           Date{day.Day},
			WorkoutsCount: day.WorkoutsCount,
			AvgDuration:   day.AvgDuration,
			TotalCalories: day.TotalCalories,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) frequentExercises(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit")
	if !ok {
		return
	}

	exercises, err := h.Stats.Frequent(r.Context(), currentUser(r), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]FrequentExerciseView, 0, len(exercises))
	for _, ex := range exercises {
		views = append(views, FrequentExerciseView{
			ExerciseID: ex.ExerciseID,
			Name:       ex.Name,
			Frequency:  ex.Frequency,
			AvgWeight:  ex.AvgWeight,
			MaxWeight:  ex.MaxWeight,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// intParam reads an optional integer query parameter; absent means 0.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", name+" must be an integer")
		return 0, false
	}
	return value, true
}

func optionalDate(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{*t}
}
