package api

import (
	"net/http"
	"strconv"
	"time"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/persistence"
)

// WorkoutRequest is the payload for creating or updating a workout.
// CaloriesBurned is only honoured on create.
type WorkoutRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Date           Date   `json:"date"`
	Duration       int    `json:"duration"`
	CaloriesBurned int    `json:"calories_burned"`
}

// AttachExerciseRequest is the payload for POST /api/workouts/{id}/exercises.
type AttachExerciseRequest struct {
	ExerciseID string  `json:"exercise_id"`
	Name       string  `json:"name"`
	Sets       int     `json:"sets"`
	Reps       int     `json:"reps"`
	Weight     float64 `json:"weight"`
	Duration   float64 `json:"duration"`
	Notes      string  `json:"notes"`
}

// UpdateEntryRequest edits an attached exercise.
type UpdateEntryRequest struct {
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Weight   float64 `json:"weight"`
	Duration float64 `json:"duration"`
	Notes    string  `json:"notes"`
}

// WorkoutView exposes a workout without its entries.
type WorkoutView struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Date           Date      `json:"date"`
	Duration       int       `json:"duration"`
	CaloriesBurned int       `json:"calories_burned"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WorkoutDetailView is a workout with its attached exercises.
type WorkoutDetailView struct {
	WorkoutView
	Exercises []WorkoutExerciseView `json:"exercises"`
}

// WorkoutExerciseView exposes one attached exercise.
type WorkoutExerciseView struct {
	ID             string    `json:"id"`
	WorkoutID      string    `json:"workout_id"`
	ExerciseID     string    `json:"exercise_id"`
	Name           string    `json:"name"`
	Sets           int       `json:"sets"`
	Reps           int       `json:"reps"`
	Weight         float64   `json:"weight"`
	Duration       float64   `json:"duration"`
	Notes          string    `json:"notes,omitempty"`
	MET            float64   `json:"met"`
	CaloriesBurned int       `json:"calories_burned"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListWorkoutsResponse packages a page of workouts.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func (req WorkoutRequest) fields() domain.WorkoutFields {
	return domain.WorkoutFields{
		Name:        req.Name,
		Description: req.Description,
		Date:        req.Date.Time,
		Duration:    req.Duration,
	}
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	var req WorkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	workout, err := h.Composer.CreateWorkout(r.Context(), currentUser(r), domain.CreateWorkoutInput{
		WorkoutFields:  req.fields(),
		CaloriesBurned: req.CaloriesBurned,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkoutDetailView(*workout))
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	workouts, next, err := h.Composer.ListWorkouts(r.Context(), currentUser(r), cursor, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]WorkoutView, 0, len(workouts))
	for _, workout := range workouts {
		items = append(items, toWorkoutView(workout))
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) getWorkout(w http.ResponseWriter, r *http.Request) {
	workout, err := h.Composer.GetWorkout(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutDetailView(*workout))
}

func (h *Handler) updateWorkout(w http.ResponseWriter, r *http.Request) {
	var req WorkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	workout, err := h.Composer.UpdateWorkout(r.Context(), currentUser(r), r.PathValue("id"), req.fields())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutView(*workout))
}

func (h *Handler) deleteWorkout(w http.ResponseWriter, r *http.Request) {
	if err := h.Composer.DeleteWorkout(r.Context(), currentUser(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "workout deleted"})
}

func (h *Handler) attachExercise(w http.ResponseWriter, r *http.Request) {
	var req AttachExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.Composer.AttachExercise(r.Context(), currentUser(r), r.PathValue("id"), domain.AttachExerciseInput{
		ExerciseRef: req.ExerciseID,
		Name:        req.Name,
		Sets:        req.Sets,
		Reps:        req.Reps,
		Weight:      req.Weight,
		Duration:    req.Duration,
		Notes:       req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkoutExerciseView(*entry))
}

func (h *Handler) updateExerciseEntry(w http.ResponseWriter, r *http.Request) {
	var req UpdateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.Composer.UpdateExerciseEntry(r.Context(), currentUser(r), r.PathValue("id"), r.PathValue("entry"), domain.ExerciseEntryUpdate{
		Sets:     req.Sets,
		Reps:     req.Reps,
		Weight:   req.Weight,
		Duration: req.Duration,
		Notes:    req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkoutExerciseView(*entry))
}

func (h *Handler) detachExercise(w http.ResponseWriter, r *http.Request) {
	if err := h.Composer.DetachExercise(r.Context(), currentUser(r), r.PathValue("id"), r.PathValue("entry")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "exercise removed from workout"})
}

func toWorkoutView(workout domain.Workout) WorkoutView {
	return WorkoutView{
		ID:             workout.ID,
		UserID:         workout.UserID,
		Name:           workout.Name,
		Description:    workout.Description,
		Date:           Date{workout.Date},
		Duration:       workout.Duration,
		CaloriesBurned: workout.CaloriesBurned,
		CreatedAt:      workout.CreatedAt,
		UpdatedAt:      workout.UpdatedAt,
	}
}

func toWorkoutDetailView(workout domain.Workout) WorkoutDetailView {
	view := WorkoutDetailView{
		WorkoutView: toWorkoutView(workout),
		Exercises:   make([]WorkoutExerciseView, 0, len(workout.Exercises)),
	}
	for _, entry := range workout.Exercises {
		view.Exercises = append(view.Exercises, toWorkoutExerciseView(entry))
	}
	return view
}

func toWorkoutExerciseView(entry domain.WorkoutExercise) WorkoutExerciseView {
	return WorkoutExerciseView{
		ID:             entry.ID,
		WorkoutID:      entry.WorkoutID,
		ExerciseID:     entry.ExerciseID,
		Name:           entry.Name,
		Sets:           entry.Sets,
		Reps:           entry.Reps,
		Weight:         entry.Weight,
		Duration:       entry.Duration,
		Notes:          entry.Notes,
		MET:            entry.MET,
		CaloriesBurned: entry.CaloriesBurned,
		CreatedAt:      entry.CreatedAt,
		UpdatedAt:      entry.UpdatedAt,
	}
}
