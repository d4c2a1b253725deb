package api

import (
	"net/http"
	"time"

	"example.com/fittracker/internal/domain"
)

// ExerciseRequest is the payload for user-authored exercises.
type ExerciseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ExerciseView exposes a user-authored exercise.
type ExerciseView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (req ExerciseRequest) input() domain.ExerciseInput {
	return domain.ExerciseInput{Name: req.Name, Description: req.Description, Category: req.Category}
}

func (h *Handler) createExercise(w http.ResponseWriter, r *http.Request) {
	var req ExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ex, err := h.Exercises.Create(r.Context(), currentUser(r), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExerciseView(*ex))
}

func (h *Handler) listExercises(w http.ResponseWriter, r *http.Request) {
	exercises, err := h.Exercises.List(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]ExerciseView, 0, len(exercises))
	for _, ex := range exercises {
		views = append(views, toExerciseView(ex))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getExercise(w http.ResponseWriter, r *http.Request) {
	ex, err := h.Exercises.Get(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseView(*ex))
}

func (h *Handler) updateExercise(w http.ResponseWriter, r *http.Request) {
	var req ExerciseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ex, err := h.Exercises.Update(r.Context(), currentUser(r), r.PathValue("id"), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseView(*ex))
}

func (h *Handler) deleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := h.Exercises.Delete(r.Context(), currentUser(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "exercise deleted"})
}

func toExerciseView(ex domain.Exercise) ExerciseView {
	return ExerciseView{
		ID:          ex.ID,
		Name:        ex.Name,
		Description: ex.Description,
		Category:    ex.Category,
		CreatedAt:   ex.CreatedAt,
		UpdatedAt:   ex.UpdatedAt,
	}
}
