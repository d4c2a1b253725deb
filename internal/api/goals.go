package api

import (
	"net/http"
	"time"

	"example.com/fittracker/internal/domain"
)

// GoalRequest is the payload for creating or replacing a goal.
type GoalRequest struct {
	Type        string  `json:"type"`
	TargetValue float64 `json:"target_value"`
	StartDate   Date    `json:"start_date"`
	EndDate     Date    `json:"end_date"`
	Status      string  `json:"status"`
}

// GoalView exposes a goal.
type GoalView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	TargetValue float64   `json:"target_value"`
	StartDate   Date      `json:"start_date"`
	EndDate     Date      `json:"end_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (req GoalRequest) input() domain.GoalInput {
	return domain.GoalInput{
		Type:        req.Type,
		TargetValue: req.TargetValue,
		StartDate:   req.StartDate.Time,
		EndDate:     req.EndDate.Time,
		Status:      domain.GoalStatus(req.Status),
	}
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal, err := h.Goals.Create(r.Context(), currentUser(r), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalView(*goal))
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Goals.List(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]GoalView, 0, len(goals))
	for _, goal := range goals {
		views = append(views, toGoalView(goal))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.Goals.Get(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(*goal))
}

func (h *Handler) updateGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal, err := h.Goals.Update(r.Context(), currentUser(r), r.PathValue("id"), req.input())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(*goal))
}

func (h *Handler) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.Goals.Delete(r.Context(), currentUser(r), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "goal deleted"})
}

func toGoalView(goal domain.Goal) GoalView {
	return GoalView{
		ID:          goal.ID,
		Type:        goal.Type,
		TargetValue: goal.TargetValue,
		StartDate:   Date{goal.StartDate},
		EndDate:     Date{goal.EndDate},
		Status:      string(goal.Status),
		CreatedAt:   goal.CreatedAt,
		UpdatedAt:   goal.UpdatedAt,
	}
}
