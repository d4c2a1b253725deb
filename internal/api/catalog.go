package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"example.com/fittracker/internal/catalog"
)

// CatalogExerciseView is a normalised catalog entry.
type CatalogExerciseView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category json.RawMessage `json:"category,omitempty"`
	MET      *float64        `json:"met,omitempty"`
}

func (h *Handler) catalogExercises(w http.ResponseWriter, r *http.Request) {
	body, err := h.Catalog.ListExercises(r.Context(), r.URL.Query())
	h.writeRaw(w, r, body, err)
}

func (h *Handler) catalogCategories(w http.ResponseWriter, r *http.Request) {
	body, err := h.Catalog.ListCategories(r.Context())
	h.writeRaw(w, r, body, err)
}

func (h *Handler) catalogMuscles(w http.ResponseWriter, r *http.Request) {
	body, err := h.Catalog.ListMuscles(r.Context())
	h.writeRaw(w, r, body, err)
}

func (h *Handler) catalogEquipment(w http.ResponseWriter, r *http.Request) {
	body, err := h.Catalog.ListEquipment(r.Context())
	h.writeRaw(w, r, body, err)
}

func (h *Handler) writeRaw(w http.ResponseWriter, r *http.Request, body json.RawMessage, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) catalogSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("query"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query parameter is required")
		return
	}

	results, err := h.Catalog.Search(r.Context(), term)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items := make([]CatalogExerciseView, 0, len(results))
	for _, ex := range results {
		items = append(items, toCatalogView(ex))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) catalogAutocomplete(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("term"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "term parameter is required")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 50 {
				parsed = 50
			}
			limit = parsed
		}
	}

	suggestions, err := h.Catalog.Autocomplete(r.Context(), term, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) catalogExercise(w http.ResponseWriter, r *http.Request) {
	ex, err := h.Catalog.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCatalogView(*ex))
}

func toCatalogView(ex catalog.Exercise) CatalogExerciseView {
	return CatalogExerciseView{
		ID:       ex.Ref,
		Name:     ex.Name,
		Category: ex.Category,
		MET:      ex.MET,
	}
}
