// Package api exposes HTTP handlers for the fittracker backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"net/url"

	"github.com/rs/zerolog"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/catalog"
	"example.com/fittracker/internal/domain"
)

const maxBodyBytes = 1 << 20

// Catalog is the subset of the exercise catalog gateway used by the handlers.
type Catalog interface {
	GetByID(ctx context.Context, ref string) (*catalog.Exercise, error)
	Search(ctx context.Context, term string) ([]catalog.Exercise, error)
	Autocomplete(ctx context.Context, term string, limit int) ([]catalog.Suggestion, error)
	ListExercises(ctx context.Context, query url.Values) (json.RawMessage, error)
	ListCategories(ctx context.Context) (json.RawMessage, error)
	ListMuscles(ctx context.Context) (json.RawMessage, error)
	ListEquipment(ctx context.Context) (json.RawMessage, error)
}

// Services bundles the domain services the handlers delegate to.
type Services struct {
	Accounts  *domain.AccountService
	Tokens    *auth.Service
	Composer  *domain.Composer
	Goals     *domain.GoalService
	Exercises *domain.ExerciseService
	Stats     *domain.StatsService
	Catalog   Catalog
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	Services
	logger        zerolog.Logger
	secureCookies bool
	loginLimiter  *loginLimiter
	proxies       []netip.Prefix
}

// Option customises a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for internal errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithSecureCookies marks the token cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) {
		h.secureCookies = secure
	}
}

// WithLoginRateLimit allows perMinute login attempts per client IP with the
// given burst. A non-positive rate disables limiting.
func WithLoginRateLimit(perMinute, burst int) Option {
	return func(h *Handler) {
		if perMinute <= 0 {
			h.loginLimiter = nil
			return
		}
		h.loginLimiter = newLoginLimiter(perMinute, burst)
	}
}

// WithTrustedProxies lists the networks whose X-Forwarded-For and X-Real-IP
// headers are believed when resolving the client IP. Without it the
// connection address is always used.
func WithTrustedProxies(prefixes ...netip.Prefix) Option {
	return func(h *Handler) {
		h.proxies = prefixes
	}
}

// NewHandler builds a Handler.
func NewHandler(services Services, opts ...Option) *Handler {
	h := &Handler{
		Services:     services,
		logger:       zerolog.Nop(),
		loginLimiter: newLoginLimiter(10, 5),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux. Routes that act on behalf of a
// user are wrapped by the access-token middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	authed := auth.NewMiddleware(h.Tokens)
	private := func(fn http.HandlerFunc) http.Handler { return authed.Wrap(fn) }

	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("POST /api/users/register", h.register)
	mux.HandleFunc("POST /api/users/login", h.login)
	mux.HandleFunc("POST /api/users/refresh-token", h.refreshToken)
	mux.HandleFunc("POST /api/users/logout", h.logout)
	mux.Handle("GET /api/users/profile", private(h.getProfile))
	mux.Handle("POST /api/users/profile", private(h.completeProfile))
	mux.Handle("PUT /api/users/profile", private(h.updateProfile))

	mux.HandleFunc("GET /api/exercises", h.catalogExercises)
	mux.HandleFunc("GET /api/exercises/search", h.catalogSearch)
	mux.HandleFunc("GET /api/exercises/autocomplete", h.catalogAutocomplete)
	mux.HandleFunc("GET /api/exercises/categories", h.catalogCategories)
	mux.HandleFunc("GET /api/exercises/muscles", h.catalogMuscles)
	mux.HandleFunc("GET /api/exercises/equipment", h.catalogEquipment)
	mux.Handle("GET /api/exercises/catalog/{id}", private(h.catalogExercise))

	mux.Handle("GET /api/exercises/mine", private(h.listExercises))
	mux.Handle("POST /api/exercises", private(h.createExercise))
	mux.Handle("GET /api/exercises/{id}", private(h.getExercise))
	mux.Handle("PUT /api/exercises/{id}", private(h.updateExercise))
	mux.Handle("DELETE /api/exercises/{id}", private(h.deleteExercise))

	mux.Handle("POST /api/workouts", private(h.createWorkout))
	mux.Handle("GET /api/workouts", private(h.listWorkouts))
	mux.Handle("GET /api/workouts/{id}", private(h.getWorkout))
	mux.Handle("PUT /api/workouts/{id}", private(h.updateWorkout))
	mux.Handle("DELETE /api/workouts/{id}", private(h.deleteWorkout))
	mux.Handle("POST /api/workouts/{id}/exercises", private(h.attachExercise))
	mux.Handle("PUT /api/workouts/{id}/exercises/{entry}", private(h.updateExerciseEntry))
	mux.Handle("DELETE /api/workouts/{id}/exercises/{entry}", private(h.detachExercise))

	mux.Handle("POST /api/goals", private(h.createGoal))
	mux.Handle("GET /api/goals", private(h.listGoals))
	mux.Handle("GET /api/goals/{id}", private(h.getGoal))
	mux.Handle("PUT /api/goals/{id}", private(h.updateGoal))
	mux.Handle("DELETE /api/goals/{id}", private(h.deleteGoal))

	mux.Handle("GET /api/stats/workouts", private(h.workoutStats))
	mux.Handle("GET /api/stats/exercises/frequent", private(h.frequentExercises))
	mux.Handle("GET /api/stats/exercises/{id}/history", private(h.exerciseHistory))
	mux.Handle("GET /api/stats/monthly", private(h.monthlyStats))
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// currentUser returns the ID stored by the auth middleware.
func currentUser(r *http.Request) string {
	userID, _ := auth.UserIDFromContext(r.Context())
	return userID
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// fail maps an error to its status. Anything not classified is logged and
// reported with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, code, "internal server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		h.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("exercise catalog unavailable")
	}

	message := domain.PublicMessage(err)
	if message == "" {
		message = defaultMessages[code]
	}
	writeError(w, status, code, message)
}

var defaultMessages = map[string]string{
	"unauthenticated":      "authentication required",
	"not_found":            "resource not found",
	"upstream_unavailable": "exercise catalog is unavailable",
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	// Reference and upstream kinds wrap a catalog cause, so they win over the
	// bare catalog sentinels below.
	case errors.Is(err, domain.ErrInvalidReference):
		return http.StatusNotFound, "invalid_reference"
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, catalog.ErrUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]string{
		"type":    code,
		"message": message,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
