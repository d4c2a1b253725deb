package api

import (
	"errors"
	"net/http"
	"strconv"

	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/domain"
)

// RegisterRequest is the payload for POST /api/users/register.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest is the payload for POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CompleteProfileRequest is the second registration step.
type CompleteProfileRequest struct {
	Age    *int     `json:"age"`
	Height *float64 `json:"height"`
	Weight *float64 `json:"weight"`
}

// UpdateProfileRequest changes any subset of the profile.
type UpdateProfileRequest struct {
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Age       *int     `json:"age"`
	Height    *float64 `json:"height"`
	Weight    *float64 `json:"weight"`
}

// UserView is the public representation of an account.
type UserView struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Age       *int     `json:"age,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
	BMI       *float64 `json:"bmi,omitempty"`
	BMIClass  string   `json:"bmi_class,omitempty"`
}

// UserResponse wraps a user with a status message.
type UserResponse struct {
	Message string   `json:"message"`
	User    UserView `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Accounts.Register(r.Context(), domain.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if !h.issueTokens(w, r, user.ID) {
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{Message: "user created", User: toUserView(*user)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r, h.proxies)
	if h.loginLimiter != nil && !h.loginLimiter.Allow(ip) {
		w.Header().Set("Retry-After", strconv.Itoa(h.loginLimiter.RetryAfterSeconds()))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts, try again later")
		return
	}

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.loginLimiter != nil {
		h.loginLimiter.Reset(ip)
	}

	if !h.issueTokens(w, r, user.ID) {
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "logged in", User: toUserView(*user)})
}

func (h *Handler) issueTokens(w http.ResponseWriter, r *http.Request, userID string) bool {
	pair, err := h.Tokens.IssuePair(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	auth.SetTokenCookies(w, pair, h.secureCookies)
	return true
}

// refreshToken rotates the pair. Only the refresh cookie is consulted; an
// expired access token is the normal reason to call it.
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "refresh token missing")
		return
	}

	pair, err := h.Tokens.Rotate(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			auth.ClearTokenCookies(w, h.secureCookies)
			writeError(w, http.StatusUnauthorized, "unauthenticated", "refresh token is invalid or expired")
			return
		}
		h.fail(w, r, err)
		return
	}

	auth.SetTokenCookies(w, pair, h.secureCookies)
	writeJSON(w, http.StatusOK, messageResponse{Message: "tokens refreshed"})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.RefreshCookieName); err == nil {
		if err := h.Tokens.Revoke(r.Context(), cookie.Value); err != nil {
			h.logger.Warn().Err(err).Msg("logout could not revoke refresh token")
		}
	}
	auth.ClearTokenCookies(w, h.secureCookies)
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.Accounts.GetProfile(r.Context(), currentUser(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) completeProfile(w http.ResponseWriter, r *http.Request) {
	var req CompleteProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Age == nil || req.Height == nil || req.Weight == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "age, height and weight are required")
		return
	}

	user, err := h.Accounts.CompleteProfile(r.Context(), currentUser(r), *req.Age, *req.Height, *req.Weight)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "profile created", User: toUserView(*user)})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Accounts.UpdateProfile(r.Context(), currentUser(r), domain.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
		Height:    req.Height,
		Weight:    req.Weight,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "profile updated", User: toUserView(*user)})
}

func toUserView(u domain.User) UserView {
	view := UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Age:       u.Age,
		Height:    u.Height,
		Weight:    u.Weight,
	}
	if bmi, class, ok := u.BMI(); ok {
		view.BMI = &bmi
		view.BMIClass = string(class)
	}
	return view
}
