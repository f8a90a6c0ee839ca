package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/audit"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/middleware"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/service"
	"github.com/driveguard/drowsy-server-go/internal/util"
)

type UserHandler struct {
	userService  *service.UserService
	loginService *service.LoginService
}

func NewUserHandler(userService *service.UserService, loginService *service.LoginService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		loginService: loginService,
	}
}

// Routes covers everything behind auth; the login exchange is registered
// separately as a public route.
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/profile", h.Profile)
	r.Put("/update", h.UpdateProfile)
	r.Put("/update-contact", h.UpdateContact)
	r.Delete("/me", h.DeleteMe)
	r.Get("/{id}", h.GetByID)

	return r
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

// POST /v1/users/oauth/google
func (h *UserHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	result, err := h.loginService.LoginWithGoogle(r.Context(), req.Token)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, UserID: result.User.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

// GET /v1/users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r.Context())

	user, err := h.userService.GetByID(r.Context(), caller.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// GET /v1/users/{id}
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		writeError(w, apperrors.InvalidInput("id", "must be a uuid"))
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

type updateProfileRequest struct {
	Name        *string `json:"name"`
	Avatar      *string `json:"avatar"`
	DateOfBirth *string `json:"dateOfBirth"`
}

// PUT /v1/users/update
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	params := model.UpdateUserParams{
		Name:   req.Name,
		Avatar: req.Avatar,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			writeError(w, apperrors.InvalidInput("dateOfBirth", "expected YYYY-MM-DD"))
			return
		}
		params.DateOfBirth = &dob
	}

	user, err := h.userService.UpdateProfile(r.Context(), caller.ID, params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

type updateContactRequest struct {
	EmergencyContact string `json:"emergencyContact"`
}

// PUT /v1/users/update-contact
func (h *UserHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r.Context())

	var req updateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	user, err := h.userService.UpdateEmergencyContact(r.Context(), caller.ID, req.EmergencyContact)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// DELETE /v1/users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUser(r.Context())

	if err := h.userService.Delete(r.Context(), caller.ID); err != nil {
		log.Error().Err(err).Str("userId", caller.ID).Msg("failed to delete user")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User deleted successfully",
	})
}
