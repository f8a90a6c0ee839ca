package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/middleware"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/start", h.Start)
	r.Post("/update", h.Update)
	r.Post("/stop", h.Stop)
	r.Get("/user/me", h.ListMine)
	r.Get("/{sessionToken}", h.Get)
	r.Get("/{sessionToken}/gps", h.GpsHistory)

	return r
}

// POST /v1/sessions/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	result, err := h.sessionService.Start(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to start session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   result.Token,
		"id":      result.ID,
	})
}

type updateSessionRequest struct {
	Token     string   `json:"token"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Ear       *float64 `json:"ear"`
	Mar       *float64 `json:"mar"`
	Alert     bool     `json:"alert"`
}

// POST /v1/sessions/update
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	err := h.sessionService.Update(r.Context(), user.ID, req.Token, model.UpdateSessionParams{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Ear:       req.Ear,
		Mar:       req.Mar,
		Alert:     req.Alert,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Session updated",
	})
}

type stopSessionRequest struct {
	Token   string                `json:"token"`
	Summary *model.SessionSummary `json:"summary"`
}

// POST /v1/sessions/stop
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req stopSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	session, err := h.sessionService.Stop(r.Context(), user.ID, req.Token, req.Summary)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Session saved",
		"session": session,
	})
}

// GET /v1/sessions/{sessionToken}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	token := chi.URLParam(r, "sessionToken")

	session, err := h.sessionService.Get(r.Context(), user.ID, token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GET /v1/sessions/{sessionToken}/gps
func (h *SessionHandler) GpsHistory(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	token := chi.URLParam(r, "sessionToken")

	history, err := h.sessionService.GpsHistory(r.Context(), user.ID, token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// GET /v1/sessions/user/me
func (h *SessionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessions, err := h.sessionService.ListByUser(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}
