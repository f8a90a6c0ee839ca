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
	"github.com/driveguard/drowsy-server-go/internal/util"
)

type DrowsinessHandler struct {
	drowsinessService *service.DrowsinessService
}

func NewDrowsinessHandler(drowsinessService *service.DrowsinessService) *DrowsinessHandler {
	return &DrowsinessHandler{
		drowsinessService: drowsinessService,
	}
}

func (h *DrowsinessHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/create", h.Create)
	r.Get("/session/{sessionID}", h.ListBySession)
	r.Get("/user/me", h.ListMine)
	r.Get("/stats/{sessionID}", h.Stats)

	return r
}

type gpsField struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// createLogRequest models the wire body with every sample field optional;
// defaults are applied here, at the boundary, not in the service.
type createLogRequest struct {
	SessionID      string    `json:"sessionId"`
	Ear            *float64  `json:"ear"`
	Mar            *float64  `json:"mar"`
	Tilt           *float64  `json:"tilt"`
	Score          *float64  `json:"score"`
	IsDrowsy       *bool     `json:"isDrowsy"`
	AlertTriggered *bool     `json:"alertTriggered"`
	AlertType      *string   `json:"alertType"`
	Status         *string   `json:"status"`
	Gps            *gpsField `json:"gps"`
}

func (req *createLogRequest) toParams() model.CreateLogParams {
	params := model.CreateLogParams{
		SessionID: req.SessionID,
		Status:    model.SessionStatusSafe,
	}
	if req.Ear != nil {
		params.Ear = *req.Ear
	}
	if req.Mar != nil {
		params.Mar = *req.Mar
	}
	if req.Tilt != nil {
		params.Tilt = *req.Tilt
	}
	if req.Score != nil {
		params.Score = *req.Score
	}
	if req.IsDrowsy != nil {
		params.IsDrowsy = *req.IsDrowsy
	}
	if req.AlertTriggered != nil {
		params.AlertTriggered = *req.AlertTriggered
	}
	if req.AlertType != nil && *req.AlertType != "" {
		params.AlertType = req.AlertType
	}
	if req.Status != nil && *req.Status != "" {
		params.Status = model.SessionStatus(*req.Status)
	}
	if req.Gps != nil {
		params.GpsLat = req.Gps.Lat
		params.GpsLng = req.Gps.Lng
	}
	return params
}

func (req *createLogRequest) validate() error {
	if req.SessionID == "" {
		return apperrors.MissingRequired("sessionId")
	}
	if !util.IsValidUUID(req.SessionID) {
		return apperrors.InvalidInput("sessionId", "must be a uuid")
	}
	if req.AlertType != nil && !util.IsValidEnum(*req.AlertType, model.ValidAlertTypes) {
		return apperrors.InvalidInput("alertType", "must be one of drowsy, yawn, head_tilt")
	}
	if req.Status != nil && !util.IsValidEnum(*req.Status, model.ValidSessionStatuses) {
		return apperrors.InvalidInput("status", "must be one of Safe, Warning, Danger")
	}
	return nil
}

// POST /v1/drowsiness/create
func (h *DrowsinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req createLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	logEntry, err := h.drowsinessService.Ingest(r.Context(), user.ID, req.toParams())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"log":     logEntry,
	})
}

// GET /v1/drowsiness/session/{sessionID}
func (h *DrowsinessHandler) ListBySession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if !util.IsValidUUID(sessionID) {
		writeError(w, apperrors.InvalidInput("sessionId", "must be a uuid"))
		return
	}

	logs, err := h.drowsinessService.ListBySession(r.Context(), user.ID, sessionID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to list logs")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

// GET /v1/drowsiness/user/me
func (h *DrowsinessHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	logs, err := h.drowsinessService.ListByUser(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list user logs")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

// GET /v1/drowsiness/stats/{sessionID}
func (h *DrowsinessHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if !util.IsValidUUID(sessionID) {
		writeError(w, apperrors.InvalidInput("sessionId", "must be a uuid"))
		return
	}

	stats, err := h.drowsinessService.Stats(r.Context(), user.ID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
