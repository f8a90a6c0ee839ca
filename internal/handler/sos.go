package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/middleware"
	"github.com/driveguard/drowsy-server-go/internal/service"
)

type SOSHandler struct {
	sosService *service.SOSService
}

func NewSOSHandler(sosService *service.SOSService) *SOSHandler {
	return &SOSHandler{
		sosService: sosService,
	}
}

func (h *SOSHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/send", h.Send)

	return r
}

type sosRequest struct {
	Location *service.Location `json:"location"`
	Reason   string            `json:"reason"`
}

// POST /v1/sos/send
func (h *SOSHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req sosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Reason == "" {
		req.Reason = "Drowsiness detected"
	}

	if err := h.sosService.Send(r.Context(), user.ID, req.Location, req.Reason); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "SOS Sent Successfully",
	})
}
