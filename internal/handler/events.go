package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/alerts"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/middleware"
)

// EventsHandler streams drowsy-alert events to the caller over SSE.
type EventsHandler struct {
	broker *alerts.Broker
}

func NewEventsHandler(broker *alerts.Broker) *EventsHandler {
	return &EventsHandler{
		broker: broker,
	}
}

// GET /v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(user.ID)
	defer h.broker.Unsubscribe(client)

	sendEvent(w, "connected", map[string]string{"userId": user.ID})
	flusher.Flush()

	heartbeat := time.NewTicker(alerts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-client.Done:
			return

		case event := <-client.Events:
			sendEvent(w, event.Type, event.Data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func sendEvent(w http.ResponseWriter, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to marshal sse event")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
}
