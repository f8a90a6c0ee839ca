package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/audit"
	"github.com/driveguard/drowsy-server-go/internal/config"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/repository"
	"github.com/driveguard/drowsy-server-go/internal/util"
)

// Location is the optional GPS fix attached to an SOS request.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SMSGateway submits one message to the external SMS provider. At most one
// attempt is made; there is no retry.
type SMSGateway interface {
	Send(ctx context.Context, number, message string) error
}

// Fast2SMSGateway posts to the Fast2SMS bulk endpoint.
type Fast2SMSGateway struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewFast2SMSGateway(apiKey, baseURL string) *Fast2SMSGateway {
	return &Fast2SMSGateway{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: config.SMSGatewayTimeout},
	}
}

type fast2SMSRequest struct {
	Route    string `json:"route"`
	Message  string `json:"message"`
	Language string `json:"language"`
	Flash    int    `json:"flash"`
	Numbers  string `json:"numbers"`
}

type fast2SMSResponse struct {
	Return  bool `json:"return"`
	Message any  `json:"message"`
}

func (g *Fast2SMSGateway) Send(ctx context.Context, number, message string) error {
	body, err := json.Marshal(fast2SMSRequest{
		Route:    "q",
		Message:  message,
		Language: "english",
		Flash:    0,
		Numbers:  number,
	})
	if err != nil {
		return fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("authorization", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	var result fast2SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	if !result.Return {
		return fmt.Errorf("sms gateway reported failure: %v", result.Message)
	}

	return nil
}

// SOSService relays an emergency alert to the user's emergency contact.
type SOSService struct {
	userRepo repository.UserRepository
	gateway  SMSGateway
}

func NewSOSService(userRepo repository.UserRepository, gateway SMSGateway) *SOSService {
	return &SOSService{
		userRepo: userRepo,
		gateway:  gateway,
	}
}

// Send loads the user, formats the alert message, and fires exactly one
// gateway call. Any gateway failure degrades to a generic relay error;
// the underlying cause is logged server-side only.
func (s *SOSService) Send(ctx context.Context, userID string, location *Location, reason string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if user == nil {
		return apperrors.NotFound("User")
	}
	if user.EmergencyContact == nil || *user.EmergencyContact == "" {
		return apperrors.NoEmergencyContact()
	}

	number := util.NormalizePhone(*user.EmergencyContact)

	mapLink := "Location Unavailable"
	if location != nil && location.Lat != 0 {
		mapLink = fmt.Sprintf("https://www.google.com/maps?q=%v,%v", location.Lat, location.Lng)
	}

	message := fmt.Sprintf("SOS ALERT! %s needs help. Reason: %s. Location: %s", user.Name, reason, mapLink)

	if err := s.gateway.Send(ctx, number, message); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("sos relay failed")
		audit.Log(ctx, audit.Event{Type: audit.EventSOSFailed, UserID: userID})
		return apperrors.RelayFailed().WithCause(err)
	}

	log.Info().Str("userId", userID).Msg("sos sent")
	audit.Log(ctx, audit.Event{
		Type:   audit.EventSOSSent,
		UserID: userID,
		Details: map[string]interface{}{
			"reason": reason,
		},
	})

	return nil
}
