package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/auth"
	"github.com/driveguard/drowsy-server-go/internal/config"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/repository"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// IdentityProfile is what the identity provider asserts about a caller.
type IdentityProfile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier checks an opaque provider token and yields the profile.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*IdentityProfile, error)
}

// GoogleVerifier validates Google ID tokens against the tokeninfo endpoint.
// An empty audience skips the audience check (dev only; config warns).
type GoogleVerifier struct {
	audience string
	client   *http.Client
	baseURL  string
}

func NewGoogleVerifier(audience string) *GoogleVerifier {
	return &GoogleVerifier{
		audience: audience,
		client:   &http.Client{Timeout: config.IdentityVerifyTimeout},
		baseURL:  googleTokenInfoURL,
	}
}

type tokenInfoResponse struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Aud     string `json:"aud"`
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*IdentityProfile, error) {
	endpoint := fmt.Sprintf("%s?id_token=%s", v.baseURL, url.QueryEscape(idToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo rejected token with status %d", resp.StatusCode)
	}

	var info tokenInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode tokeninfo response: %w", err)
	}

	if v.audience != "" && info.Aud != v.audience {
		return nil, fmt.Errorf("token audience mismatch")
	}
	if info.Email == "" || info.Sub == "" {
		return nil, fmt.Errorf("tokeninfo response missing identity fields")
	}

	return &IdentityProfile{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// LoginService exchanges a provider identity token for a stored user plus
// a signed access credential.
type LoginService struct {
	userRepo  repository.UserRepository
	verifier  IdentityVerifier
	jwtSecret []byte
}

func NewLoginService(userRepo repository.UserRepository, verifier IdentityVerifier, jwtSecret string) *LoginService {
	return &LoginService{
		userRepo:  userRepo,
		verifier:  verifier,
		jwtSecret: []byte(jwtSecret),
	}
}

// LoginWithGoogle verifies the provider token, finds or creates the user by
// email, and mints a 7-day access token embedding {id, email, role}.
func (s *LoginService) LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error) {
	profile, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		log.Warn().Err(err).Msg("google identity verification failed")
		return nil, apperrors.InvalidToken("Invalid Google Token").WithCause(err)
	}

	user, err := s.userRepo.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if user == nil {
		var avatar *string
		if profile.Picture != "" {
			avatar = &profile.Picture
		}
		user, err = s.userRepo.Create(ctx, model.CreateUserParams{
			GoogleID: profile.Subject,
			Name:     profile.Name,
			Email:    profile.Email,
			Avatar:   avatar,
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
		log.Info().Str("userId", user.ID).Msg("user created on first login")
	}

	token, err := auth.GenerateToken(user.ID, user.Email, model.RoleUser, s.jwtSecret, config.AccessTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue access token").WithCause(err)
	}

	return &LoginResult{Token: token, User: user}, nil
}
