package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/driveguard/drowsy-server-go/internal/audit"
	"github.com/driveguard/drowsy-server-go/internal/auth"
)

type contextKey string

const UserContextKey contextKey = "authUser"

// AuthUser is the caller identity derived from a verified access token.
type AuthUser struct {
	ID    string
	Email string
	Role  string
}

func GetUser(ctx context.Context) *AuthUser {
	if user, ok := ctx.Value(UserContextKey).(*AuthUser); ok {
		return user
	}
	return nil
}

// AuthMiddleware rejects requests without a valid bearer access token and
// exposes the caller identity to downstream handlers. Expired tokens get a
// distinct message so clients know to re-login.
type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(jwtSecret)}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "No token provided. Authorization denied.",
			})
			return
		}

		claims, err := auth.ParseToken(token, m.secret)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})

			if errors.Is(err, auth.ErrTokenExpired) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"success": false,
					"message": "Token expired. Please log in again.",
				})
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"message": "Invalid token. Authorization denied.",
			})
			return
		}

		role := claims.Role
		if role == "" {
			role = "user"
		}

		user := &AuthUser{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  role,
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
