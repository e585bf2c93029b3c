// Package identity provides password hashing, access tokens and the bearer
// authentication middleware.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/chatpulse/internal/store"
)

const (
	SessionHeaderName     = "X-Chatpulse-Session-ID"
	DefaultSessionIDValue = "default"

	// QueryTokenName carries the access token on WebSocket upgrades, where
	// browsers cannot set an Authorization header.
	QueryTokenName = "access_token"
)

type contextKey int

const (
	userIDKey contextKey = iota
	emailKey
	tokenIDKey
	tokenExpiryKey
	sessionIDKey
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

var (
	errMissingHeader = errors.New("authorization header is missing")
	errBadScheme     = errors.New("authorization scheme must be Bearer")
	errBadHeader     = errors.New("invalid authorization header format")
)

// Client-facing 401 messages.
var authMessages = map[error]string{
	errMissingHeader: "Authorization header is missing",
	errBadScheme:     "Authorization scheme must be Bearer",
	errBadHeader:     "Invalid authorization header format",
}

const (
	msgInvalidCredentials = "Could not validate credentials"
	msgRevoked            = "Token has been revoked"
	msgUnknownUser        = "User no longer exists"
)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// EmailFromContext extracts the user's email from the request context.
func EmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(emailKey).(string); ok {
		return v
	}
	return ""
}

// TokenIDFromContext extracts the access token's jti from the request context.
func TokenIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenIDKey).(string); ok {
		return v
	}
	return ""
}

// TokenExpiryFromContext extracts the access token's expiry.
func TokenExpiryFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(tokenExpiryKey).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// SessionIDFromContext extracts the tab session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// WithClaims returns ctx carrying the identity in claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.Subject)
	ctx = context.WithValue(ctx, emailKey, claims.Email)
	ctx = context.WithValue(ctx, tokenIDKey, claims.ID)
	if claims.ExpiresAt != nil {
		ctx = context.WithValue(ctx, tokenExpiryKey, claims.ExpiresAt.Time)
	}
	return ctx
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// bearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter for WebSocket upgrades only.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if isWebSocketUpgrade(r) {
			if tok := r.URL.Query().Get(QueryTokenName); tok != "" {
				return tok, nil
			}
		}
		return "", errMissingHeader
	}

	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", errBadHeader
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadScheme
	}
	return parts[1], nil
}

// Middleware requires a valid, unrevoked access token for a user that still
// exists, and injects the caller's identity and tab session ID.
func Middleware(tokens *Tokens, repo store.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				unauthorized(w, authMessages[err])
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				slog.Debug("Rejected access token", "error", err, "ip", IPFromRequest(r))
				unauthorized(w, msgInvalidCredentials)
				return
			}

			ctx := r.Context()
			revoked, err := repo.IsTokenRevoked(ctx, claims.ID)
			if err != nil {
				slog.Error("Failed to check token revocation", "error", err)
				unauthorized(w, msgInvalidCredentials)
				return
			}
			if revoked {
				unauthorized(w, msgRevoked)
				return
			}

			user, err := repo.GetUser(ctx, claims.Subject)
			if err != nil {
				slog.Error("Failed to load token user", "error", err, "user_id", claims.Subject)
				unauthorized(w, msgInvalidCredentials)
				return
			}
			if user == nil {
				unauthorized(w, msgUnknownUser)
				return
			}

			ctx = WithClaims(ctx, claims)
			ctx = context.WithValue(ctx, sessionIDKey, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// IPFromRequest returns a normalized remote IP for rate limiting and logs.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
