package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/identity"
)

const msgInvalidCredentials = "Invalid credentials"

// UserHandler handles login and logout.
type UserHandler struct {
	*Handler
}

// NewUserHandler creates a new user handler.
func NewUserHandler(base *Handler) *UserHandler {
	return &UserHandler{Handler: base}
}

// RegisterPublicRoutes registers routes reachable without a token. limit wraps
// the login endpoint.
func (h *UserHandler) RegisterPublicRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/api/v1/user/login", h.Login)
}

// RegisterRoutes registers routes that require authentication.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/user/logout", h.Logout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login exchanges an email and password for an access token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := h.validator.Struct(&req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			JSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  verr.Error(),
				"errors": verr.Errors,
			})
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	user, err := h.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		slog.Error("Failed to look up user", "error", err)
		Error(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if user == nil {
		slog.Info("Login rejected", "reason", "unknown email", "ip", identity.IPFromRequest(r))
		Error(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	ok, err := identity.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		slog.Error("Stored password hash is unusable", "error", err, "user_id", user.UserID)
		Error(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}
	if !ok {
		slog.Info("Login rejected", "reason", "wrong password", "user_id", user.UserID, "ip", identity.IPFromRequest(r))
		Error(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	token, claims, err := h.tokens.Issue(user.UserID, user.Email)
	if err != nil {
		slog.Error("Failed to issue access token", "error", err, "user_id", user.UserID)
		Error(w, http.StatusInternalServerError, "Login failed")
		return
	}

	slog.Info("User logged in", "user_id", user.UserID)
	JSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(claims.ExpiresAt.Sub(h.now()).Seconds()),
	})
}

// Logout revokes the presented access token until it would have expired.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)
	tokenID := identity.TokenIDFromContext(ctx)
	if userID == "" || tokenID == "" {
		Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	revoked := &domain.RevokedToken{
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: identity.TokenExpiryFromContext(ctx),
	}
	// A token that has already run out needs no revocation row.
	if !revoked.Expired(h.now()) {
		if err := h.repo.RevokeToken(ctx, revoked); err != nil {
			slog.Error("Failed to revoke token", "error", err, "user_id", userID)
			Error(w, http.StatusInternalServerError, "Logout failed")
			return
		}
	}

	slog.Info("User logged out", "user_id", userID, "email", identity.EmailFromContext(ctx))
	JSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}
