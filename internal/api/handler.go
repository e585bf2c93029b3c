// Package api provides HTTP handlers for the chatpulse API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/chatpulse/internal/identity"
	"github.com/ashureev/chatpulse/internal/store"
)

const maxJSONBody = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	repo      store.Repository
	tokens    *identity.Tokens
	validator *Validator
	maxUpload int64
	now       func() time.Time
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, tokens *identity.Tokens, maxUpload int64) *Handler {
	return &Handler{
		repo:      repo,
		tokens:    tokens,
		validator: NewValidator(),
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a single JSON object from a bounded request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode request body: trailing data")
	}
	return nil
}
