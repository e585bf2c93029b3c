// Package domain contains core domain types for the chatpulse application.
package domain

import (
	"time"
)

// User is an account that can log in and upload transcripts.
type User struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RevokedToken marks an access token as logged out until it would have
// expired anyway.
type RevokedToken struct {
	TokenID   string
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the token would be rejected on expiry alone.
func (t *RevokedToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
