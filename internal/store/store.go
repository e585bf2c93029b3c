// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/shared"
)

// ErrUserExists is returned by CreateUser when the user ID or email is taken.
var ErrUserExists = errors.New("user already exists")

// Repository defines the interface for persisting users, analyses and
// revoked tokens.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email. Returns nil, nil if absent.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// CreateUser inserts a new user or returns ErrUserExists.
	CreateUser(ctx context.Context, user *domain.User) error

	// SaveAnalysis stores a transcript report.
	SaveAnalysis(ctx context.Context, a *domain.Analysis) error

	// ListAnalyses returns every analysis owned by userID, newest first.
	ListAnalyses(ctx context.Context, userID string) ([]*domain.Analysis, error)

	// RevokeToken records a logged-out token. Revoking twice is a no-op.
	RevokeToken(ctx context.Context, token *domain.RevokedToken) error

	// IsTokenRevoked reports whether tokenID has been revoked.
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpiredRevocations drops revocations whose token has expired by now.
	DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// SaveAnalysisWithRetry stores a with backoff on SQLite write conflicts.
func SaveAnalysisWithRetry(ctx context.Context, repo Repository, a *domain.Analysis) error {
	return shared.WithRetry(ctx, shared.DefaultRetryPolicy, "save analysis", func(ctx context.Context) error {
		return repo.SaveAnalysis(ctx, a)
	})
}
