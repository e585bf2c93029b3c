// Package worker runs background maintenance for the server.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/chatpulse/internal/shared"
	"github.com/ashureev/chatpulse/internal/store"
)

// StartRevocationSweeper runs a background goroutine that periodically drops
// revoked-token rows whose tokens have expired anyway. The returned channel
// is closed once the goroutine exits after ctx is cancelled.
func StartRevocationSweeper(ctx context.Context, repo store.Repository, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Revocation sweeper started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				sweepRevocations(ctx, repo, time.Now())
			case <-ctx.Done():
				slog.Info("Revocation sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweepRevocations(ctx context.Context, repo store.Repository, now time.Time) int64 {
	var deleted int64
	err := shared.WithRetry(ctx, shared.DefaultRetryPolicy, "sweep revocations", func(ctx context.Context) error {
		n, err := repo.DeleteExpiredRevocations(ctx, now)
		deleted = n
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Revocation sweep interrupted by shutdown", "error", err)
			return 0
		}
		slog.Error("Revocation sweep failed", "error", err)
		return 0
	}

	if deleted > 0 {
		slog.Info("Expired revocations removed", "count", deleted)
	}
	return deleted
}
