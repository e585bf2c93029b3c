package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var fastPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func TestWithRetryRetriesConflicts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastPolicy, "save", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryStopsOnOtherErrors(t *testing.T) {
	sentinel := errors.New("constraint")
	calls := 0
	err := WithRetry(context.Background(), fastPolicy, "save", func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if err.Error() != "save: constraint" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastPolicy, "save", func(context.Context) error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || !IsSQLiteBusyError(err) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if calls != fastPolicy.MaxAttempts {
		t.Fatalf("expected %d calls, got %d", fastPolicy.MaxAttempts, calls)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	err := WithRetry(ctx, policy, "save", func(context.Context) error {
		cancel()
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithRetryCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := WithRetry(ctx, policy, "save", func(context.Context) error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancel, got %d", calls)
	}
}

func TestRetryPolicyBackOffDoubles(t *testing.T) {
	b := RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}.backOff(context.Background())

	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, backoff.Stop}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Fatalf("delay %d: want %v, got %v", i, w, got)
		}
	}
}

func TestRetryPolicySingleAttempt(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), RetryPolicy{}, "save", func(context.Context) error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one failed call, got calls=%d err=%v", calls, err)
	}
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
		unique   bool
	}{
		{name: "nil", err: nil},
		{name: "busy", err: errors.New("SQLITE_BUSY"), conflict: true},
		{name: "locked", err: errors.New("database is locked"), conflict: true},
		{name: "unique", err: errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), unique: true},
		{name: "other", err: errors.New("disk I/O error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSQLiteConflictError(tt.err); got != tt.conflict {
				t.Errorf("IsSQLiteConflictError = %v, want %v", got, tt.conflict)
			}
			if got := IsUniqueViolation(tt.err); got != tt.unique {
				t.Errorf("IsUniqueViolation = %v, want %v", got, tt.unique)
			}
		})
	}
}
