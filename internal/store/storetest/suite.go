package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/store"
)

// Run exercises a compliance suite against a store.Repository implementation.
// makeRepo must return a clean, isolated repository.
func Run(t *testing.T, makeRepo func(t *testing.T) store.Repository) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, makeRepo(t)) })
	t.Run("analyses", func(t *testing.T) { testAnalyses(t, makeRepo(t)) })
	t.Run("revocations", func(t *testing.T) { testRevocations(t, makeRepo(t)) })
}

func testUsers(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	userID := "u-" + uuid.NewString()
	u := &domain.User{UserID: userID, Email: userID + "@example.test", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := repo.GetUser(ctx, userID)
	if err != nil || got == nil {
		t.Fatalf("GetUser: got=%v err=%v", got, err)
	}
	if got.Email != u.Email || got.PasswordHash != "hash" || !got.CreatedAt.Equal(now) {
		t.Fatalf("GetUser: unexpected user %+v", got)
	}

	byEmail, err := repo.GetUserByEmail(ctx, u.Email)
	if err != nil || byEmail == nil || byEmail.UserID != userID {
		t.Fatalf("GetUserByEmail: got=%v err=%v", byEmail, err)
	}

	if got, err := repo.GetUser(ctx, "missing"); err != nil || got != nil {
		t.Fatalf("GetUser(missing): got=%v err=%v", got, err)
	}
	if got, err := repo.GetUserByEmail(ctx, "missing@example.test"); err != nil || got != nil {
		t.Fatalf("GetUserByEmail(missing): got=%v err=%v", got, err)
	}

	dupID := &domain.User{UserID: userID, Email: "other@example.test", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateUser(ctx, dupID); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("CreateUser(duplicate id): want ErrUserExists, got %v", err)
	}
	dupEmail := &domain.User{UserID: "u-" + uuid.NewString(), Email: u.Email, PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateUser(ctx, dupEmail); !errors.Is(err, store.ErrUserExists) {
		t.Fatalf("CreateUser(duplicate email): want ErrUserExists, got %v", err)
	}
}

func testAnalyses(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	report, err := analysis.Analyze("1/5/24, 10:30 AM - Alice: Bob added Carol\n")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if lst, err := repo.ListAnalyses(ctx, "nobody"); err != nil || lst == nil || len(lst) != 0 {
		t.Fatalf("ListAnalyses(empty): got=%v err=%v", lst, err)
	}

	base := time.UnixMilli(1_700_000_000_000)
	older := domain.NewAnalysis("u1", "older.txt", report, base)
	newer := domain.NewAnalysis("u1", "newer.txt", report, base.Add(time.Minute))
	other := domain.NewAnalysis("u2", "other.txt", report, base)

	for _, a := range []*domain.Analysis{older, newer, other} {
		if err := store.SaveAnalysisWithRetry(ctx, repo, a); err != nil {
			t.Fatalf("SaveAnalysis(%s): %v", a.Filename, err)
		}
	}

	lst, err := repo.ListAnalyses(ctx, "u1")
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(lst) != 2 {
		t.Fatalf("ListAnalyses: want 2, got %d", len(lst))
	}
	if lst[0].ID != newer.ID || lst[1].ID != older.ID {
		t.Fatalf("ListAnalyses: want newest first, got %s then %s", lst[0].Filename, lst[1].Filename)
	}

	got := lst[0]
	if !got.UploadDate.Equal(newer.UploadDate) {
		t.Errorf("UploadDate: want %v, got %v", newer.UploadDate, got.UploadDate)
	}
	if got.Range != report.Range {
		t.Errorf("Range: want %+v, got %+v", report.Range, got.Range)
	}
	if len(got.DayWise) != analysis.WindowDays {
		t.Fatalf("DayWise: want %d days, got %d", analysis.WindowDays, len(got.DayWise))
	}
	last := got.DayWise[analysis.WindowDays-1]
	if last != report.DayWise[analysis.WindowDays-1] || last.NewUsers != 1 || last.ActiveUsers != 1 {
		t.Errorf("DayWise: unexpected last day %+v", last)
	}
	if got.FrequentUsers == nil || len(got.FrequentUsers) != 0 {
		t.Errorf("FrequentUsers: want empty non-nil slice, got %#v", got.FrequentUsers)
	}
}

func testRevocations(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	expired := &domain.RevokedToken{TokenID: "jti-old", UserID: "u1", ExpiresAt: now.Add(-time.Minute)}
	live := &domain.RevokedToken{TokenID: "jti-live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}

	for _, tok := range []*domain.RevokedToken{expired, live, live} {
		if err := repo.RevokeToken(ctx, tok); err != nil {
			t.Fatalf("RevokeToken(%s): %v", tok.TokenID, err)
		}
	}

	for id, want := range map[string]bool{"jti-old": true, "jti-live": true, "jti-unknown": false} {
		got, err := repo.IsTokenRevoked(ctx, id)
		if err != nil || got != want {
			t.Fatalf("IsTokenRevoked(%s): want %v, got %v err=%v", id, want, got, err)
		}
	}

	n, err := repo.DeleteExpiredRevocations(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredRevocations: want 1, got %d err=%v", n, err)
	}
	if ok, _ := repo.IsTokenRevoked(ctx, "jti-old"); ok {
		t.Fatal("expired revocation survived the sweep")
	}
	if ok, _ := repo.IsTokenRevoked(ctx, "jti-live"); !ok {
		t.Fatal("live revocation was swept")
	}

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
