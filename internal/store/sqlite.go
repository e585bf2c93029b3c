package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		upload_date INTEGER NOT NULL,
		range_start TEXT NOT NULL,
		range_end TEXT NOT NULL,
		day_wise_json TEXT NOT NULL,
		active_users_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses(user_id, upload_date);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expiry ON revoked_tokens(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const userColumns = `user_id, email, password_hash, created_at, updated_at`

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Email, &user.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, email, password_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Email, user.PasswordHash,
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if shared.IsUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SaveAnalysis stores a transcript report.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *domain.Analysis) error {
	dayWise, err := json.Marshal(a.DayWise)
	if err != nil {
		return fmt.Errorf("encode day-wise stats: %w", err)
	}
	frequent := a.FrequentUsers
	if frequent == nil {
		frequent = []string{}
	}
	activeUsers, err := json.Marshal(frequent)
	if err != nil {
		return fmt.Errorf("encode active users: %w", err)
	}

	query := `
	INSERT INTO analyses (id, user_id, filename, upload_date, range_start, range_end, day_wise_json, active_users_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.Filename, a.UploadDate.UnixMilli(),
		a.Range.Start.String(), a.Range.End.String(),
		string(dayWise), string(activeUsers),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// ListAnalyses returns every analysis owned by userID, newest first.
func (s *SQLiteStore) ListAnalyses(ctx context.Context, userID string) ([]*domain.Analysis, error) {
	query := `
		SELECT id, user_id, filename, upload_date, range_start, range_end, day_wise_json, active_users_json
		FROM analyses WHERE user_id = ?
		ORDER BY upload_date DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close analyses rows", "error", closeErr)
		}
	}()

	analyses := make([]*domain.Analysis, 0)
	for rows.Next() {
		var a domain.Analysis
		var uploaded int64
		var start, end, dayWise, activeUsers string

		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Filename, &uploaded,
			&start, &end, &dayWise, &activeUsers,
		); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}

		a.UploadDate = time.UnixMilli(uploaded)
		if a.Range, err = parseRange(start, end); err != nil {
			return nil, fmt.Errorf("analysis %s: %w", a.ID, err)
		}
		a.DayWise = make([]analysis.DayStats, 0, analysis.WindowDays)
		if err := json.Unmarshal([]byte(dayWise), &a.DayWise); err != nil {
			return nil, fmt.Errorf("analysis %s: decode day-wise stats: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(activeUsers), &a.FrequentUsers); err != nil {
			return nil, fmt.Errorf("analysis %s: decode active users: %w", a.ID, err)
		}
		analyses = append(analyses, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}

	return analyses, nil
}

func parseRange(start, end string) (analysis.Range, error) {
	s, err := civil.ParseDate(strings.TrimSpace(start))
	if err != nil {
		return analysis.Range{}, fmt.Errorf("parse range start: %w", err)
	}
	e, err := civil.ParseDate(strings.TrimSpace(end))
	if err != nil {
		return analysis.Range{}, fmt.Errorf("parse range end: %w", err)
	}
	return analysis.Range{Start: s, End: e}, nil
}

// RevokeToken records a logged-out token.
func (s *SQLiteStore) RevokeToken(ctx context.Context, token *domain.RevokedToken) error {
	query := `
	INSERT INTO revoked_tokens (token_id, user_id, expires_at)
	VALUES (?, ?, ?)
	ON CONFLICT(token_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, token.TokenID, token.UserID, token.ExpiresAt.Unix()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether tokenID has been revoked.
func (s *SQLiteStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM revoked_tokens WHERE token_id = ?`, tokenID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}

// DeleteExpiredRevocations drops revocations whose token has expired by now.
func (s *SQLiteStore) DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	return result.RowsAffected()
}
