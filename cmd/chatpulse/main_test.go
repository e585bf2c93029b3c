package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/ashureev/chatpulse/internal/identity"
	"github.com/ashureev/chatpulse/internal/store/storetest"
)

const transcript = "1/5/24, 10:30 AM - Alice: Bob added Carol\n1/6/24, 9:00 AM - Bob: hi\n"

func writeTranscript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.txt")
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0o600))
	return path
}

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeDefaultsToJSONWhenNotATerminal(t *testing.T) {
	out, err := runCmd(t, "", "analyze", writeTranscript(t))
	require.NoError(t, err)

	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "2024-01-06", report.Range.End.String())
	assert.Len(t, report.DayWise, analysis.WindowDays)
}

func TestAnalyzePlainFromStdin(t *testing.T) {
	out, err := runCmd(t, transcript, "analyze", "-", "--format", "plain")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "range\t2023-12-31\t2024-01-06\n"), out)
}

func TestAnalyzeTable(t *testing.T) {
	out, err := runCmd(t, "", "analyze", writeTranscript(t), "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "ACTIVE USERS")
}

func TestAnalyzeErrors(t *testing.T) {
	_, err := runCmd(t, "", "analyze", writeTranscript(t), "--format", "xml")
	assert.ErrorContains(t, err, "unsupported format")

	_, err = runCmd(t, "", "analyze", filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "open transcript")

	_, err = runCmd(t, "not a transcript\n", "analyze", "-")
	assert.ErrorIs(t, err, analysis.ErrNoValidMessages)

	_, err = runCmd(t, "", "analyze")
	assert.Error(t, err)
}

func TestDefaultFormat(t *testing.T) {
	assert.Equal(t, "json", defaultFormat(&bytes.Buffer{}))
}

func TestSeedUser(t *testing.T) {
	ctx := context.Background()
	repo := storetest.NewMemory()
	now := time.Unix(1_700_000_000, 0)

	created, err := seedUser(ctx, repo, " alice@example.com ", "s3cret", "user-1", now)
	require.NoError(t, err)
	assert.True(t, created)

	u, err := repo.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "user-1", u.UserID)
	assert.True(t, u.CreatedAt.Equal(now))
	ok, err := identity.CheckPassword(u.PasswordHash, "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)

	created, err = seedUser(ctx, repo, "alice@example.com", "other", "", now)
	require.NoError(t, err)
	assert.False(t, created)

	created, err = seedUser(ctx, repo, "bob@example.com", "pw", "", now)
	require.NoError(t, err)
	assert.True(t, created)
	bob, err := repo.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Len(t, bob.UserID, 36)

	_, err = seedUser(ctx, repo, "", "pw", "", now)
	assert.Error(t, err)
}

func TestSeedCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "seed.db")

	out, err := runCmd(t, "", "seed", "--db", db, "--email", "carol@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Equal(t, "created user carol@example.com\n", out)

	out, err = runCmd(t, "", "seed", "--db", db, "--email", "carol@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user carol@example.com already exists\n", out)

	_, err = runCmd(t, "", "seed", "--db", db, "--email", "carol@example.com")
	assert.Error(t, err)
}
