package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/metrics"
	"github.com/ashureev/chatpulse/internal/store"
)

// PersistError wraps a failure to store an otherwise valid analysis.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persist analysis: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// Recorder turns a filled aggregator into a stored analysis.
type Recorder struct {
	repo store.Repository
	now  func() time.Time
}

// NewRecorder creates a Recorder backed by repo.
func NewRecorder(repo store.Repository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// Record builds the report for agg and saves it for userID. It returns
// analysis.ErrNoValidMessages when nothing could be dated. When only the save
// fails the analysis is still returned alongside a *PersistError.
func (rec *Recorder) Record(ctx context.Context, userID, filename string, agg *analysis.Aggregator) (*domain.Analysis, error) {
	report, err := agg.Report()
	stats := agg.Stats()
	if errors.Is(err, analysis.ErrNoValidMessages) {
		metrics.ObserveAnalysis(metrics.OutcomeNoMessages, stats)
		slog.Info("Transcript had no valid messages", "user_id", userID, "filename", filename, "lines", stats.Lines)
		return nil, err
	}
	if err != nil {
		metrics.ObserveAnalysis(metrics.OutcomeError, stats)
		return nil, err
	}

	a := domain.NewAnalysis(userID, filename, report, rec.now())
	if err := store.SaveAnalysisWithRetry(ctx, rec.repo, a); err != nil {
		metrics.ObserveAnalysis(metrics.OutcomeError, stats)
		slog.Error("Failed to save analysis", "error", err, "user_id", userID, "analysis_id", a.ID)
		return a, &PersistError{Err: err}
	}

	metrics.ObserveAnalysis(metrics.OutcomeSuccess, stats)
	slog.Info("Analysis saved",
		"user_id", userID,
		"analysis_id", a.ID,
		"filename", filename,
		"range_end", a.Range.End.String(),
		"records", stats.Records,
		"skipped", stats.Skipped(),
	)
	return a, nil
}
