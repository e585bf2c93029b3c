package domain

import (
	"time"

	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/google/uuid"
)

// Analysis is a stored transcript report owned by a user.
type Analysis struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	analysis.Report
}

// NewAnalysis wraps a report with a fresh identifier and its owner.
func NewAnalysis(userID, filename string, report *analysis.Report, uploaded time.Time) *Analysis {
	return &Analysis{
		ID:         uuid.NewString(),
		UserID:     userID,
		Filename:   filename,
		UploadDate: uploaded,
		Report:     *report,
	}
}
