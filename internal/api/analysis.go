package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/identity"
	"github.com/ashureev/chatpulse/internal/metrics"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// multipartOverhead allows for boundaries and part headers around the file.
const multipartOverhead = 1 << 20

// AnalysisHandler handles transcript upload and retrieval.
type AnalysisHandler struct {
	*Handler
	recorder *Recorder
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(base *Handler, recorder *Recorder) *AnalysisHandler {
	return &AnalysisHandler{Handler: base, recorder: recorder}
}

// RegisterRoutes registers analysis routes. The router must already require
// authentication.
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/parse-txt", h.ParseTxt)
	r.Get("/api/v1/user/data", h.UserData)
}

type userDataResponse struct {
	UserID   string             `json:"user_id"`
	Analyses []*domain.Analysis `json:"analyses"`
}

type reportWithDatabaseError struct {
	*analysis.Report
	DatabaseError string `json:"database_error"`
}

// ParseTxt analyzes an uploaded transcript, stores the report and returns
// every analysis owned by the caller.
func (h *AnalysisHandler) ParseTxt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		metrics.ObserveRejected()
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			Error(w, http.StatusBadRequest, NewTooLargeError(h.maxUpload).Message)
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("Failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.ObserveRejected()
		Error(w, http.StatusBadRequest, ErrMissingFile.Message)
		return
	}
	defer file.Close()

	if err := ValidateUpload(header, h.maxUpload); err != nil {
		metrics.ObserveRejected()
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := readTranscript(file, h.maxUpload)
	if err != nil {
		metrics.ObserveRejected()
		var uerr *UploadError
		if errors.As(err, &uerr) {
			Error(w, http.StatusBadRequest, uerr.Message)
			return
		}
		slog.Error("Failed to read upload", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	agg := analysis.NewAggregator()
	_, _ = agg.Write(data)

	saved, err := h.recorder.Record(ctx, userID, header.Filename, agg)
	if errors.Is(err, analysis.ErrNoValidMessages) {
		Error(w, http.StatusUnprocessableEntity, "No valid messages found")
		return
	}
	var perr *PersistError
	if errors.As(err, &perr) {
		JSON(w, http.StatusOK, reportWithDatabaseError{Report: &saved.Report, DatabaseError: perr.Err.Error()})
		return
	}
	if err != nil {
		slog.Error("Failed to analyze transcript", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to analyze transcript")
		return
	}

	analyses, err := h.repo.ListAnalyses(ctx, userID)
	if err != nil {
		slog.Error("Failed to list analyses after save", "error", err, "user_id", userID)
		JSON(w, http.StatusOK, reportWithDatabaseError{Report: &saved.Report, DatabaseError: err.Error()})
		return
	}

	JSON(w, http.StatusOK, userDataResponse{UserID: userID, Analyses: analyses})
}

// UserData returns every analysis owned by the caller, newest first.
func (h *AnalysisHandler) UserData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := identity.UserIDFromContext(ctx)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	analyses, err := h.repo.ListAnalyses(ctx, userID)
	if err != nil {
		slog.Error("Failed to list analyses", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "An error occurred while retrieving user data")
		return
	}

	JSON(w, http.StatusOK, userDataResponse{UserID: userID, Analyses: analyses})
}
