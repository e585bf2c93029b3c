package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// UploadError is a rejected upload. Message is returned to the client as-is.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string { return e.Message }

// Upload validation errors.
var (
	ErrMissingFile = &UploadError{Message: "No file uploaded"}
	ErrNotTxt      = &UploadError{Message: "Only .txt files are allowed"}
	ErrNotUTF8     = &UploadError{Message: "File must be UTF-8 encoded text"}
)

// NewTooLargeError returns the error for an upload over limit bytes.
func NewTooLargeError(limit int64) *UploadError {
	const mb = 1024 * 1024
	if limit%mb == 0 {
		return &UploadError{Message: fmt.Sprintf("File size exceeds %dMB limit", limit/mb)}
	}
	return &UploadError{Message: fmt.Sprintf("File size exceeds %d byte limit", limit)}
}

// ValidateUpload checks the name and declared size of an uploaded transcript.
func ValidateUpload(header *multipart.FileHeader, limit int64) error {
	if header == nil {
		return ErrMissingFile
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".txt") {
		return ErrNotTxt
	}
	if header.Size > limit {
		return NewTooLargeError(limit)
	}
	return nil
}

// readTranscript reads at most limit bytes from r and requires valid UTF-8.
// A leading byte order mark is dropped.
func readTranscript(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, NewTooLargeError(limit)
	}
	data = trimBOM(data)
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	return data, nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
