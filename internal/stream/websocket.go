package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/chatpulse/internal/analysis"
	"github.com/ashureev/chatpulse/internal/api"
	"github.com/ashureev/chatpulse/internal/domain"
	"github.com/ashureev/chatpulse/internal/identity"
)

const (
	// maxMessageBytes bounds a single frame; the whole ingest is bounded
	// separately by the upload limit.
	maxMessageBytes = 4 << 20
	writeTimeout    = 5 * time.Second
	defaultFilename = "stream.txt"
)

// Recorder stores a finished ingest. It is satisfied by *api.Recorder.
type Recorder interface {
	Record(ctx context.Context, userID, filename string, agg *analysis.Aggregator) (*domain.Analysis, error)
}

// IngestHandler streams a transcript over a WebSocket into an aggregator.
type IngestHandler struct {
	recorder      Recorder
	sm            *SessionManager
	maxBytes      int64
	allowedOrigin string
	isDev         bool
}

// NewIngestHandler creates a new WebSocket ingest handler.
func NewIngestHandler(recorder Recorder, sm *SessionManager, maxBytes int64, allowedOrigin string, isDev bool) *IngestHandler {
	return &IngestHandler{
		recorder:      recorder,
		sm:            sm,
		maxBytes:      maxBytes,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage represents an inbound WebSocket message.
type wsMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type reportMessage struct {
	Type          string           `json:"type"`
	Analysis      *domain.Analysis `json:"analysis"`
	DatabaseError string           `json:"database_error,omitempty"`
}

// ingest is the per-connection state between "done" messages.
type ingest struct {
	agg   *analysis.Aggregator
	bytes int64
}

func (in *ingest) reset() {
	in.agg = analysis.NewAggregator()
	in.bytes = 0
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket ingest request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(maxMessageBytes)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "ingest ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Close before cancelling so the client sees the reason rather than a
	// policy-violation close from the aborted read. The close handshake
	// waits on the peer, so it must not block the caller.
	id := h.sm.Register(userID, sessionID, func(reason string) {
		go func() {
			_ = ws.Close(websocket.StatusNormalClosure, reason)
			cancel()
		}()
	})
	defer h.sm.Unregister(userID, sessionID, id)

	h.readLoop(ctx, ws, userID)
	slog.Info("Ingest session ended", "user_id", userID, "session_id", sessionID)
}

func (h *IngestHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *IngestHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	in := &ingest{}
	in.reset()

	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(ctx, ws, "invalid message")
			continue
		}

		switch msg.Type {
		case "lines":
			in.bytes += int64(len(msg.Content))
			if in.bytes > h.maxBytes {
				h.sendError(ctx, ws, api.NewTooLargeError(h.maxBytes).Message)
				_ = ws.Close(websocket.StatusMessageTooBig, "ingest too large")
				return
			}
			_, _ = in.agg.Write([]byte(msg.Content))
		case "ping":
			h.writeJSON(ctx, ws, map[string]string{"type": "pong"})
		case "done":
			h.finish(ctx, ws, userID, msg.Filename, in.agg)
			in.reset()
		default:
			h.sendError(ctx, ws, "unknown message type")
		}
	}
}

func (h *IngestHandler) finish(ctx context.Context, ws *websocket.Conn, userID, filename string, agg *analysis.Aggregator) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = defaultFilename
	}
	if !strings.EqualFold(filepath.Ext(filename), ".txt") {
		h.sendError(ctx, ws, api.ErrNotTxt.Message)
		return
	}

	saved, err := h.recorder.Record(ctx, userID, filename, agg)
	if errors.Is(err, analysis.ErrNoValidMessages) {
		h.sendError(ctx, ws, "No valid messages found")
		return
	}
	var perr *api.PersistError
	if errors.As(err, &perr) {
		h.writeJSON(ctx, ws, reportMessage{Type: "report", Analysis: saved, DatabaseError: perr.Err.Error()})
		return
	}
	if err != nil {
		slog.Error("Failed to analyze streamed transcript", "error", err, "user_id", userID)
		h.sendError(ctx, ws, "failed to analyze transcript")
		return
	}
	h.writeJSON(ctx, ws, reportMessage{Type: "report", Analysis: saved})
}

func (h *IngestHandler) sendError(ctx context.Context, ws *websocket.Conn, message string) {
	h.writeJSON(ctx, ws, errorMessage{Type: "error", Error: message})
}

func (h *IngestHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode WebSocket message", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}
