// Package stream provides WebSocket transcript ingestion.
package stream

import (
	"log/slog"
	"sync"
)

// StopFunc ends an ingest session, passing the reason on to the client.
type StopFunc func(reason string)

type session struct {
	id   uint64
	stop StopFunc
}

// SessionManager tracks the active ingest for each user and tab session.
type SessionManager struct {
	mu     sync.Mutex
	nextID uint64
	active map[string]map[string]session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]session),
	}
}

// Register makes stop the active ingest for userID/sessionID, stopping any
// ingest it replaces. The returned ID is passed to Unregister.
func (m *SessionManager) Register(userID, sessionID string, stop StopFunc) uint64 {
	m.mu.Lock()
	m.nextID++
	id := m.nextID

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]session)
	}
	previous, replaced := m.active[userID][sessionID]
	m.active[userID][sessionID] = session{id: id, stop: stop}
	m.mu.Unlock()

	if replaced {
		previous.stop("session replaced")
		slog.Info("Ingest session replaced", "user_id", userID, "session_id", sessionID)
	}
	slog.Info("Ingest session registered", "user_id", userID, "session_id", sessionID)
	return id
}

// Unregister removes the session registered under id. A session that has
// already been replaced is left alone.
func (m *SessionManager) Unregister(userID, sessionID string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[userID]
	if !ok {
		return
	}
	if current, exists := sessions[sessionID]; exists && current.id == id {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(m.active, userID)
		}
		slog.Info("Ingest session unregistered", "user_id", userID, "session_id", sessionID)
	}
}

// isActive reports whether userID has an ingest running for sessionID.
func (m *SessionManager) isActive(userID, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[userID][sessionID]
	return ok
}

// CloseAll stops every active ingest. Used on server shutdown, since
// hijacked WebSocket connections outlive http.Server.Shutdown.
func (m *SessionManager) CloseAll(reason string) {
	m.mu.Lock()
	var stops []StopFunc
	for userID, sessions := range m.active {
		for _, s := range sessions {
			stops = append(stops, s.stop)
		}
		delete(m.active, userID)
	}
	m.mu.Unlock()

	for _, stop := range stops {
		stop(reason)
	}
	if len(stops) > 0 {
		slog.Info("Ingest sessions closed", "count", len(stops), "reason", reason)
	}
}
