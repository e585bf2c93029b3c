package stream

import (
	"strconv"
	"sync"
	"testing"
)

type stopRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (s *stopRecorder) stop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, reason)
}

func (s *stopRecorder) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reasons...)
}

func TestSessionManager_Register(t *testing.T) {
	sm := NewSessionManager()
	userID := "user123"
	sessionID := "tab-1"

	sm.Register(userID, sessionID, func(string) {})

	if !sm.isActive(userID, sessionID) {
		t.Error("Expected session to be active")
	}
	if sm.isActive(userID, "tab-2") {
		t.Error("Expected other session to be inactive")
	}
}

func TestSessionManager_Unregister(t *testing.T) {
	sm := NewSessionManager()
	userID := "user123"
	sessionID := "tab-1"

	id := sm.Register(userID, sessionID, func(string) {})
	sm.Unregister(userID, sessionID, id)

	if sm.isActive(userID, sessionID) {
		t.Error("Expected session to be gone")
	}
}

func TestSessionManager_ReplaceStopsPrevious(t *testing.T) {
	sm := NewSessionManager()
	first := &stopRecorder{}
	second := &stopRecorder{}

	oldID := sm.Register("user123", "tab-1", first.stop)
	sm.Register("user123", "tab-1", second.stop)

	if got := first.calls(); len(got) != 1 || got[0] != "session replaced" {
		t.Errorf("Expected first session stopped once, got %v", got)
	}
	if got := second.calls(); len(got) != 0 {
		t.Errorf("Expected second session untouched, got %v", got)
	}

	// The replaced handler unregistering late must not evict its successor.
	sm.Unregister("user123", "tab-1", oldID)
	if !sm.isActive("user123", "tab-1") {
		t.Error("Stale unregister removed the replacement session")
	}
}

func TestSessionManager_SessionsAreIndependent(t *testing.T) {
	sm := NewSessionManager()
	tab1 := &stopRecorder{}
	tab2 := &stopRecorder{}

	id1 := sm.Register("user123", "tab-1", tab1.stop)
	sm.Register("user123", "tab-2", tab2.stop)
	sm.Register("other", "tab-1", func(string) {})

	sm.Unregister("user123", "tab-1", id1)

	if !sm.isActive("user123", "tab-2") || !sm.isActive("other", "tab-1") {
		t.Error("Unregister affected unrelated sessions")
	}
	if len(tab1.calls())+len(tab2.calls()) != 0 {
		t.Error("No session should have been stopped")
	}
}

func TestSessionManager_CloseAll(t *testing.T) {
	sm := NewSessionManager()
	stops := &stopRecorder{}
	for i := 0; i < 3; i++ {
		sm.Register("user"+strconv.Itoa(i), "tab", stops.stop)
	}

	sm.CloseAll("server shutting down")

	if got := stops.calls(); len(got) != 3 {
		t.Fatalf("Expected 3 stops, got %v", got)
	}
	for i := 0; i < 3; i++ {
		if sm.isActive("user"+strconv.Itoa(i), "tab") {
			t.Errorf("user%d still active", i)
		}
	}
}

func TestSessionManager_ConcurrentAccess(t *testing.T) {
	sm := NewSessionManager()
	userID := "concurrentUser"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			id := sm.Register(userID, "tab-"+strconv.Itoa(i%10), func(string) {})
			sm.Unregister(userID, "tab-"+strconv.Itoa(i%10), id)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.isActive(userID, "tab-"+strconv.Itoa(i%10))
		}
	}()
	wg.Wait()
}
