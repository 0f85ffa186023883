package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// SessionManager tracks one model.Session per stream, in memory only:
// VoxSentinel has no sessions table migration, so a stream's current
// session lives only as long as the process does. A restart starts a
// fresh session for every stream, whereas a dropped connection during
// ingest.Extractor.Run keeps the existing session rather than minting a
// new one (see App.runIngest).
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

// NewSessionManager returns an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*model.Session)}
}

// Start opens a new session for streamID, replacing any previous session
// recorded for it without closing it out first (the caller is expected to
// have already stopped the old pipeline).
func (m *SessionManager) Start(streamID string) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &model.Session{
		SessionID: uuid.NewString(),
		StreamID:  streamID,
		StartedAt: time.Now(),
	}
	m.sessions[streamID] = s
	return s
}

// Current returns the active session for streamID, or nil if none is
// running.
func (m *SessionManager) Current(streamID string) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[streamID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// End marks streamID's session as finished and removes it from the active
// set.
func (m *SessionManager) End(streamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[streamID]
	if !ok {
		return fmt.Errorf("app: no active session for stream %s", streamID)
	}
	now := time.Now()
	s.EndedAt = &now
	delete(m.sessions, streamID)
	return nil
}

// RecordSegment increments the segment counter for streamID's active
// session, if one exists.
func (m *SessionManager) RecordSegment(streamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[streamID]; ok {
		s.SegmentCount++
	}
}

// RecordAlert increments the alert counter for streamID's active session,
// if one exists.
func (m *SessionManager) RecordAlert(streamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[streamID]; ok {
		s.AlertCount++
	}
}

// Active returns the stream IDs with a currently tracked session, in no
// particular order.
func (m *SessionManager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
