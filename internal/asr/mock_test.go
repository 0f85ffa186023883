package asr

import (
	"context"
	"errors"
	"sync"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// mockEngine is a test double whose StartStream outcome is controlled by
// the caller via failNext/failAlways.
type mockEngine struct {
	name       string
	failAlways bool
	failNext   int
	started    int

	mu          sync.Mutex
	lastSession *mockSession
}

func (m *mockEngine) Name() string { return m.name }

func (m *mockEngine) StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error) {
	m.started++
	if m.failAlways || m.failNext > 0 {
		if m.failNext > 0 {
			m.failNext--
		}
		return nil, errors.New("mock engine: simulated failure")
	}
	session := &mockSession{
		partials: make(chan model.TranscriptToken),
		finals:   make(chan model.TranscriptToken),
	}
	m.mu.Lock()
	m.lastSession = session
	m.mu.Unlock()
	return session, nil
}

// session returns the most recently started session, or nil if none has
// started yet.
func (m *mockEngine) session() *mockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSession
}

type mockSession struct {
	partials chan model.TranscriptToken
	finals   chan model.TranscriptToken

	mu        sync.Mutex
	sentAudio [][]byte
}

func (s *mockSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentAudio = append(s.sentAudio, chunk)
	return nil
}

func (s *mockSession) audioCalls() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentAudio
}

func (s *mockSession) Partials() <-chan model.TranscriptToken    { return s.partials }
func (s *mockSession) Finals() <-chan model.TranscriptToken      { return s.finals }
func (s *mockSession) SetKeywords(keywords []KeywordBoost) error { return nil }
func (s *mockSession) Close() error {
	close(s.partials)
	close(s.finals)
	return nil
}
