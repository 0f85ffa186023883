// Package asr defines the Engine interface for ASR (automatic speech
// recognition) backends and the router that fails over between a primary
// and fallback engine.
//
// An Engine wraps a real-time or batch transcription backend (Deepgram,
// whisper.cpp) behind a uniform streaming interface. The central
// abstraction is SessionHandle: once opened, a session accepts raw PCM
// audio frames and emits two streams of model.TranscriptToken — low-latency
// partials for responsiveness and authoritative finals for persistence and
// downstream enrichment.
//
// Implementations must be safe for concurrent use.
package asr

import (
	"context"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// KeywordBoost is a vocabulary hint that increases recognition probability
// for a term an operator expects to hear (compliance terms, site-specific
// jargon, proper nouns).
type KeywordBoost struct {
	Keyword string
	Boost   float64
}

// StreamConfig describes the audio format and recognition hints for a new
// ASR session.
type StreamConfig struct {
	StreamID   string
	SessionID  string
	SampleRate int
	Channels   int
	Language   string
	Keywords   []KeywordBoost
}

// SessionHandle represents an open ASR streaming session.
//
// Callers must call Close when the session is no longer needed. All
// methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel of low-latency interim tokens.
	// The channel is closed when the session ends.
	Partials() <-chan model.TranscriptToken

	// Finals returns a read-only channel of authoritative tokens. These are
	// the tokens persisted and passed to diarization/NLP enrichment. The
	// channel is closed when the session ends.
	Finals() <-chan model.TranscriptToken

	// SetKeywords replaces the active keyword boost list without restarting
	// the session. Engines that do not support mid-session updates may
	// return an error; the session remains usable.
	SetKeywords(keywords []KeywordBoost) error

	// Close terminates the session and releases its resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Engine is the abstraction over any ASR backend.
type Engine interface {
	// Name identifies the engine for logging, metrics, and config (e.g.
	// "deepgram", "whisper").
	Name() string

	// StartStream opens a new streaming transcription session with the
	// given audio format and recognition configuration.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
