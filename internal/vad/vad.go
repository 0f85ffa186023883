// Package vad defines the Engine interface for Voice Activity Detection
// backends used to gate ASR input (C3): only frames classified as speech
// are forwarded to the ASR router, which is what lets a single ASR budget
// cover many concurrently-ingested streams.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// detection result, making it suitable for the low-latency per-chunk loop
// that sits between the chunker (C2) and the ASR router (C4).
//
// Implementations must be safe for concurrent use across different
// sessions. A single SessionHandle should not be shared across goroutines
// unless the implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame. VoxSentinel always resamples to 16000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame is classified
	// as speech. Range [0.0, 1.0]. Sourced from StreamConfig.VADThreshold.
	SpeechThreshold float64

	// SilenceThreshold is the probability below which an active speech
	// segment is considered ended. Must be <= SpeechThreshold.
	SilenceThreshold float64
}

// SessionHandle represents an active VAD session for a single stream. Each
// session maintains its own detection state; Reset clears this state
// without closing the session.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection
	// result. The frame must be raw little-endian PCM at the SampleRate and
	// FrameSizeMs configured when the session was created.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears all accumulated detection state without closing the
	// session. Used when a stream reconnects, to avoid stale state from
	// the previous connection bleeding into the new one.
	Reset()

	// Close releases all resources associated with the session. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend
// (silero, energy).
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	NewSession(cfg Config) (SessionHandle, error)
}

// Event is a voice activity detection result for a single audio frame.
type Event struct {
	Type        EventType
	Probability float64
}

// EventType enumerates VAD detection states.
type EventType int

const (
	// SpeechStart indicates speech has just begun; the gate should open
	// and start forwarding chunks to the ASR router.
	SpeechStart EventType = iota

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates speech has just ended; the gate should close.
	SpeechEnd

	// Silence indicates no speech detected.
	Silence
)
