// Package model defines the domain entities shared across every VoxSentinel
// pipeline stage: streams, sessions, audio chunks, transcript tokens, speaker
// segments, persisted transcript segments, keyword rules, alerts, alert
// channel configuration, and audit anchors.
//
// Types in this package carry no behaviour beyond small derived accessors —
// they are the nouns every component (C1–C10) reads and writes via the
// queues in package queue and the stores in package storage.
package model

import "time"

// StreamStatus is the lifecycle state of a Stream.
type StreamStatus string

const (
	StreamActive  StreamStatus = "active"
	StreamPaused  StreamStatus = "paused"
	StreamError   StreamStatus = "error"
	StreamStopped StreamStatus = "stopped"
)

// Stream is a logical audio source being ingested and processed.
type Stream struct {
	StreamID         string       `json:"stream_id"`
	SourceDescriptor string       `json:"source_descriptor"`
	ASRPrimary       string       `json:"asr_primary"`
	ASRFallback      string       `json:"asr_fallback,omitempty"`
	VADThreshold     float64      `json:"vad_threshold"`
	ChunkMs          int          `json:"chunk_ms"`
	Status           StreamStatus `json:"status"`
	CurrentSessionID string       `json:"current_session_id,omitempty"`
}

// Session is one continuous processing run of a Stream, opened when the
// stream transitions to active and closed on stop.
type Session struct {
	SessionID     string     `json:"session_id"`
	StreamID      string     `json:"stream_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	ASRBackendUsed string    `json:"asr_backend_used,omitempty"`
	SegmentCount  int        `json:"segment_count"`
	AlertCount    int        `json:"alert_count"`
}

// AudioChunk is a fixed-duration slice of 16 kHz mono signed 16-bit
// little-endian PCM audio. It is transient and is never persisted; it only
// ever travels across the audio_chunks/speech_chunks queues.
type AudioChunk struct {
	ChunkID    string    `json:"chunk_id"`
	StreamID   string    `json:"stream_id"`
	SessionID  string    `json:"session_id"`
	PCM        []byte    `json:"-"`
	ProducedAt time.Time `json:"produced_at"`
	DurationMs int       `json:"duration_ms"`
}

// ExpectedPCMBytes returns the number of PCM bytes an AudioChunk of
// durationMs at sampleRate (mono, 16-bit) must contain.
func ExpectedPCMBytes(sampleRate, durationMs int) int {
	return sampleRate * durationMs / 1000 * 2
}

// WordTimestamp is per-word timing and confidence detail from an ASR engine.
type WordTimestamp struct {
	Word       string        `json:"word"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence"`
}

// TranscriptToken is a unit of ASR output. Non-final tokens may be
// superseded by later, more authoritative tokens covering the same span;
// consumers that care about finality must filter on IsFinal rather than
// counting tokens.
type TranscriptToken struct {
	Text            string          `json:"text"`
	IsFinal         bool            `json:"is_final"`
	StartTime       time.Duration   `json:"start_time"`
	EndTime         time.Duration   `json:"end_time"`
	Confidence      float64         `json:"confidence"`
	Language        string          `json:"language"`
	WordTimestamps  []WordTimestamp `json:"word_timestamps,omitempty"`
	StreamID        string          `json:"stream_id"`
	SessionID       string          `json:"session_id"`
}

// SpeakerSegment is a single speaker turn detected within a diarization
// window. A stream's SpeakerSegment list is always sorted by StartMs.
type SpeakerSegment struct {
	SpeakerLabel string `json:"speaker_label"`
	StartMs      int64  `json:"start_ms"`
	EndMs        int64  `json:"end_ms"`
}

// SpeakerUnknown is the sentinel label assigned when no speaker segment
// list is available yet for a stream.
const SpeakerUnknown = "SPEAKER_UNKNOWN"

// EnrichedToken is a TranscriptToken annotated with the speaker label
// assigned by the speaker merger (C6).
type EnrichedToken struct {
	TranscriptToken
	SpeakerLabel string `json:"speaker_id"`
}

// MatchType enumerates the keyword matcher that produced a KeywordMatchEvent.
type MatchType string

const (
	MatchExact  MatchType = "exact"
	MatchFuzzy  MatchType = "fuzzy"
	MatchRegex  MatchType = "regex"
	MatchSentimentThreshold MatchType = "sentiment_threshold"
)

// Severity is the operator-facing urgency of an Alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// KeywordRule configures one entry in the keyword/sentiment/PII detection
// set. The set of all enabled rules is partitioned by MatchType and
// consumed by the corresponding matcher in package nlp/keyword.
type KeywordRule struct {
	RuleID         string    `json:"rule_id"`
	RuleSet        string    `json:"rule_set"`
	Keyword        string    `json:"keyword"`
	MatchType      MatchType `json:"match_type"`
	FuzzyThreshold float64   `json:"fuzzy_threshold"`
	Severity       Severity  `json:"severity"`
	Category       string    `json:"category"`
	Language       string    `json:"language,omitempty"`
	Enabled        bool      `json:"enabled"`
}

// KeywordMatchEvent is emitted by the keyword sub-pipeline (§4.7.1) for
// every hit across the exact, fuzzy, and regex matchers.
type KeywordMatchEvent struct {
	StreamID           string    `json:"stream_id"`
	SessionID          string    `json:"session_id"`
	Keyword            string    `json:"keyword"`
	RuleID             string    `json:"rule_id"`
	MatchType          MatchType `json:"match_type"`
	Severity           Severity  `json:"severity,omitempty"`
	SimilarityScore    *float64  `json:"similarity_score,omitempty"`
	MatchedText        string    `json:"matched_text"`
	SurroundingContext string    `json:"surrounding_context"`
	SpeakerLabel       string    `json:"speaker_id,omitempty"`
}

// SentimentEvent is emitted by the sentiment sub-pipeline (§4.7.2) when an
// escalation (K consecutive negative spans above threshold) is detected.
type SentimentEvent struct {
	StreamID        string  `json:"stream_id"`
	SessionID       string  `json:"session_id"`
	SpeakerLabel    string  `json:"speaker_id,omitempty"`
	SentimentLabel  string  `json:"sentiment_label"`
	SentimentScore  float64 `json:"sentiment_score"`
}

// RedactedToken is the output of the PII sub-pipeline (§4.7.3), appended to
// redacted_tokens:{stream_id} after all three NLP sub-pipelines complete.
type RedactedToken struct {
	StreamID        string        `json:"stream_id"`
	SessionID       string        `json:"session_id"`
	SpeakerLabel    string        `json:"speaker_id,omitempty"`
	TextOriginal    string        `json:"text_original"`
	TextRedacted    string        `json:"text_redacted"`
	EntitiesFound   []string      `json:"entities_found"`
	SentimentLabel  string        `json:"sentiment_label"`
	SentimentScore  float64       `json:"sentiment_score"`
	StartTime       time.Duration `json:"start_time"`
	EndTime         time.Duration `json:"end_time"`
	Language        string        `json:"language"`
	ASRBackend      string        `json:"asr_backend"`
	ASRConfidence   float64       `json:"asr_confidence"`
}

// TranscriptSegment is the persisted, fully-enriched unit of a session's
// transcript: one per final token, after NLP enrichment.
type TranscriptSegment struct {
	SegmentID       string    `json:"segment_id"`
	SessionID       string    `json:"session_id"`
	StreamID        string    `json:"stream_id"`
	SpeakerLabel    string    `json:"speaker_label,omitempty"`
	StartTime       time.Duration `json:"start_time"`
	EndTime         time.Duration `json:"end_time"`
	TextRedacted    string    `json:"text_redacted"`
	TextOriginal    string    `json:"text_original,omitempty"`
	WordTimestamps  []WordTimestamp `json:"word_timestamps,omitempty"`
	Language        string    `json:"language"`
	ASRBackend      string    `json:"asr_backend"`
	ASRConfidence   float64   `json:"asr_confidence"`
	SentimentLabel  string    `json:"sentiment_label,omitempty"`
	SentimentScore  float64   `json:"sentiment_score,omitempty"`
	PIIEntitiesFound []string `json:"pii_entities_found,omitempty"`
	SegmentHash     string    `json:"segment_hash"`
	CreatedAt       time.Time `json:"created_at"`
}

// AlertType enumerates the origin of an Alert.
type AlertType string

const (
	AlertKeyword    AlertType = "keyword"
	AlertSentiment  AlertType = "sentiment"
	AlertCompliance AlertType = "compliance"
	AlertIntent     AlertType = "intent"
)

// DeliveryStatus is the per-channel outcome of dispatching an Alert.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryError     DeliveryStatus = "error"
)

// Alert is a single operator-facing notification produced by the dispatcher
// (C8) from a KeywordMatchEvent or SentimentEvent.
type Alert struct {
	AlertID            string                    `json:"alert_id"`
	SessionID          string                    `json:"session_id"`
	StreamID           string                    `json:"stream_id"`
	SegmentID          string                    `json:"segment_id,omitempty"`
	AlertType          AlertType                 `json:"alert_type"`
	Severity           Severity                  `json:"severity"`
	MatchedRule        string                    `json:"matched_rule"`
	MatchType          MatchType                 `json:"match_type"`
	SimilarityScore    *float64                  `json:"similarity_score,omitempty"`
	MatchedText        string                    `json:"matched_text"`
	SurroundingContext string                    `json:"surrounding_context"`
	SpeakerLabel       string                    `json:"speaker_label,omitempty"`
	SentimentScores    map[string]float64        `json:"sentiment_scores,omitempty"`
	DeliveredTo        []string                  `json:"delivered_to"`
	DeliveryStatus     map[string]DeliveryStatus `json:"delivery_status"`
	Deduplicated       bool                      `json:"deduplicated"`
	CreatedAt          time.Time                 `json:"created_at"`
}

// ChannelType enumerates the supported alert transports.
type ChannelType string

const (
	ChannelWebSocket ChannelType = "websocket"
	ChannelWebhook   ChannelType = "webhook"
	ChannelSlack     ChannelType = "slack"
	ChannelTeams     ChannelType = "teams"
	ChannelEmail     ChannelType = "email"
	ChannelSMS       ChannelType = "sms"
	ChannelSignal    ChannelType = "signal"
)

// AlertChannelConfig configures one operator-defined delivery destination.
type AlertChannelConfig struct {
	ChannelID   string                 `json:"channel_id"`
	ChannelType ChannelType            `json:"channel_type"`
	ConfigBlob  map[string]any         `json:"config_blob"`
	MinSeverity Severity               `json:"min_severity"`
	AlertTypes  []AlertType            `json:"alert_types"`
	StreamIDs   []string               `json:"stream_ids,omitempty"` // nil = all
	Enabled     bool                   `json:"enabled"`
}

// AuditAnchor is a Merkle root over a contiguous, disjoint range of segment
// hashes. Anchors are append-only: once written, an anchor is never
// updated or deleted by the application.
type AuditAnchor struct {
	AnchorID       int64     `json:"anchor_id"`
	MerkleRoot     string    `json:"merkle_root"`
	SegmentCount   int       `json:"segment_count"`
	FirstSegmentID string    `json:"first_segment_id"`
	LastSegmentID  string    `json:"last_segment_id"`
	AnchoredAt     time.Time `json:"anchored_at"`
}
