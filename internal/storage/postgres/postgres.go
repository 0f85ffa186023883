// Package postgres persists finalized transcript segments and dispatched
// alerts to PostgreSQL, grounded on the storage service's
// transcript_writer.py and alert_writer.py.
package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// ComputeSegmentHash computes the SHA-256 audit hash for a transcript
// segment, covering segmentID+textOriginal+startTime+sessionID. It is also
// the per-segment leaf hash fed into audit.BuildMerkleRoot.
func ComputeSegmentHash(segmentID, textOriginal string, startTime, sessionID string) string {
	payload := segmentID + textOriginal + startTime + sessionID
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// SegmentIndexer indexes a transcript segment for full-text search. A
// failing indexer never aborts the database write.
type SegmentIndexer interface {
	IndexSegment(ctx context.Context, segment model.TranscriptSegment) error
}

// TranscriptWriter persists finalized transcript segments.
type TranscriptWriter struct {
	pool    DB
	indexer SegmentIndexer
}

// NewTranscriptWriter returns a TranscriptWriter over pool. indexer may be
// nil to skip search indexing.
func NewTranscriptWriter(pool DB, indexer SegmentIndexer) *TranscriptWriter {
	return &TranscriptWriter{pool: pool, indexer: indexer}
}

// WriteSegment inserts segment into transcript_segments, computing its
// audit hash, then best-effort indexes it for search.
func (w *TranscriptWriter) WriteSegment(ctx context.Context, segment model.TranscriptSegment) error {
	hashText := segment.TextOriginal
	if hashText == "" {
		hashText = segment.TextRedacted
	}
	segment.SegmentHash = ComputeSegmentHash(segment.SegmentID, hashText, segment.StartTime.String(), segment.SessionID)

	wordTimestamps, err := json.Marshal(segment.WordTimestamps)
	if err != nil {
		return fmt.Errorf("postgres: marshal word timestamps: %w", err)
	}

	const stmt = `
INSERT INTO transcript_segments (
	segment_id, session_id, stream_id, speaker_label,
	start_time, end_time, text_redacted, text_original,
	word_timestamps, language, asr_backend, asr_confidence,
	sentiment_label, sentiment_score, pii_entities_found, segment_hash
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = w.pool.Exec(ctx, stmt,
		segment.SegmentID, segment.SessionID, segment.StreamID, segment.SpeakerLabel,
		segment.StartTime, segment.EndTime, segment.TextRedacted, segment.TextOriginal,
		wordTimestamps, segment.Language, segment.ASRBackend, segment.ASRConfidence,
		segment.SentimentLabel, segment.SentimentScore, segment.PIIEntitiesFound, segment.SegmentHash,
	)
	if err != nil {
		return fmt.Errorf("postgres: write segment %s: %w", segment.SegmentID, err)
	}
	slog.Info("segment written", "segment_id", segment.SegmentID, "stream_id", segment.StreamID)

	if w.indexer != nil {
		if err := w.indexer.IndexSegment(ctx, segment); err != nil {
			slog.Error("es index failed", "segment_id", segment.SegmentID, "error", err)
		}
	}
	return nil
}

// HandleMessage parses a JSON-encoded transcript segment read off a queue
// and persists it. A malformed payload is logged and dropped rather than
// returned as an error, matching the storage service's parse-then-persist
// message handler.
func (w *TranscriptWriter) HandleMessage(ctx context.Context, raw []byte) error {
	var segment model.TranscriptSegment
	if err := json.Unmarshal(raw, &segment); err != nil {
		slog.Error("transcript parse failed", "error", err)
		return nil
	}
	return w.WriteSegment(ctx, segment)
}

// AlertWriter persists dispatched alerts.
type AlertWriter struct {
	pool DB
}

// NewAlertWriter returns an AlertWriter over pool.
func NewAlertWriter(pool DB) *AlertWriter {
	return &AlertWriter{pool: pool}
}

// WriteAlert inserts alert into the alerts table. Its signature matches
// alert.AlertWriterFunc so it can be passed directly to
// alert.WithAlertWriter.
func (w *AlertWriter) WriteAlert(ctx context.Context, alert model.Alert) error {
	sentimentScores, err := json.Marshal(alert.SentimentScores)
	if err != nil {
		return fmt.Errorf("postgres: marshal sentiment scores: %w", err)
	}
	deliveryStatus, err := json.Marshal(alert.DeliveryStatus)
	if err != nil {
		return fmt.Errorf("postgres: marshal delivery status: %w", err)
	}

	const stmt = `
INSERT INTO alerts (
	alert_id, session_id, stream_id, segment_id, alert_type, severity,
	matched_rule, match_type, similarity_score, matched_text,
	surrounding_context, speaker_label, sentiment_scores,
	delivered_to, delivery_status, deduplicated
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = w.pool.Exec(ctx, stmt,
		alert.AlertID, alert.SessionID, alert.StreamID, alert.SegmentID, alert.AlertType, alert.Severity,
		alert.MatchedRule, alert.MatchType, alert.SimilarityScore, alert.MatchedText,
		alert.SurroundingContext, alert.SpeakerLabel, sentimentScores,
		alert.DeliveredTo, deliveryStatus, alert.Deduplicated,
	)
	if err != nil {
		return fmt.Errorf("postgres: write alert %s: %w", alert.AlertID, err)
	}
	slog.Info("alert written", "alert_id", alert.AlertID, "alert_type", alert.AlertType, "severity", alert.Severity)
	return nil
}
