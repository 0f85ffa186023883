package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/queue"
)

// SegmentConsumer is C9's streaming half: it reads redacted_tokens:{id}
// (the flattened field map package nlp's Consumer publishes, not the
// single-blob TranscriptSegment JSON HandleMessage expects) and persists
// each entry as a TranscriptSegment via TranscriptWriter.
type SegmentConsumer struct {
	writer  *TranscriptWriter
	streams queue.Streams
}

// NewSegmentConsumer builds a SegmentConsumer over writer and streams.
func NewSegmentConsumer(writer *TranscriptWriter, streams queue.Streams) *SegmentConsumer {
	return &SegmentConsumer{writer: writer, streams: streams}
}

// Run blocks, consuming redacted_tokens:{streamID} until ctx is cancelled.
func (c *SegmentConsumer) Run(ctx context.Context, streamID string) error {
	in := fmt.Sprintf("redacted_tokens:%s", streamID)
	lastID := "0"
	log := slog.With("component", "segment_consumer", "stream_id", streamID)
	log.Info("segment consumer started", "stream", in)

	for {
		select {
		case <-ctx.Done():
			log.Info("segment consumer stopped")
			return ctx.Err()
		default:
		}

		msgs, err := c.streams.Read(ctx, in, lastID, 10, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("segment consumer xread error", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			segment, err := decodeRedactedFields(m.Fields)
			if err != nil {
				log.Warn("segment consumer decode error", "err", err)
				continue
			}
			if err := c.writer.WriteSegment(ctx, segment); err != nil {
				log.Warn("segment consumer write error", "err", err)
			}
		}
	}
}

// decodeRedactedFields parses the flattened wire field map
// nlp.EncodeRedactedToken produces into a full TranscriptSegment, minting
// a fresh SegmentID and CreatedAt since redacted_tokens carries neither.
func decodeRedactedFields(fields map[string]string) (model.TranscriptSegment, error) {
	startMs, err := strconv.ParseInt(fields["start_time_ms"], 10, 64)
	if err != nil {
		return model.TranscriptSegment{}, fmt.Errorf("postgres: parse start_time_ms: %w", err)
	}
	endMs, err := strconv.ParseInt(fields["end_time_ms"], 10, 64)
	if err != nil {
		return model.TranscriptSegment{}, fmt.Errorf("postgres: parse end_time_ms: %w", err)
	}
	sentimentScore, _ := strconv.ParseFloat(fields["sentiment_score"], 64)
	asrConfidence, _ := strconv.ParseFloat(fields["asr_confidence"], 64)

	var entities []string
	if raw := fields["entities_found"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &entities); err != nil {
			return model.TranscriptSegment{}, fmt.Errorf("postgres: parse entities_found: %w", err)
		}
	}

	return model.TranscriptSegment{
		SegmentID:        uuid.NewString(),
		SessionID:        fields["session_id"],
		StreamID:         fields["stream_id"],
		SpeakerLabel:     fields["speaker_id"],
		StartTime:        time.Duration(startMs) * time.Millisecond,
		EndTime:          time.Duration(endMs) * time.Millisecond,
		TextRedacted:     fields["text_redacted"],
		TextOriginal:     fields["text_original"],
		Language:         fields["language"],
		ASRBackend:       fields["asr_backend"],
		ASRConfidence:    asrConfidence,
		SentimentLabel:   fields["sentiment_label"],
		SentimentScore:   sentimentScore,
		PIIEntitiesFound: entities,
		CreatedAt:        time.Now(),
	}, nil
}
