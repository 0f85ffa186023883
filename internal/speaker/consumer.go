package speaker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/queue"
)

// SegmentSource supplies the latest diarization segment list for a stream.
// *diarization.Accumulator satisfies this directly via its own Latest
// method; the merger re-applies it before merging every token rather than
// reconstructing the list from the diarization_events pub/sub fan-out,
// since the accumulator already keeps the authoritative in-memory copy
// that fan-out is derived from.
type SegmentSource interface {
	Latest(streamID string) []model.SpeakerSegment
}

// Consumer is C6's streaming half: it joins transcript_tokens:{stream_id}
// with the latest diarization segment list for that stream and republishes
// the result onto enriched_tokens:{stream_id}.
type Consumer struct {
	merger  *Merger
	source  SegmentSource
	streams queue.Streams
}

// NewConsumer builds a Consumer over merger, source, and streams.
func NewConsumer(merger *Merger, source SegmentSource, streams queue.Streams) *Consumer {
	return &Consumer{merger: merger, source: source, streams: streams}
}

// Run blocks, consuming transcript_tokens:{streamID} until ctx is
// cancelled.
func (c *Consumer) Run(ctx context.Context, streamID string) error {
	in := fmt.Sprintf("transcript_tokens:%s", streamID)
	out := fmt.Sprintf("enriched_tokens:%s", streamID)
	lastID := "0"
	log := slog.With("component", "speaker_merger", "stream_id", streamID)
	log.Info("speaker merger started", "stream", in)

	for {
		select {
		case <-ctx.Done():
			log.Info("speaker merger stopped")
			return ctx.Err()
		default:
		}

		msgs, err := c.streams.Read(ctx, in, lastID, 10, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("speaker merger xread error", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			if err := c.handleToken(ctx, streamID, m.Fields["token"], out); err != nil {
				log.Warn("speaker merger handle token error", "err", err)
			}
		}
	}
}

func (c *Consumer) handleToken(ctx context.Context, streamID, raw, out string) error {
	var tok model.TranscriptToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return fmt.Errorf("speaker: decode token: %w", err)
	}

	if c.source != nil {
		c.merger.UpdateSegments(c.source.Latest(streamID))
	}

	enriched := c.merger.Merge([]model.TranscriptToken{tok})[0]
	fields := EncodeEnrichedToken(enriched)
	if _, err := c.streams.Add(ctx, out, fields, 10_000); err != nil {
		return fmt.Errorf("speaker: publish to %s: %w", out, err)
	}
	return nil
}

// EncodeEnrichedToken serializes an EnrichedToken into the wire field map
// consumers of enriched_tokens:{stream_id} expect.
func EncodeEnrichedToken(tok model.EnrichedToken) map[string]string {
	return map[string]string{
		"text":       tok.Text,
		"is_final":   strconv.FormatBool(tok.IsFinal),
		"start_ms":   strconv.FormatInt(tok.StartTime.Milliseconds(), 10),
		"end_ms":     strconv.FormatInt(tok.EndTime.Milliseconds(), 10),
		"confidence": strconv.FormatFloat(tok.Confidence, 'f', -1, 64),
		"language":   tok.Language,
		"speaker_id": tok.SpeakerLabel,
		"stream_id":  tok.StreamID,
		"session_id": tok.SessionID,
	}
}

// DecodeEnrichedToken parses the wire field map EncodeEnrichedToken
// produces back into an EnrichedToken.
func DecodeEnrichedToken(fields map[string]string) (model.EnrichedToken, error) {
	startMs, err := strconv.ParseInt(fields["start_ms"], 10, 64)
	if err != nil {
		return model.EnrichedToken{}, fmt.Errorf("speaker: parse start_ms: %w", err)
	}
	endMs, err := strconv.ParseInt(fields["end_ms"], 10, 64)
	if err != nil {
		return model.EnrichedToken{}, fmt.Errorf("speaker: parse end_ms: %w", err)
	}
	confidence, _ := strconv.ParseFloat(fields["confidence"], 64)
	isFinal, _ := strconv.ParseBool(fields["is_final"])

	return model.EnrichedToken{
		TranscriptToken: model.TranscriptToken{
			Text:       fields["text"],
			IsFinal:    isFinal,
			StartTime:  time.Duration(startMs) * time.Millisecond,
			EndTime:    time.Duration(endMs) * time.Millisecond,
			Confidence: confidence,
			Language:   fields["language"],
			StreamID:   fields["stream_id"],
			SessionID:  fields["session_id"],
		},
		SpeakerLabel: fields["speaker_id"],
	}, nil
}
