package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxsentinel/voxsentinel/internal/alert"
	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/nlp/pii"
	"github.com/voxsentinel/voxsentinel/internal/queue"
	"github.com/voxsentinel/voxsentinel/internal/speaker"
)

// Consumer is C7's streaming half: it reads enriched_tokens:{stream_id},
// runs every final token through Pipeline.Process, and fans the result out
// onto match_events:{stream_id}, sentiment_events:{stream_id}, and
// redacted_tokens:{stream_id}.
type Consumer struct {
	pipeline *Pipeline
	streams  queue.Streams
}

// NewConsumer builds a Consumer over pipeline and streams.
func NewConsumer(pipeline *Pipeline, streams queue.Streams) *Consumer {
	return &Consumer{pipeline: pipeline, streams: streams}
}

// Run blocks, consuming enriched_tokens:{streamID} until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, streamID string) error {
	in := fmt.Sprintf("enriched_tokens:%s", streamID)
	lastID := "0"
	log := slog.With("component", "nlp_consumer", "stream_id", streamID)
	log.Info("nlp consumer started", "stream", in)

	for {
		select {
		case <-ctx.Done():
			log.Info("nlp consumer stopped")
			return ctx.Err()
		default:
		}

		msgs, err := c.streams.Read(ctx, in, lastID, 10, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("nlp xread error", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			tok, err := speaker.DecodeEnrichedToken(m.Fields)
			if err != nil {
				log.Warn("nlp decode token error", "err", err)
				continue
			}
			if !tok.IsFinal || tok.Text == "" {
				continue
			}
			if err := c.handleToken(ctx, streamID, tok); err != nil {
				log.Warn("nlp handle token error", "err", err)
			}
		}
	}
}

func (c *Consumer) handleToken(ctx context.Context, streamID string, tok model.EnrichedToken) error {
	elapsed := tok.StartTime.Seconds()
	result, err := c.pipeline.Process(ctx, tok, elapsed)
	if err != nil {
		slog.Warn("nlp pipeline error", "stream_id", streamID, "err", err)
	}

	for _, ev := range result.KeywordMatches {
		if err := c.publishEvent(ctx, fmt.Sprintf("match_events:%s", streamID), ev); err != nil {
			return err
		}
	}

	if result.SentimentEscalate {
		ev := model.SentimentEvent{
			StreamID:       tok.StreamID,
			SessionID:      tok.SessionID,
			SpeakerLabel:   tok.SpeakerLabel,
			SentimentLabel: result.Sentiment.Label,
			SentimentScore: result.Sentiment.Score,
		}
		if err := c.publishEvent(ctx, fmt.Sprintf("sentiment_events:%s", streamID), ev); err != nil {
			return err
		}
	}

	redacted := model.RedactedToken{
		StreamID:       tok.StreamID,
		SessionID:      tok.SessionID,
		SpeakerLabel:   tok.SpeakerLabel,
		TextOriginal:   tok.Text,
		TextRedacted:   result.Redacted.RedactedText,
		EntitiesFound:  entityNames(result.Redacted.EntitiesFound),
		SentimentLabel: result.Sentiment.Label,
		SentimentScore: result.Sentiment.Score,
		StartTime:      tok.StartTime,
		EndTime:        tok.EndTime,
		Language:       tok.Language,
		ASRConfidence:  tok.Confidence,
	}
	if redacted.TextRedacted == "" {
		redacted.TextRedacted = tok.Text
	}

	fields, err := EncodeRedactedToken(redacted)
	if err != nil {
		return fmt.Errorf("nlp: encode redacted token: %w", err)
	}
	out := fmt.Sprintf("redacted_tokens:%s", streamID)
	if _, err := c.streams.Add(ctx, out, fields, 10_000); err != nil {
		return fmt.Errorf("nlp: publish to %s: %w", out, err)
	}
	return nil
}

func (c *Consumer) publishEvent(ctx context.Context, stream string, ev any) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("nlp: encode event: %w", err)
	}
	fields := alert.EncodeEvent(payload)
	if _, err := c.streams.Add(ctx, stream, fields, 10_000); err != nil {
		return fmt.Errorf("nlp: publish to %s: %w", stream, err)
	}
	return nil
}

func entityNames(entities []pii.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = string(e)
	}
	return out
}

// EncodeRedactedToken serializes a RedactedToken into the flattened wire
// field map redacted_tokens:{stream_id} consumers expect: every field of
// the struct is carried, since C9 needs the full set (not just the
// spec's minimal text/entities/sentiment subset) to reconstruct a
// TranscriptSegment without a second lookup.
func EncodeRedactedToken(tok model.RedactedToken) (map[string]string, error) {
	entities, err := json.Marshal(tok.EntitiesFound)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"stream_id":       tok.StreamID,
		"session_id":      tok.SessionID,
		"speaker_id":      tok.SpeakerLabel,
		"text_original":   tok.TextOriginal,
		"text_redacted":   tok.TextRedacted,
		"entities_found":  string(entities),
		"sentiment_label": tok.SentimentLabel,
		"sentiment_score": fmt.Sprintf("%g", tok.SentimentScore),
		"start_time_ms":   fmt.Sprintf("%d", tok.StartTime.Milliseconds()),
		"end_time_ms":     fmt.Sprintf("%d", tok.EndTime.Milliseconds()),
		"language":        tok.Language,
		"asr_backend":     tok.ASRBackend,
		"asr_confidence":  fmt.Sprintf("%g", tok.ASRConfidence),
	}, nil
}
