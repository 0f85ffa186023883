package nlp

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/nlp/keyword"
	"github.com/voxsentinel/voxsentinel/internal/nlp/pii"
	"github.com/voxsentinel/voxsentinel/internal/nlp/sentiment"
	"github.com/voxsentinel/voxsentinel/internal/queue"
	"github.com/voxsentinel/voxsentinel/internal/speaker"
)

// fakeStreams is a minimal in-memory queue.Streams: Add records every
// published entry per stream name, Read serves pre-seeded messages once
// each and then blocks briefly as if the stream were empty.
type fakeStreams struct {
	mu   sync.Mutex
	in   map[string][]queue.Message
	read map[string]int
	out  map[string][]map[string]string
}

func newFakeStreams() *fakeStreams {
	return &fakeStreams{
		in:   make(map[string][]queue.Message),
		read: make(map[string]int),
		out:  make(map[string][]map[string]string),
	}
}

func (f *fakeStreams) seed(stream string, fields map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.in[stream] = append(f.in[stream], queue.Message{ID: "0-0", Fields: fields})
}

func (f *fakeStreams) Add(ctx context.Context, stream string, fields map[string]string, maxlen int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out[stream] = append(f.out[stream], fields)
	return "0-0", nil
}

func (f *fakeStreams) Read(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]queue.Message, error) {
	f.mu.Lock()
	idx := f.read[stream]
	all := f.in[stream]
	f.mu.Unlock()

	if idx < len(all) {
		f.mu.Lock()
		f.read[stream] = idx + 1
		f.mu.Unlock()
		return []queue.Message{all[idx]}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeStreams) Close() error { return nil }

func (f *fakeStreams) published(stream string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out[stream]
}

type alwaysNegative struct{}

func (alwaysNegative) Classify(text string) (string, float64) { return "NEGATIVE", 0.99 }
func (alwaysNegative) IsReady() bool                           { return true }

var _ sentiment.Classifier = alwaysNegative{}

func newTestPipeline() *Pipeline {
	kw := keyword.NewDetector()
	kw.LoadRules([]model.KeywordRule{
		{RuleID: "r1", Keyword: "gun", MatchType: model.MatchExact, Severity: model.SeverityHigh, Enabled: true},
	})
	sent := sentiment.NewTracker(alwaysNegative{}, sentiment.Config{EscalationConsecutive: 1})
	return New(kw, sent, pii.NewRegex())
}

func TestConsumer_PublishesRedactedTokenAndKeywordMatch(t *testing.T) {
	streams := newFakeStreams()
	enriched := model.EnrichedToken{
		TranscriptToken: model.TranscriptToken{
			Text:      "he has a gun, email me at jane@example.com",
			IsFinal:   true,
			StreamID:  "s1",
			SessionID: "sess1",
		},
		SpeakerLabel: "SPEAKER_00",
	}
	streams.seed("enriched_tokens:s1", speaker.EncodeEnrichedToken(enriched))

	consumer := NewConsumer(newTestPipeline(), streams)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = consumer.Run(ctx, "s1")

	matches := streams.published("match_events:s1")
	if len(matches) != 1 {
		t.Fatalf("match_events published = %d, want 1", len(matches))
	}

	redacted := streams.published("redacted_tokens:s1")
	if len(redacted) != 1 {
		t.Fatalf("redacted_tokens published = %d, want 1", len(redacted))
	}
	if got := redacted[0]["text_redacted"]; strings.Contains(got, "jane@example.com") {
		t.Errorf("text_redacted = %q, want email address redacted", got)
	}
	if redacted[0]["speaker_id"] != "SPEAKER_00" {
		t.Errorf("speaker_id = %q, want SPEAKER_00", redacted[0]["speaker_id"])
	}
}

func TestConsumer_SkipsNonFinalAndEmptyTokens(t *testing.T) {
	streams := newFakeStreams()
	partial := model.EnrichedToken{TranscriptToken: model.TranscriptToken{Text: "he has a", IsFinal: false, StreamID: "s1"}}
	empty := model.EnrichedToken{TranscriptToken: model.TranscriptToken{Text: "", IsFinal: true, StreamID: "s1"}}
	streams.seed("enriched_tokens:s1", speaker.EncodeEnrichedToken(partial))
	streams.seed("enriched_tokens:s1", speaker.EncodeEnrichedToken(empty))

	consumer := NewConsumer(newTestPipeline(), streams)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = consumer.Run(ctx, "s1")

	if got := len(streams.published("redacted_tokens:s1")); got != 0 {
		t.Errorf("redacted_tokens published = %d, want 0 for non-final/empty tokens", got)
	}
}

func TestConsumer_SentimentEscalationPublishesSentimentEvent(t *testing.T) {
	streams := newFakeStreams()
	tok := model.EnrichedToken{
		TranscriptToken: model.TranscriptToken{Text: "this is terrible", IsFinal: true, StreamID: "s1", SessionID: "sess1"},
		SpeakerLabel:    "SPEAKER_00",
	}
	streams.seed("enriched_tokens:s1", speaker.EncodeEnrichedToken(tok))

	consumer := NewConsumer(newTestPipeline(), streams)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = consumer.Run(ctx, "s1")

	if got := len(streams.published("sentiment_events:s1")); got != 1 {
		t.Errorf("sentiment_events published = %d, want 1", got)
	}
}
