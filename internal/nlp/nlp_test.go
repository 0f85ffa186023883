package nlp

import (
	"context"
	"testing"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/nlp/keyword"
	"github.com/voxsentinel/voxsentinel/internal/nlp/pii"
	"github.com/voxsentinel/voxsentinel/internal/nlp/sentiment"
)

type fakeClassifier struct{}

func (fakeClassifier) Classify(text string) (string, float64) { return "NEGATIVE", 0.95 }
func (fakeClassifier) IsReady() bool                          { return true }

func TestPipeline_ProcessRunsAllThreeSubPipelines(t *testing.T) {
	kw := keyword.NewDetector()
	kw.LoadRules([]model.KeywordRule{
		{RuleID: "r1", Keyword: "gun", MatchType: model.MatchExact, Severity: model.SeverityHigh, Enabled: true},
	})
	sent := sentiment.NewTracker(fakeClassifier{}, sentiment.Config{})
	redactor := pii.NewRegex()

	p := New(kw, sent, redactor)
	tok := model.EnrichedToken{
		TranscriptToken: model.TranscriptToken{
			Text:      "he has a gun, email me at jane@example.com",
			StreamID:  "s1",
			SessionID: "sess1",
		},
	}

	result, err := p.Process(context.Background(), tok, 1.0)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(result.KeywordMatches) != 1 {
		t.Errorf("KeywordMatches = %+v, want 1", result.KeywordMatches)
	}
	if result.Sentiment.Label != "negative" {
		t.Errorf("Sentiment = %+v, want negative", result.Sentiment)
	}
	if result.Redacted.RedactedText == tok.Text {
		t.Errorf("Redacted text unchanged, want email placeholder substituted")
	}
}

func TestPipeline_NilSentimentAndRedactorAreSkipped(t *testing.T) {
	kw := keyword.NewDetector()
	p := New(kw, nil, nil)
	tok := model.EnrichedToken{TranscriptToken: model.TranscriptToken{Text: "hello"}}

	result, err := p.Process(context.Background(), tok, 1.0)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Sentiment.Label != "" || result.Redacted.RedactedText != "" {
		t.Errorf("result = %+v, want zero values when sub-pipelines are nil", result)
	}
}

func TestPipeline_EscalationPropagatedFromSentiment(t *testing.T) {
	kw := keyword.NewDetector()
	sent := sentiment.NewTracker(fakeClassifier{}, sentiment.Config{EscalationConsecutive: 1})
	p := New(kw, sent, nil)
	tok := model.EnrichedToken{TranscriptToken: model.TranscriptToken{StreamID: "s1", Text: "bad"}}

	result, err := p.Process(context.Background(), tok, 1.0)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !result.SentimentEscalate {
		t.Errorf("expected escalation with EscalationConsecutive=1 and one strong negative entry")
	}
}
