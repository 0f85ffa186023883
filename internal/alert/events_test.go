package alert

import (
	"testing"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

func TestParseEvent_KeywordEvent(t *testing.T) {
	payload := `{"keyword":"gun","match_type":"exact","matched_text":"he has a gun","stream_id":"s1","session_id":"sess1","surrounding_context":"context here"}`
	alert := ParseEvent("match_events:1", payload)
	if alert == nil {
		t.Fatal("ParseEvent() = nil")
	}
	if alert.AlertType != model.AlertKeyword || alert.MatchedRule != "gun" {
		t.Errorf("alert = %+v", alert)
	}
}

func TestParseEvent_SentimentEvent(t *testing.T) {
	payload := `{"stream_id":"s1","session_id":"sess1","sentiment_label":"negative","sentiment_score":0.92}`
	alert := ParseEvent("sentiment_events:1", payload)
	if alert == nil {
		t.Fatal("ParseEvent() = nil")
	}
	if alert.AlertType != model.AlertSentiment || alert.MatchedRule != "negative" {
		t.Errorf("alert = %+v", alert)
	}
}

func TestParseEvent_InvalidJSONReturnsNil(t *testing.T) {
	if alert := ParseEvent("match_events:1", "not json"); alert != nil {
		t.Errorf("ParseEvent() = %+v, want nil", alert)
	}
}

func TestParseEvent_UnknownStreamReturnsNil(t *testing.T) {
	payload := `{"stream_id":"s1","session_id":"sess1"}`
	if alert := ParseEvent("unknown_channel", payload); alert != nil {
		t.Errorf("ParseEvent() = %+v, want nil", alert)
	}
}

func TestParseEvent_MalformedEventMissingFieldsReturnsNil(t *testing.T) {
	payload := `{"match_type":"exact"}`
	if alert := ParseEvent("match_events:1", payload); alert != nil {
		t.Errorf("ParseEvent() = %+v, want nil for missing keyword field", alert)
	}
}

func TestKeywordEventToAlert_SetsTypeAndSeverity(t *testing.T) {
	event := model.KeywordMatchEvent{
		StreamID:  "s1",
		SessionID: "sess1",
		Keyword:   "gun",
		MatchType: model.MatchExact,
		Severity:  model.SeverityHigh,
	}
	alert := keywordEventToAlert(event)
	if alert.AlertType != model.AlertKeyword || alert.Severity != model.SeverityHigh {
		t.Errorf("alert = %+v", alert)
	}
}

func TestSentimentEventToAlert_SetsTypeAndScores(t *testing.T) {
	event := model.SentimentEvent{
		StreamID:       "s1",
		SessionID:      "sess1",
		SentimentLabel: "negative",
		SentimentScore: 0.95,
	}
	alert := sentimentEventToAlert(event)
	if alert.AlertType != model.AlertSentiment || alert.MatchType != model.MatchSentimentThreshold {
		t.Errorf("alert = %+v", alert)
	}
	if alert.SentimentScores["negative"] != 0.95 {
		t.Errorf("SentimentScores = %+v", alert.SentimentScores)
	}
}
