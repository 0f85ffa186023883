package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/voxsentinel/voxsentinel/internal/alert/channel"
	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/observe"
)

// Channel aliases channel.Channel so callers outside this subtree (e.g. the
// config registry's channel factory map) don't need to import the channel
// subpackage directly.
type Channel = channel.Channel

// RetryEnqueueFunc is called once per channel whose Send failed or errored,
// so the caller can schedule a retry out of band.
type RetryEnqueueFunc func(alert model.Alert, channelName string)

// AlertWriterFunc persists a dispatched alert, e.g. to the audit archive.
// A failing writer never aborts dispatch — it is best-effort logging.
type AlertWriterFunc func(ctx context.Context, alert model.Alert) error

// Dispatcher routes alerts to every enabled channel, after checking
// dedup and rate-limit suppression.
type Dispatcher struct {
	throttle     *Throttle
	channels     []channel.Channel
	retryEnqueue RetryEnqueueFunc
	alertWriter  AlertWriterFunc
	metrics      *observe.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRetryEnqueue registers a callback invoked for every failed or
// errored channel delivery.
func WithRetryEnqueue(f RetryEnqueueFunc) Option {
	return func(d *Dispatcher) { d.retryEnqueue = f }
}

// WithAlertWriter registers a callback that persists every dispatched
// alert. Its errors are logged and otherwise ignored.
func WithAlertWriter(f AlertWriterFunc) Option {
	return func(d *Dispatcher) { d.alertWriter = f }
}

// WithMetrics attaches an observe.Metrics recorder.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher builds a Dispatcher over throttle and channels.
func NewDispatcher(throttle *Throttle, channels []channel.Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{throttle: throttle, channels: channels}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ParseEvent decodes a raw NLP-pipeline event read from streamName into
// an Alert, or returns nil if the event is malformed or from an
// unrecognised stream. streamName is expected to have the form
// "match_events:<id>" or "sentiment_events:<id>"; any other prefix
// returns nil.
func ParseEvent(streamName, payload string) *model.Alert {
	switch {
	case hasPrefix(streamName, "match_events:"):
		var ev model.KeywordMatchEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Keyword == "" {
			return nil
		}
		a := keywordEventToAlert(ev)
		return &a
	case hasPrefix(streamName, "sentiment_events:"):
		var ev model.SentimentEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.SentimentLabel == "" {
			return nil
		}
		a := sentimentEventToAlert(ev)
		return &a
	default:
		return nil
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func keywordEventToAlert(ev model.KeywordMatchEvent) model.Alert {
	return model.Alert{
		AlertID:            uuid.NewString(),
		SessionID:          ev.SessionID,
		StreamID:           ev.StreamID,
		AlertType:          model.AlertKeyword,
		Severity:           ev.Severity,
		MatchedRule:        ev.Keyword,
		MatchType:          ev.MatchType,
		SimilarityScore:    ev.SimilarityScore,
		MatchedText:        ev.MatchedText,
		SurroundingContext: ev.SurroundingContext,
		SpeakerLabel:       ev.SpeakerLabel,
		DeliveryStatus:     make(map[string]model.DeliveryStatus),
	}
}

func sentimentEventToAlert(ev model.SentimentEvent) model.Alert {
	return model.Alert{
		AlertID:         uuid.NewString(),
		SessionID:       ev.SessionID,
		StreamID:        ev.StreamID,
		AlertType:       model.AlertSentiment,
		Severity:        model.SeverityMedium,
		MatchedRule:     ev.SentimentLabel,
		MatchType:       model.MatchSentimentThreshold,
		SpeakerLabel:    ev.SpeakerLabel,
		SentimentScores: map[string]float64{ev.SentimentLabel: ev.SentimentScore},
		DeliveryStatus:  make(map[string]model.DeliveryStatus),
	}
}

// Dispatch checks dedup and rate-limit suppression, then sends alert to
// every enabled channel, recording per-channel delivery status on alert
// in place. It returns true only if every enabled channel delivered
// successfully.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *model.Alert) (bool, error) {
	dup, err := d.throttle.IsDuplicate(ctx, alert.StreamID, alert.MatchedRule, string(alert.MatchType))
	if err != nil {
		return false, err
	}
	if dup {
		alert.Deduplicated = true
		if d.metrics != nil {
			d.metrics.RecordAlertSuppressed(ctx, "dedup")
		}
		return false, nil
	}

	throttled, err := d.throttle.IsThrottled(ctx, alert.StreamID)
	if err != nil {
		return false, err
	}
	if throttled {
		if d.metrics != nil {
			d.metrics.RecordAlertSuppressed(ctx, "throttle")
		}
		return false, nil
	}

	if alert.DeliveryStatus == nil {
		alert.DeliveryStatus = make(map[string]model.DeliveryStatus)
	}

	allDelivered := true
	anyEnabled := false
	for _, ch := range d.channels {
		if !ch.Enabled() {
			continue
		}
		anyEnabled = true

		ok, sendErr := sendSafely(ctx, ch, *alert)
		var status model.DeliveryStatus
		switch {
		case sendErr != nil:
			status = model.DeliveryError
			allDelivered = false
			if d.retryEnqueue != nil {
				d.retryEnqueue(*alert, ch.Name())
			}
		case ok:
			status = model.DeliveryDelivered
			alert.DeliveredTo = append(alert.DeliveredTo, ch.Name())
		default:
			status = model.DeliveryFailed
			allDelivered = false
			if d.retryEnqueue != nil {
				d.retryEnqueue(*alert, ch.Name())
			}
		}
		alert.DeliveryStatus[ch.Name()] = status
		if d.metrics != nil {
			d.metrics.RecordAlertDispatched(ctx, ch.Name(), string(status))
		}
	}

	if !anyEnabled {
		return false, nil
	}

	if err := d.throttle.Record(ctx, alert.StreamID); err != nil {
		return false, err
	}

	if d.alertWriter != nil {
		if err := d.alertWriter(ctx, *alert); err != nil {
			observe.Logger(ctx).Error("alert writer failed", "alert_id", alert.AlertID, "error", err)
		}
	}

	return allDelivered, nil
}

// sendSafely calls ch.Send, converting a panic inside a misbehaving
// channel implementation into an error so one broken channel never takes
// down the whole dispatch loop.
func sendSafely(ctx context.Context, ch channel.Channel, alert model.Alert) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("alert channel %s panicked: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, alert)
}
