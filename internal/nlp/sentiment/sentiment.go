// Package sentiment implements C7.2, the per-stream sentiment tracker.
// A pluggable binary Classifier scores each final transcript token; a
// rolling per-stream window accumulates the normalised results and raises
// an escalation when enough consecutive recent entries are strongly
// negative.
package sentiment

import (
	"strings"
	"sync"
)

const (
	// DefaultEscalationConsecutive is the number of consecutive recent
	// entries that must all be negative-above-threshold to escalate.
	DefaultEscalationConsecutive = 3
	// DefaultEscalationThreshold is the score an entry must exceed (not
	// just meet) to count as a strongly negative entry.
	DefaultEscalationThreshold = 0.8
	// DefaultRollingWindowSeconds bounds how far back entries are kept,
	// relative to the most recently classified entry's elapsed time.
	DefaultRollingWindowSeconds = 30.0
)

// Classifier scores free text, returning a raw label and confidence score.
// Implementations are not required to normalise the label; Tracker does
// that uniformly for every classifier.
type Classifier interface {
	Classify(text string) (label string, score float64)
	IsReady() bool
}

// Result is one normalised classification: Label is always "positive",
// "negative", or "neutral".
type Result struct {
	Label string
	Score float64
}

type entry struct {
	elapsedSeconds float64
	result         Result
}

// Config tunes the escalation rule. Zero values fall back to the package
// defaults.
type Config struct {
	EscalationConsecutive int
	EscalationThreshold   float64
	RollingWindowSeconds  float64
}

func (c Config) withDefaults() Config {
	if c.EscalationConsecutive <= 0 {
		c.EscalationConsecutive = DefaultEscalationConsecutive
	}
	if c.EscalationThreshold <= 0 {
		c.EscalationThreshold = DefaultEscalationThreshold
	}
	if c.RollingWindowSeconds <= 0 {
		c.RollingWindowSeconds = DefaultRollingWindowSeconds
	}
	return c
}

// Tracker classifies text per stream and raises an escalation signal when
// a stream's recent sentiment turns consistently and strongly negative.
type Tracker struct {
	classifier Classifier
	cfg        Config

	mu      sync.Mutex
	streams map[string][]entry
}

// NewTracker builds a Tracker backed by classifier, using cfg (zero values
// take package defaults).
func NewTracker(classifier Classifier, cfg Config) *Tracker {
	return &Tracker{
		classifier: classifier,
		cfg:        cfg.withDefaults(),
		streams:    make(map[string][]entry),
	}
}

// IsReady reports whether the underlying classifier has a usable model
// loaded.
func (t *Tracker) IsReady() bool {
	return t.classifier.IsReady()
}

// Classify scores text for streamID at elapsedSeconds (the token's
// position on the stream's own timeline, used to evict stale entries and
// to order consecutive entries), records the normalised result in the
// stream's rolling window, and reports whether this observation triggers
// an escalation.
func (t *Tracker) Classify(streamID, text string, elapsedSeconds float64) (Result, bool) {
	label, score := t.classifier.Classify(text)
	result := normalise(label, score)

	t.mu.Lock()
	defer t.mu.Unlock()

	entries := append(t.streams[streamID], entry{elapsedSeconds: elapsedSeconds, result: result})
	entries = evict(entries, elapsedSeconds, t.cfg.RollingWindowSeconds)
	t.streams[streamID] = entries

	return result, shouldEscalate(entries, t.cfg)
}

// RemoveStream discards a stream's rolling window, e.g. once its session
// ends.
func (t *Tracker) RemoveStream(streamID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streams, streamID)
}

func normalise(label string, score float64) Result {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "POSITIVE":
		return Result{Label: "positive", Score: score}
	case "NEGATIVE":
		return Result{Label: "negative", Score: score}
	default:
		return Result{Label: "neutral", Score: 0}
	}
}

func evict(entries []entry, latestElapsed, windowSeconds float64) []entry {
	cutoff := latestElapsed - windowSeconds
	i := 0
	for i < len(entries) && entries[i].elapsedSeconds < cutoff {
		i++
	}
	return entries[i:]
}

func shouldEscalate(entries []entry, cfg Config) bool {
	if len(entries) < cfg.EscalationConsecutive {
		return false
	}
	tail := entries[len(entries)-cfg.EscalationConsecutive:]
	for _, e := range tail {
		if e.result.Label != "negative" || e.result.Score <= cfg.EscalationThreshold {
			return false
		}
	}
	return true
}
