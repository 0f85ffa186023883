// Package alert implements C8, the alert dispatcher: throttling and
// deduplication, channel fan-out, delivery-status recording, and retry
// enqueueing for keyword/sentiment/compliance alerts.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultDedupTTL      = 10 * time.Second
	defaultMaxPerMinute  = 30
	throttleWindow       = 60 * time.Second
	throttleKeyTTL       = 120 * time.Second
)

// Throttle enforces a per-stream alert dedup window and a per-stream
// sliding-window rate limit, both backed by Redis, mirroring the
// dedup:{stream}:{keyword}:{match_type} and throttle:{stream} key schemes
// of the original rate limiter.
type Throttle struct {
	client       *redis.Client
	dedupTTL     time.Duration
	maxPerMinute int
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithDedupTTL overrides the default 10s dedup window.
func WithDedupTTL(d time.Duration) ThrottleOption {
	return func(t *Throttle) { t.dedupTTL = d }
}

// WithMaxPerMinute overrides the default limit of 30 alerts/minute/stream.
func WithMaxPerMinute(n int) ThrottleOption {
	return func(t *Throttle) { t.maxPerMinute = n }
}

// NewThrottle builds a Throttle on top of client.
func NewThrottle(client *redis.Client, opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		client:       client,
		dedupTTL:     defaultDedupTTL,
		maxPerMinute: defaultMaxPerMinute,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// IsDuplicate reports whether an alert for (streamID, keyword, matchType)
// was already seen within the dedup window. The first occurrence claims
// the key via SETNX and returns false; every occurrence until the key
// expires returns true.
func (t *Throttle) IsDuplicate(ctx context.Context, streamID, keyword, matchType string) (bool, error) {
	key := fmt.Sprintf("dedup:%s:%s:%s", streamID, keyword, matchType)
	ok, err := t.client.SetNX(ctx, key, 1, t.dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("alert: dedup check: %w", err)
	}
	return !ok, nil
}

// IsThrottled reports whether streamID has already reached its alert rate
// limit for the trailing 60s window.
func (t *Throttle) IsThrottled(ctx context.Context, streamID string) (bool, error) {
	key := fmt.Sprintf("throttle:%s", streamID)
	now := time.Now()
	cutoff := now.Add(-throttleWindow)

	pipe := t.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff.UnixMilli()))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("alert: throttle check: %w", err)
	}
	return card.Val() >= int64(t.maxPerMinute), nil
}

// Record marks one alert as dispatched for streamID, extending the
// sliding window used by IsThrottled.
func (t *Throttle) Record(ctx context.Context, streamID string) error {
	key := fmt.Sprintf("throttle:%s", streamID)
	now := time.Now()

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: newMemberID()})
	pipe.Expire(ctx, key, throttleKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("alert: record: %w", err)
	}
	return nil
}

// newMemberID generates the sorted-set member for Record. It is a
// package variable so tests can substitute a deterministic value.
var newMemberID = uuid.NewString
