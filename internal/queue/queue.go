// Package queue provides the two messaging primitives every VoxSentinel
// stage uses to hand work to the next stage: a durable ordered Stream
// (Redis Streams, XADD/XREAD with an approximate maxlen trim) for anything
// that must survive a consumer restart, and a transient PubSub channel for
// fan-out notifications nobody needs to replay.
package queue

import (
	"context"
	"time"
)

// Message is one entry read back off a Stream. ID is the broker-assigned
// identifier used to acknowledge position on the next Read call.
type Message struct {
	ID     string
	Fields map[string]string
}

// Streams is the durable, ordered, replayable queue used for audio_chunks,
// speech_chunks, transcript_tokens, match_events, sentiment_events,
// redacted_tokens and the alert retry queue.
type Streams interface {
	// Add appends fields to stream, trimming the stream to approximately
	// maxlen entries. maxlen <= 0 means no trimming.
	Add(ctx context.Context, stream string, fields map[string]string, maxlen int64) (string, error)

	// Read blocks for up to block (0 means indefinitely) waiting for
	// entries newer than lastID on stream, returning up to count of them.
	// Pass lastID "$" to read only entries produced after the call starts.
	Read(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]Message, error)

	// Close releases the underlying connection.
	Close() error
}

// PubSub is the transient, non-replayable fan-out channel used for live
// websocket broadcast and control-plane notifications (rule reload, stream
// pause/resume).
type PubSub interface {
	// Publish delivers payload to every current subscriber of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a channel of payloads published to channel. The
	// returned unsubscribe func must be called to release resources.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func() error, error)
}

// Queue bundles both primitives behind the single connection a component
// typically needs.
type Queue interface {
	Streams
	PubSub
}
