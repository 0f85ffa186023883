package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxsentinel/voxsentinel/internal/queue"
)

// payloadField is the wire key under which a producer stores the
// JSON-encoded event on match_events:{id}/sentiment_events:{id}, mirroring
// the single-blob shape ParseEvent expects rather than the flattened
// field-per-key shape used by the audio chunk streams.
const payloadField = "payload"

// EncodeEvent wraps a JSON payload in the field map a Consumer reads back
// off a Stream entry.
func EncodeEvent(payload []byte) map[string]string {
	return map[string]string{payloadField: string(payload)}
}

// Consumer reads match_events:{streamID} and sentiment_events:{streamID},
// turning each entry into an Alert via ParseEvent and handing it to a
// Dispatcher.
type Consumer struct {
	streams    queue.Streams
	dispatcher *Dispatcher
}

// NewConsumer builds a Consumer over streams and dispatcher.
func NewConsumer(streams queue.Streams, dispatcher *Dispatcher) *Consumer {
	return &Consumer{streams: streams, dispatcher: dispatcher}
}

// Run blocks, consuming both event streams for streamID until ctx is
// cancelled or either stream's read loop returns a non-context error.
func (c *Consumer) Run(ctx context.Context, streamID string) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.consumeStream(egCtx, fmt.Sprintf("match_events:%s", streamID))
	})
	eg.Go(func() error {
		return c.consumeStream(egCtx, fmt.Sprintf("sentiment_events:%s", streamID))
	})
	return eg.Wait()
}

func (c *Consumer) consumeStream(ctx context.Context, streamName string) error {
	lastID := "$"
	log := slog.With("component", "alert_consumer", "stream", streamName)
	log.Info("alert consumer started")

	for {
		select {
		case <-ctx.Done():
			log.Info("alert consumer stopped")
			return ctx.Err()
		default:
		}

		msgs, err := c.streams.Read(ctx, streamName, lastID, 10, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("alert consumer xread error", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			alert := ParseEvent(streamName, m.Fields[payloadField])
			if alert == nil {
				log.Warn("alert consumer dropped malformed event", "id", m.ID)
				continue
			}
			if _, err := c.dispatcher.Dispatch(ctx, alert); err != nil {
				log.Warn("alert dispatch error", "id", m.ID, "err", err)
			}
		}
	}
}
