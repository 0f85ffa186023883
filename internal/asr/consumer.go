package asr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/queue"
)

// Consumer is the streaming half of C4: it drains speech_chunks:{stream_id}
// into a Router-selected ASR session and republishes every token (partial
// and final) onto transcript_tokens:{stream_id}.
type Consumer struct {
	router  *Router
	streams queue.Streams
}

// NewConsumer builds a Consumer over router and streams.
func NewConsumer(router *Router, streams queue.Streams) *Consumer {
	return &Consumer{router: router, streams: streams}
}

// Run opens an ASR session for streamID/sessionID and blocks, feeding it
// every speech_chunks entry and republishing its output tokens, until ctx
// is cancelled or the session ends.
func (c *Consumer) Run(ctx context.Context, streamID, sessionID string, cfg StreamConfig) error {
	cfg.StreamID = streamID
	cfg.SessionID = sessionID

	handle, err := c.router.StartStream(ctx, cfg)
	if err != nil {
		return fmt.Errorf("asr: start stream %s: %w", streamID, err)
	}
	defer handle.Close()

	out := fmt.Sprintf("transcript_tokens:%s", streamID)
	in := fmt.Sprintf("speech_chunks:%s", streamID)
	log := slog.With("component", "asr_consumer", "stream_id", streamID)
	log.Info("asr consumer started", "stream", in)

	errc := make(chan error, 1)
	go func() {
		errc <- c.publishTokens(ctx, handle.Partials(), out)
	}()
	go func() {
		errc <- c.publishTokens(ctx, handle.Finals(), out)
	}()

	lastID := "0"
	for {
		select {
		case <-ctx.Done():
			log.Info("asr consumer stopped")
			return ctx.Err()
		case err := <-errc:
			return err
		default:
		}

		msgs, err := c.streams.Read(ctx, in, lastID, 10, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("asr xread error", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			pcm, err := base64.StdEncoding.DecodeString(m.Fields["pcm_b64"])
			if err != nil {
				log.Warn("asr decode chunk error", "err", err)
				continue
			}
			if err := handle.SendAudio(pcm); err != nil {
				log.Warn("asr send audio error", "err", err)
			}
		}
	}
}

// publishTokens drains tok until it closes (session end) or ctx is
// cancelled, republishing each token onto out.
func (c *Consumer) publishTokens(ctx context.Context, tok <-chan model.TranscriptToken, out string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-tok:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(t)
			if err != nil {
				continue
			}
			fields := map[string]string{"token": string(payload)}
			if _, err := c.streams.Add(ctx, out, fields, 10_000); err != nil {
				slog.Warn("asr publish token error", "stream", out, "err", err)
			}
		}
	}
}
