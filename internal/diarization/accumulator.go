package diarization

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/queue"
)

// defaultWindow is diarization_window_s: the amount of speech audio
// accumulated before a diarization pass runs.
const defaultWindow = 3 * time.Second

// Config configures one stream's Accumulator run.
type Config struct {
	SampleRate int           // Hz, defaults to 16000
	Window     time.Duration // defaults to defaultWindow
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	return c
}

// segmentEvent is the wire shape published to diarization_events:{sid}.
type segmentEvent struct {
	SpeakerID string `json:"speaker_id"`
	StartMs   int64  `json:"start_ms"`
	EndMs     int64  `json:"end_ms"`
}

// chunkMessage mirrors the field shape the VAD gate forwards onto
// speech_chunks:{stream_id}.
type chunkMessage struct {
	PCMBase64 string `json:"pcm_b64"`
}

// Accumulator is C5: per stream, it buffers speech_chunks PCM into
// fixed-size windows, runs Model.Diarize over each window, retains the
// latest segment list in memory, and publishes each segment onto
// diarization_events:{stream_id}.
type Accumulator struct {
	model   Model
	streams queue.Streams
	pubsub  queue.PubSub

	mu     sync.RWMutex
	latest map[string][]model.SpeakerSegment
}

// NewAccumulator constructs an Accumulator. pubsub may be nil, in which
// case segments are still retained in-memory via Latest but never
// published.
func NewAccumulator(m Model, streams queue.Streams, pubsub queue.PubSub) *Accumulator {
	return &Accumulator{
		model:   m,
		streams: streams,
		pubsub:  pubsub,
		latest:  make(map[string][]model.SpeakerSegment),
	}
}

// Latest returns the most recently published segment list for streamID, or
// nil if diarization has not produced a window yet.
func (a *Accumulator) Latest(streamID string) []model.SpeakerSegment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest[streamID]
}

// Run blocks, consuming speech_chunks:{streamID} and accumulating PCM
// until cfg.Window of audio has been buffered, at which point it runs
// diarization over the window and shifts the buffer. It returns when ctx
// is cancelled.
func (a *Accumulator) Run(ctx context.Context, streamID string, cfg Config) error {
	cfg = cfg.withDefaults()
	bytesPerWindow := cfg.SampleRate * 2 * int(cfg.Window/time.Second)

	in := fmt.Sprintf("speech_chunks:%s", streamID)
	lastID := "0"
	log := slog.With("component", "diarization_accumulator", "stream_id", streamID)
	log.Info("diarization accumulator started", "stream", in)

	var buffer []byte

	for {
		select {
		case <-ctx.Done():
			log.Info("diarization accumulator stopped")
			return ctx.Err()
		default:
		}

		msgs, err := a.streams.Read(ctx, in, lastID, 10, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("diarization xread error", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			pcm, err := decodeChunk(m.Fields)
			if err != nil {
				log.Warn("diarization decode chunk error", "err", err)
				continue
			}
			buffer = append(buffer, pcm...)

			if len(buffer) >= bytesPerWindow {
				window := buffer
				buffer = nil
				a.diarizeWindow(ctx, streamID, window, log)
			}
		}
	}
}

func decodeChunk(fields map[string]string) ([]byte, error) {
	b64 := fields["pcm_b64"]
	if b64 == "" {
		return nil, fmt.Errorf("diarization: missing pcm_b64 field")
	}
	return base64.StdEncoding.DecodeString(b64)
}

func (a *Accumulator) diarizeWindow(ctx context.Context, streamID string, pcm []byte, log *slog.Logger) {
	segments, err := a.model.Diarize(ctx, pcm)
	if err != nil {
		log.Warn("diarization model error, keeping previous segments", "err", err)
		return
	}

	a.mu.Lock()
	a.latest[streamID] = segments
	a.mu.Unlock()

	if a.pubsub == nil {
		return
	}
	channel := fmt.Sprintf("diarization_events:%s", streamID)
	for _, seg := range segments {
		payload, err := json.Marshal(segmentEvent{
			SpeakerID: seg.SpeakerLabel,
			StartMs:   seg.StartMs,
			EndMs:     seg.EndMs,
		})
		if err != nil {
			continue
		}
		if err := a.pubsub.Publish(ctx, channel, payload); err != nil {
			log.Warn("diarization publish error", "err", err)
		}
	}
}
