package vad

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/observe"
	"github.com/voxsentinel/voxsentinel/internal/queue"
)

// metricWindow is how often the speech-ratio gauge is recalculated and
// reset per stream.
const metricWindow = 60 * time.Second

// chunkMessage mirrors the wire fields written by the ingest chunker onto
// the audio_chunks stream.
type chunkMessage struct {
	ChunkID    string `json:"chunk_id"`
	SessionID  string `json:"session_id"`
	PCMBase64  string `json:"pcm_b64"`
	DurationMs int    `json:"duration_ms"`
}

// Gate is C3: it consumes audio_chunks:{stream_id}, classifies each chunk
// with a VAD engine, and forwards only speech chunks onto
// speech_chunks:{stream_id}. Non-speech chunks are dropped, which is what
// lets a fixed ASR concurrency budget cover many simultaneously ingested
// streams.
type Gate struct {
	engine  Engine
	streams queue.Streams
	metrics *observe.Metrics

	windowStart  time.Time
	windowTotal  int
	windowSpeech int
}

// NewGate constructs a Gate that reads/writes through streams and
// classifies frames with engine.
func NewGate(engine Engine, streams queue.Streams, metrics *observe.Metrics) *Gate {
	return &Gate{
		engine:      engine,
		streams:     streams,
		metrics:     metrics,
		windowStart: time.Now(),
	}
}

// Run blocks, consuming audio_chunks:{streamID} until ctx is cancelled.
func (g *Gate) Run(ctx context.Context, streamID string, cfg Config) error {
	session, err := g.engine.NewSession(cfg)
	if err != nil {
		return fmt.Errorf("vad: new session for stream %s: %w", streamID, err)
	}
	defer session.Close()

	in := fmt.Sprintf("audio_chunks:%s", streamID)
	out := fmt.Sprintf("speech_chunks:%s", streamID)
	lastID := "0"
	log := slog.With("component", "vad_gate", "stream_id", streamID)
	log.Info("vad gate started", "stream", in)

	for {
		select {
		case <-ctx.Done():
			log.Info("vad gate stopped")
			return ctx.Err()
		default:
		}

		msgs, err := g.streams.Read(ctx, in, lastID, 10, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("vad xread error", "err", err)
			time.Sleep(time.Second)
			continue
		}

		if len(msgs) == 0 {
			g.maybeFlushMetrics(streamID)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			if err := g.handleChunk(ctx, session, m.Fields, streamID, out); err != nil {
				log.Warn("vad handle chunk error", "err", err)
			}
		}
		g.maybeFlushMetrics(streamID)
	}
}

func (g *Gate) handleChunk(ctx context.Context, session SessionHandle, fields map[string]string, streamID, out string) error {
	b64 := fields["pcm_b64"]
	if b64 == "" {
		return fmt.Errorf("vad: missing pcm_b64 field")
	}
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("vad: decode pcm_b64: %w", err)
	}

	event, err := session.ProcessFrame(pcm)
	if err != nil {
		return fmt.Errorf("vad: process frame: %w", err)
	}

	g.windowTotal++
	isSpeech := event.Type == SpeechStart || event.Type == SpeechContinue
	if isSpeech {
		g.windowSpeech++
		if _, err := g.streams.Add(ctx, out, fields, 10_000); err != nil {
			return fmt.Errorf("vad: forward to %s: %w", out, err)
		}
	}

	if g.metrics != nil {
		g.metrics.RecordVADFrame(streamID, isSpeech, event.Probability)
	}
	return nil
}

func (g *Gate) maybeFlushMetrics(streamID string) {
	if time.Since(g.windowStart) < metricWindow {
		return
	}
	ratio := 0.0
	if g.windowTotal > 0 {
		ratio = float64(g.windowSpeech) / float64(g.windowTotal)
	}
	if g.metrics != nil {
		g.metrics.SetSpeechRatio(streamID, ratio)
	}
	g.windowTotal = 0
	g.windowSpeech = 0
	g.windowStart = time.Now()
}

// EncodeChunk serializes an AudioChunk into the wire field map the gate
// and downstream stages expect on the audio_chunks stream.
func EncodeChunk(c model.AudioChunk) map[string]string {
	msg := chunkMessage{
		ChunkID:    c.ChunkID,
		SessionID:  c.SessionID,
		PCMBase64:  base64.StdEncoding.EncodeToString(c.PCM),
		DurationMs: c.DurationMs,
	}
	// Fields are flattened individually rather than as one json blob so
	// that downstream stages needing only metadata (e.g. metrics) don't
	// have to decode base64 PCM they will never use.
	raw, _ := json.Marshal(msg)
	var generic map[string]any
	_ = json.Unmarshal(raw, &generic)
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
