// Package ingest implements C2, the audio extractor and chunker: it turns
// a stream's source descriptor into a live 16 kHz mono 16-bit PCM byte
// stream and slices that stream into fixed-duration chunks published onto
// audio_chunks:{stream_id}, where the VAD gate (C3) picks them up.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/queue"
	"github.com/voxsentinel/voxsentinel/internal/vad"
)

const (
	// SampleRate is the fixed PCM sample rate every Source must deliver.
	SampleRate = 16000

	// BytesPerSample is 16-bit signed little-endian mono.
	BytesPerSample = 2

	// ChunkDurationMs is the fixed chunk duration: 280 ms, matching the
	// streaming-ASR chunk size the original ingestion service produces.
	ChunkDurationMs = 280

	// ChunkSizeBytes is the exact byte length of one chunk:
	// 16000 Hz * 0.28 s * 2 bytes = 8960.
	ChunkSizeBytes = SampleRate * ChunkDurationMs / 1000 * BytesPerSample

	// maxStreamLen bounds the audio_chunks stream so a stalled downstream
	// consumer can't grow it unbounded.
	maxStreamLen = 10_000
)

// Chunker buffers raw PCM bytes read from a Source and emits fixed-size
// AudioChunks. A partial chunk left over when the source ends is
// discarded, mirroring produce_chunks's trailing-bytes behaviour.
type Chunker struct {
	streamID  string
	sessionID string
	buf       []byte
}

// NewChunker returns a Chunker for one stream/session pair.
func NewChunker(streamID, sessionID string) *Chunker {
	return &Chunker{streamID: streamID, sessionID: sessionID}
}

// Feed appends data to the internal buffer and returns every complete
// ChunkSizeBytes chunk that can be sliced off it, in order. Leftover bytes
// remain buffered for the next call.
func (c *Chunker) Feed(data []byte) []model.AudioChunk {
	c.buf = append(c.buf, data...)

	var chunks []model.AudioChunk
	for len(c.buf) >= ChunkSizeBytes {
		pcm := make([]byte, ChunkSizeBytes)
		copy(pcm, c.buf[:ChunkSizeBytes])
		c.buf = c.buf[ChunkSizeBytes:]

		chunks = append(chunks, model.AudioChunk{
			ChunkID:    uuid.NewString(),
			StreamID:   c.streamID,
			SessionID:  c.sessionID,
			PCM:        pcm,
			DurationMs: ChunkDurationMs,
		})
	}
	return chunks
}

// Extractor is C2: it opens a Source for a stream, reads PCM from it, and
// publishes fixed-duration chunks onto audio_chunks:{stream_id} via
// streams.Add, using the same wire encoding vad.Gate expects
// (vad.EncodeChunk).
type Extractor struct {
	sources Registry
	streams queue.Streams
}

// NewExtractor constructs an Extractor that resolves sources through
// sources and publishes through streams.
func NewExtractor(sources Registry, streams queue.Streams) *Extractor {
	return &Extractor{sources: sources, streams: streams}
}

// readBufSize is the read() size requested from the source per iteration;
// it need not align to ChunkSizeBytes since Chunker buffers across reads.
const readBufSize = 32 * 1024

// Run opens descriptor via the registered Source for its scheme, then
// blocks reading PCM and publishing audio_chunks:{streamID} entries until
// ctx is cancelled or the source ends/errors. A non-nil, non-context error
// return signals the caller (the stream supervisor) that the connection
// was lost and should be retried.
func (e *Extractor) Run(ctx context.Context, streamID, sessionID, descriptor string) error {
	log := slog.With("component", "ingest_extractor", "stream_id", streamID)

	src, err := e.sources.Open(ctx, descriptor)
	if err != nil {
		return fmt.Errorf("ingest: open source %q: %w", descriptor, err)
	}
	defer src.Close()

	out := fmt.Sprintf("audio_chunks:%s", streamID)
	chunker := NewChunker(streamID, sessionID)
	buf := make([]byte, readBufSize)
	log.Info("ingest extractor started", "descriptor", descriptor, "stream", out)

	for {
		select {
		case <-ctx.Done():
			log.Info("ingest extractor stopped")
			return ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			for _, chunk := range chunker.Feed(buf[:n]) {
				fields := vad.EncodeChunk(chunk)
				if _, addErr := e.streams.Add(ctx, out, fields, maxStreamLen); addErr != nil {
					log.Warn("ingest publish error", "err", addErr)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				log.Info("ingest source ended")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ingest: read source: %w", err)
		}
	}
}
