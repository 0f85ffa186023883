// Package whisper provides a local whisper.cpp-backed ASR engine.
//
// It loads a whisper.cpp GGML model once via the CGO bindings and creates a
// fresh inference context per session. Because whisper.cpp is a batch
// (non-streaming) transcription engine, the engine cannot emit true
// low-latency partials: it buffers incoming PCM, applies an energy-based
// silence detector to segment utterances, and batch-transcribes each
// completed utterance, emitting an identical partial/final pair per
// utterance. Word timestamps are offset by the number of audio samples
// already consumed by prior utterances in the session so they remain
// session-relative.
package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxsentinel/voxsentinel/internal/asr"
	"github.com/voxsentinel/voxsentinel/internal/model"
)

const (
	bitsPerSample              = 16
	defaultRMSThreshold        = 300.0
	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000
)

var errNotSupported = errors.New("keyword boosting is not supported by whisper.cpp")

var _ asr.Engine = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithLanguage sets the BCP-47 language code sent to whisper.cpp. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// WithSampleRate sets the audio sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(e *Engine) { e.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that
// triggers a flush of the buffered utterance. Defaults to 500ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(e *Engine) { e.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced flush. Defaults to 10000ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(e *Engine) { e.maxBufferDurationMs = ms }
}

// Engine implements asr.Engine backed by a shared whisper.cpp model.
type Engine struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// New loads the whisper.cpp model at modelPath and returns an Engine. The
// model is shared across all sessions started from the returned Engine; the
// caller must call Close when the engine is no longer needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	m, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	e := &Engine{
		model:               m,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name identifies this engine for the router, logs, and metrics.
func (e *Engine) Name() string { return "whisper" }

// Close releases the shared whisper.cpp model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// StartStream opens a new transcription session. Each session creates its
// own whisper.cpp inference context from the shared model, so sessions may
// run concurrently without interfering with each other.
func (e *Engine) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = e.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = e.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		model:               e.model,
		streamID:            cfg.StreamID,
		sessionID:            cfg.SessionID,
		language:            lang,
		sampleRate:          sr,
		channels:            ch,
		silenceThresholdMs:  e.silenceThresholdMs,
		maxBufferDurationMs: e.maxBufferDurationMs,

		audioCh:  make(chan []byte, 256),
		partials: make(chan model.TranscriptToken, 64),
		finals:   make(chan model.TranscriptToken, 64),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

var _ asr.SessionHandle = (*session)(nil)

// session is a live whisper.cpp transcription session. All mutable state
// driving silence detection and buffering is confined to processLoop to
// avoid data races.
type session struct {
	model     whisperlib.Model
	streamID  string
	sessionID string

	language            string
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int

	audioCh  chan []byte
	partials chan model.TranscriptToken
	finals   chan model.TranscriptToken

	samplesConsumed int64

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

func (s *session) Partials() <-chan model.TranscriptToken { return s.partials }
func (s *session) Finals() <-chan model.TranscriptToken   { return s.finals }

func (s *session) SetKeywords(_ []asr.KeywordBoost) error {
	return fmt.Errorf("whisper: %w", errNotSupported)
}

func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)

	bytesPerMs := s.sampleRate * s.channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	doFlush := func() {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silenceMs = 0
			return
		}

		pcm := buffer
		buffer = nil
		hadSpeech = false
		silenceMs = 0

		startOffset := time.Duration(s.samplesConsumed) * time.Second / time.Duration(s.sampleRate)
		s.samplesConsumed += int64(len(pcm) / 2 / s.channels)

		token, err := s.infer(pcm, startOffset)
		if err != nil {
			slog.Error("whisper inference failed", "error", err, "stream_id", s.streamID)
			return
		}
		if token.Text == "" {
			return
		}

		select {
		case s.partials <- token:
		default:
		}
		token.IsFinal = true
		select {
		case s.finals <- token:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			doFlush()
			return

		case <-s.done:
			doFlush()
			return

		case chunk, ok := <-s.audioCh:
			if !ok {
				doFlush()
				return
			}

			rms := computeRMS(chunk)
			chunkMs := chunkDurationMs(chunk, s.sampleRate, s.channels)

			if rms < defaultRMSThreshold {
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.silenceThresholdMs {
						doFlush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush()
				}
			}
		}
	}
}

// infer converts the buffered PCM to float32 mono samples and runs a batch
// whisper.cpp inference, returning a TranscriptToken with word timestamps
// offset by startOffset.
func (s *session) infer(pcm []byte, startOffset time.Duration) (model.TranscriptToken, error) {
	samples := pcmToFloat32Mono(pcm, s.channels)

	wctx, err := s.model.NewContext()
	if err != nil {
		return model.TranscriptToken{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", s.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return model.TranscriptToken{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts []string
		words []model.WordTimestamp
		end   time.Duration
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.TranscriptToken{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		segStart := startOffset + segment.Start
		segEnd := startOffset + segment.End
		words = append(words, model.WordTimestamp{
			Word:       text,
			Start:      segStart,
			End:        segEnd,
			Confidence: 1.0,
		})
		end = segEnd
	}

	return model.TranscriptToken{
		Text:           strings.Join(parts, " "),
		StartTime:      startOffset,
		EndTime:        end,
		Confidence:     1.0,
		Language:       s.language,
		WordTimestamps: words,
		StreamID:       s.streamID,
		SessionID:      s.sessionID,
	}, nil
}

// pcmToFloat32Mono converts 16-bit signed little-endian PCM to the
// normalized float32 mono samples whisper.cpp expects, downmixing by
// averaging channels.
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	frameBytes := 2 * channels
	n := len(pcm) / frameBytes
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			off := i*frameBytes + c*2
			sample := int16(binary.LittleEndian.Uint16(pcm[off : off+2]))
			sum += float32(sample) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// computeRMS returns the root-mean-square energy of 16-bit signed
// little-endian PCM, in the 0-32767 sample range.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the duration of a PCM chunk in milliseconds.
func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (bitsPerSample / 8)
	return len(chunk) * 1000 / bytesPerSec
}
