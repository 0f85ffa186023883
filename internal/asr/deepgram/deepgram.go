// Package deepgram provides a Deepgram-backed ASR engine using the Deepgram
// streaming WebSocket API. It implements asr.Engine.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/voxsentinel/voxsentinel/internal/asr"
	"github.com/voxsentinel/voxsentinel/internal/model"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

var errNotSupported = errors.New("mid-session keyword updates are not supported")

var _ asr.Engine = (*Engine)(nil)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(m string) Option {
	return func(e *Engine) { e.model = m }
}

// WithLanguage sets the BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(e *Engine) { e.language = language }
}

// WithSampleRate sets the provider-level default audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(e *Engine) { e.sampleRate = rate }
}

// Engine implements asr.Engine backed by the Deepgram streaming API.
type Engine struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

// New creates a new Deepgram Engine. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	e := &Engine{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Name identifies this engine for the router, logs, and metrics.
func (e *Engine) Name() string { return "deepgram" }

// StartStream opens a streaming transcription session with Deepgram.
func (e *Engine) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	wsURL, err := e.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+e.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sess := &session{
		conn:      conn,
		streamID:  cfg.StreamID,
		sessionID: cfg.SessionID,
		partials:  make(chan model.TranscriptToken, 64),
		finals:    make(chan model.TranscriptToken, 64),
		audio:     make(chan []byte, 256),
		done:      make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
func (e *Engine) buildURL(cfg asr.StreamConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = e.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = e.sampleRate
	}

	q := u.Query()
	q.Set("model", e.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	for _, kw := range cfg.Keywords {
		val := fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost)
		q.Add("keywords", val)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements asr.SessionHandle.
type session struct {
	conn      *websocket.Conn
	streamID  string
	sessionID string

	partials chan model.TranscriptToken
	finals   chan model.TranscriptToken
	audio    chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	kwMu     sync.RWMutex
	keywords []asr.KeywordBoost
}

func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

func (s *session) Partials() <-chan model.TranscriptToken { return s.partials }
func (s *session) Finals() <-chan model.TranscriptToken   { return s.finals }

// SetKeywords records the new keyword list. Deepgram does not support
// mid-stream keyword updates, so this returns an error.
func (s *session) SetKeywords(keywords []asr.KeywordBoost) error {
	s.kwMu.Lock()
	s.keywords = keywords
	s.kwMu.Unlock()
	return fmt.Errorf("deepgram: %w", errNotSupported)
}

func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		token, ok := s.parseResponse(msg)
		if !ok {
			continue
		}

		if token.IsFinal {
			select {
			case s.finals <- token:
			case <-s.done:
			}
		} else {
			select {
			case s.partials <- token:
			case <-s.done:
			}
		}
	}
}

// parseResponse parses a raw Deepgram WebSocket message into a
// model.TranscriptToken. Returns (token, true) on success, or (zero, false)
// if the message should be ignored.
func (s *session) parseResponse(data []byte) (model.TranscriptToken, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return model.TranscriptToken{}, false
	}
	if resp.Type != "Results" {
		return model.TranscriptToken{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return model.TranscriptToken{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]model.WordTimestamp, 0, len(alt.Words))
	var start, end time.Duration
	for i, w := range alt.Words {
		ws := time.Duration(w.Start * float64(time.Second))
		we := time.Duration(w.End * float64(time.Second))
		if i == 0 {
			start = ws
		}
		end = we
		words = append(words, model.WordTimestamp{
			Word:       w.Word,
			Start:      ws,
			End:        we,
			Confidence: w.Confidence,
		})
	}

	return model.TranscriptToken{
		Text:           alt.Transcript,
		IsFinal:        resp.IsFinal,
		StartTime:      start,
		EndTime:        end,
		Confidence:     alt.Confidence,
		WordTimestamps: words,
		StreamID:       s.streamID,
		SessionID:      s.sessionID,
	}, true
}
