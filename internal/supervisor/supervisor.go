// Package supervisor implements C1, the stream supervisor: it owns the
// lifecycle of each ingested stream's processing goroutine, restarting it
// with exponential backoff when the underlying connection drops, the way
// the original ingestion service's with_reconnection wrapped every
// stream's connect step.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/voxsentinel/voxsentinel/internal/observe"
)

// ErrAlreadyActive is returned by Start when streamID already has a
// running goroutine.
var ErrAlreadyActive = errors.New("supervisor: stream already active")

// ErrNotActive is returned by Stop when streamID has no running goroutine.
var ErrNotActive = errors.New("supervisor: stream not active")

// RunFunc runs one stream's full processing pipeline until ctx is
// cancelled (clean stop) or the connection is lost, in which case it
// returns a non-nil, non-context error so the Supervisor knows to
// reconnect.
type RunFunc func(ctx context.Context, streamID string) error

// BackoffConfig bounds the reconnection backoff applied between failed
// RunFunc attempts for a stream.
type BackoffConfig struct {
	// MaxRetries is the number of consecutive reconnection attempts
	// allowed before a stream is given up on and stopped. Defaults to 5,
	// matching the original ingestion service's MAX_RETRIES.
	MaxRetries int

	// InitialInterval is the first retry delay; subsequent delays grow
	// exponentially. Defaults to 1s, matching INITIAL_DELAY_S.
	InitialInterval time.Duration

	// StableAfter is how long a RunFunc call must stay up before a
	// subsequent disconnect resets the retry counter back to zero. This
	// keeps a stream that has been healthy for hours from being killed by
	// a brief blip that happens to be its sixth disconnect ever. Defaults
	// to 30s.
	StableAfter time.Duration
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.StableAfter <= 0 {
		c.StableAfter = 30 * time.Second
	}
	return c
}

// managedStream tracks one stream's supervised goroutine.
type managedStream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor is C1: start/stop/stop_all/active over a set of streams, each
// running run and reconnected with backoff on failure.
type Supervisor struct {
	run     RunFunc
	metrics *observe.Metrics
	backoff BackoffConfig

	mu      sync.Mutex
	streams map[string]*managedStream
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithBackoff overrides the default BackoffConfig.
func WithBackoff(cfg BackoffConfig) Option {
	return func(s *Supervisor) { s.backoff = cfg.withDefaults() }
}

// WithMetrics attaches an observe.Metrics recorder.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// New builds a Supervisor that runs run for every started stream.
func New(run RunFunc, opts ...Option) *Supervisor {
	s := &Supervisor{
		run:     run,
		backoff: BackoffConfig{}.withDefaults(),
		streams: make(map[string]*managedStream),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the supervised goroutine for streamID. It returns
// ErrAlreadyActive if streamID is already running.
func (s *Supervisor) Start(streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streams[streamID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, streamID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &managedStream{cancel: cancel, done: make(chan struct{})}
	s.streams[streamID] = m

	go func() {
		defer func() {
			s.mu.Lock()
			if cur, ok := s.streams[streamID]; ok && cur == m {
				delete(s.streams, streamID)
			}
			s.mu.Unlock()
			close(m.done)
		}()
		s.supervise(ctx, streamID)
	}()

	return nil
}

// Stop cancels streamID's supervised goroutine and waits for it to exit.
// It returns ErrNotActive if streamID is not running (including when it
// has already given up after exhausting its reconnection attempts).
func (s *Supervisor) Stop(streamID string) error {
	s.mu.Lock()
	m, ok := s.streams[streamID]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotActive, streamID)
	}

	m.cancel()
	<-m.done
	return nil
}

// StopAll cancels and waits for every currently active stream.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.Stop(id)
	}
}

// Active returns the stream IDs currently supervised, in no particular
// order.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.streams))
	for id := range s.streams {
		out = append(out, id)
	}
	return out
}

// supervise runs run repeatedly, applying exponential backoff between
// failures and giving up after MaxRetries consecutive failures that each
// occurred before StableAfter elapsed.
func (s *Supervisor) supervise(ctx context.Context, streamID string) {
	log := slog.With("component", "stream_supervisor", "stream_id", streamID)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.backoff.InitialInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	attempts := 0

	for {
		started := time.Now()
		err := s.run(ctx, streamID)

		if ctx.Err() != nil {
			log.Info("stream supervisor stopped", "stream_id", streamID)
			return
		}

		if time.Since(started) >= s.backoff.StableAfter {
			attempts = 0
			bo.Reset()
		}
		attempts++

		if attempts > s.backoff.MaxRetries {
			log.Error("stream reconnection exhausted",
				"attempts", attempts-1, "err", err)
			if s.metrics != nil {
				s.metrics.RecordReconnectAttempt(ctx, streamID, "exhausted")
			}
			return
		}

		delay := bo.NextBackOff()
		log.Warn("stream disconnected, reconnecting",
			"attempt", attempts, "delay", delay, "err", err)
		if s.metrics != nil {
			s.metrics.RecordReconnectAttempt(ctx, streamID, "retry")
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			log.Info("stream supervisor stopped during backoff", "stream_id", streamID)
			return
		}
	}
}
