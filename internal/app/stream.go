package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/voxsentinel/voxsentinel/internal/alert"
	"github.com/voxsentinel/voxsentinel/internal/asr"
	"github.com/voxsentinel/voxsentinel/internal/config"
	"github.com/voxsentinel/voxsentinel/internal/diarization"
	"github.com/voxsentinel/voxsentinel/internal/nlp"
	"github.com/voxsentinel/voxsentinel/internal/speaker"
	"github.com/voxsentinel/voxsentinel/internal/storage/postgres"
	"github.com/voxsentinel/voxsentinel/internal/vad"
)

// ErrStreamNotConfigured is returned by StartStream when streamID has no
// matching entry in cfg.Streams.
var ErrStreamNotConfigured = fmt.Errorf("app: stream not configured")

// streamConfig looks up a stream's declared configuration by ID.
func (a *App) streamConfig(streamID string) (config.StreamConfig, bool) {
	for _, sc := range a.cfg.Streams {
		if sc.StreamID == streamID {
			return sc, true
		}
	}
	return config.StreamConfig{}, false
}

// StartStream opens a session for streamID and starts every pipeline
// stage downstream of ingest (VAD, ASR, diarization, speaker merge, NLP,
// storage, alert dispatch), then hands ingest itself to the supervisor so
// a dropped source reconnects with backoff without tearing down the rest
// of the pipeline.
func (a *App) StartStream(streamID string) error {
	sc, ok := a.streamConfig(streamID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotConfigured, streamID)
	}

	a.mu.Lock()
	if _, running := a.pipelines[streamID]; running {
		a.mu.Unlock()
		return fmt.Errorf("app: stream %s already running", streamID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &streamPipeline{cancel: cancel, done: make(chan struct{})}
	a.pipelines[streamID] = p
	a.mu.Unlock()

	session := a.sessions.Start(streamID)

	router, err := a.routerFor(sc)
	if err != nil {
		cancel()
		a.mu.Lock()
		delete(a.pipelines, streamID)
		a.mu.Unlock()
		_ = a.sessions.End(streamID)
		return fmt.Errorf("app: build asr router for stream %s: %w", streamID, err)
	}

	accumulator := diarization.NewAccumulator(diarization.NoopModel{}, a.queue, a.queue)
	merger := speaker.New()

	go func() {
		defer close(p.done)
		eg, egCtx := errgroup.WithContext(ctx)

		eg.Go(func() error {
			return vad.NewGate(a.vadEngine, a.queue, a.metrics).Run(egCtx, streamID, vad.Config{
				SampleRate:       16000,
				FrameSizeMs:      sc.ChunkMs,
				SpeechThreshold:  sc.VADThreshold,
				SilenceThreshold: sc.VADThreshold / 2,
			})
		})
		eg.Go(func() error {
			return accumulator.Run(egCtx, streamID, diarization.Config{})
		})
		eg.Go(func() error {
			return asr.NewConsumer(router, a.queue).Run(egCtx, streamID, session.SessionID, asr.StreamConfig{
				SampleRate: 16000,
				Channels:   1,
			})
		})
		eg.Go(func() error {
			return speaker.NewConsumer(merger, accumulator, a.queue).Run(egCtx, streamID)
		})
		eg.Go(func() error {
			return nlp.NewConsumer(a.nlp, a.queue).Run(egCtx, streamID)
		})
		eg.Go(func() error {
			return postgres.NewSegmentConsumer(a.transcriptWriter, a.queue).Run(egCtx, streamID)
		})
		eg.Go(func() error {
			return alert.NewConsumer(a.queue, a.dispatcher).Run(egCtx, streamID)
		})

		if err := eg.Wait(); err != nil && egCtx.Err() == nil {
			slog.Error("stream pipeline stage failed", "stream_id", streamID, "err", err)
		}
	}()

	if err := a.supervisor.Start(streamID); err != nil {
		a.StopStream(streamID)
		return fmt.Errorf("app: start ingest supervisor for stream %s: %w", streamID, err)
	}

	return nil
}

// StopStream cancels every pipeline stage for streamID, stops its
// supervised ingest goroutine, and closes out its session. It is a no-op
// if streamID is not running.
func (a *App) StopStream(streamID string) {
	a.mu.Lock()
	p, ok := a.pipelines[streamID]
	if ok {
		delete(a.pipelines, streamID)
	}
	a.mu.Unlock()

	if !ok {
		return
	}

	_ = a.supervisor.Stop(streamID)
	p.cancel()
	<-p.done
	_ = a.sessions.End(streamID)
}

// runIngest is the supervisor.RunFunc for C1: it re-reads the stream's
// current session (so a reconnect keeps the same SessionID; only
// StartStream mints a new one) and runs the ingest extractor against the
// stream's configured source until it disconnects or ctx is cancelled.
func (a *App) runIngest(ctx context.Context, streamID string) error {
	sc, ok := a.streamConfig(streamID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStreamNotConfigured, streamID)
	}
	session := a.sessions.Current(streamID)
	if session == nil {
		return fmt.Errorf("app: no active session for stream %s", streamID)
	}
	return a.ingress.Run(ctx, streamID, session.SessionID, sc.SourceDescriptor)
}

// routerFor resolves the ASR primary/fallback engines for a stream,
// reusing the global asr.primary/asr.fallback config entries unless the
// stream overrides one by provider name, in which case only that
// provider's name carries over (per-stream API keys are not supported —
// a stream wanting different credentials needs its own global provider
// entry named distinctly).
func (a *App) routerFor(sc config.StreamConfig) (*asr.Router, error) {
	primaryEntry := a.cfg.ASR.Primary
	if sc.ASRPrimary != "" && sc.ASRPrimary != primaryEntry.Name {
		primaryEntry = config.ProviderEntry{Name: sc.ASRPrimary}
	}
	fallbackEntry := a.cfg.ASR.Fallback
	if sc.ASRFallback != "" && sc.ASRFallback != fallbackEntry.Name {
		fallbackEntry = config.ProviderEntry{Name: sc.ASRFallback}
	}

	primary, err := a.registry.CreateASR(primaryEntry)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}

	var fallback asr.Engine
	if fallbackEntry.Name != "" {
		fallback, err = a.registry.CreateASR(fallbackEntry)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
	}

	return asr.NewRouter(primary, fallback, asr.RouterConfig{
		FailureThreshold: a.cfg.ASR.FailureThreshold,
		RecoveryTimeout:  a.cfg.ASR.RecoveryTimeout,
	}, a.metrics), nil
}
