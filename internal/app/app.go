// Package app wires every VoxSentinel subsystem together into a running
// pipeline: C1 ingest supervision, C3 VAD gating, C4 ASR routing, C5
// diarization, C6 speaker merging, C7 NLP enrichment, C8 alert dispatch,
// C9 transcript persistence, and C10 Merkle anchoring, all fed by the
// queues in package queue.
//
// New connects every backing store and registers no provider factories
// itself — main.go owns that via the config.Registry passed in, the same
// separation the control-plane process keeps between wiring and policy.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	esv8 "github.com/elastic/go-elasticsearch/v8"

	"github.com/voxsentinel/voxsentinel/internal/alert"
	"github.com/voxsentinel/voxsentinel/internal/alert/channel/websocket"
	"github.com/voxsentinel/voxsentinel/internal/audit"
	"github.com/voxsentinel/voxsentinel/internal/config"
	"github.com/voxsentinel/voxsentinel/internal/ingest"
	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/nlp"
	"github.com/voxsentinel/voxsentinel/internal/nlp/keyword"
	"github.com/voxsentinel/voxsentinel/internal/nlp/pii"
	"github.com/voxsentinel/voxsentinel/internal/nlp/sentiment"
	"github.com/voxsentinel/voxsentinel/internal/observe"
	"github.com/voxsentinel/voxsentinel/internal/queue"
	"github.com/voxsentinel/voxsentinel/internal/storage/postgres"
	"github.com/voxsentinel/voxsentinel/internal/storage/search"
	"github.com/voxsentinel/voxsentinel/internal/supervisor"
	"github.com/voxsentinel/voxsentinel/internal/vad"
)

// App owns every long-lived subsystem and the per-stream pipelines running
// over them.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	queue    *queue.RedisQueue
	metrics  *observe.Metrics

	db               *pgxpool.Pool
	transcriptWriter *postgres.TranscriptWriter
	alertWriter      *postgres.AlertWriter
	auditStore       *postgres.AuditStore
	hasher           *audit.Hasher

	keywords  *keyword.Detector
	sentiment *sentiment.Tracker
	redactor  pii.Redactor
	nlp       *nlp.Pipeline

	throttle   *alert.Throttle
	dispatcher *alert.Dispatcher
	wsChannel  *websocket.Channel

	sessions *SessionManager
	ingress  *ingest.Extractor
	vadEngine vad.Engine

	supervisor *supervisor.Supervisor

	mu        sync.Mutex
	pipelines map[string]*streamPipeline
}

// streamPipeline tracks the goroutines and cancellation for one running
// stream's post-ingest pipeline (everything downstream of C2).
type streamPipeline struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures an App at construction time.
type Option func(*App)

// WithMetrics attaches an observe.Metrics recorder instead of
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New connects Redis, Postgres, and (if configured) Elasticsearch, builds
// every stage of the pipeline, and starts the audit anchoring job. It does
// not start any stream — call StartStream for each auto-start entry in
// cfg.Streams once New returns.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		registry:  registry,
		pipelines: make(map[string]*streamPipeline),
		sessions:  NewSessionManager(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	rq, err := queue.NewRedisQueue(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("app: connect redis: %w", err)
	}
	a.queue = rq

	pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	a.db = pool

	var indexer *search.Indexer
	if len(cfg.Storage.ElasticsearchAddrs) > 0 {
		esClient, err := esv8.NewClient(esv8.Config{Addresses: cfg.Storage.ElasticsearchAddrs})
		if err != nil {
			return nil, fmt.Errorf("app: build elasticsearch client: %w", err)
		}
		idx := search.New(esClient, cfg.Storage.ElasticsearchIndex)
		if err := idx.EnsureIndex(ctx); err != nil {
			slog.Warn("elasticsearch index setup failed", "err", err)
		}
		indexer = idx
	}

	var segmentIndexer postgres.SegmentIndexer
	if indexer != nil {
		segmentIndexer = indexer
	}
	a.transcriptWriter = postgres.NewTranscriptWriter(a.db, segmentIndexer)
	a.alertWriter = postgres.NewAlertWriter(a.db)
	a.auditStore = postgres.NewAuditStore(a.db)

	a.hasher = audit.NewHasher(a.auditStore, cfg.Audit.Interval)
	a.hasher.Start(ctx)

	a.keywords = keyword.NewDetector()
	a.sentiment = sentiment.NewTracker(sentiment.NoopClassifier{}, sentiment.Config{})
	a.redactor = pii.NewRegex()
	a.nlp = nlp.New(a.keywords, a.sentiment, a.redactor)

	a.throttle = alert.NewThrottle(a.queue.Client())

	channels, wsChannel, err := a.buildChannels()
	if err != nil {
		return nil, fmt.Errorf("app: build alert channels: %w", err)
	}
	a.wsChannel = wsChannel

	a.dispatcher = alert.NewDispatcher(a.throttle, channels,
		alert.WithAlertWriter(a.alertWriter.WriteAlert),
		alert.WithRetryEnqueue(a.retryAlert),
		alert.WithMetrics(a.metrics),
	)

	a.ingress = ingest.NewExtractor(*ingest.DefaultRegistry(), a.queue)

	vadEngine, err := a.registry.CreateVAD(cfg.VAD)
	if err != nil {
		return nil, fmt.Errorf("app: build vad engine: %w", err)
	}
	a.vadEngine = vadEngine

	a.supervisor = supervisor.New(a.runIngest, supervisor.WithMetrics(a.metrics))

	return a, nil
}

// enabler is implemented by every built-in channel type (websocket, webhook,
// slack, simple) but isn't part of the alert.Channel interface itself, since
// a future channel backed by an always-on external subscription might have
// no notion of being disabled.
type enabler interface {
	SetEnabled(bool)
}

// buildChannels instantiates every channel in cfg.Channels via the
// registry, disabled ones included, and applies each entry's Enabled flag
// to channels that implement enabler. It returns the websocket channel
// separately (if configured) so main.go can wire its HTTP upgrade endpoint
// to it.
func (a *App) buildChannels() ([]alert.Channel, *websocket.Channel, error) {
	var channels []alert.Channel
	var ws *websocket.Channel
	for _, entry := range a.cfg.Channels {
		ch, err := a.registry.CreateChannel(entry)
		if err != nil {
			return nil, nil, fmt.Errorf("channel %q: %w", entry.ChannelID, err)
		}
		if e, ok := ch.(enabler); ok {
			e.SetEnabled(entry.Enabled)
		}
		channels = append(channels, ch)
		if w, ok := ch.(*websocket.Channel); ok {
			ws = w
		}
	}
	return channels, ws, nil
}

// retryAlert is the best-effort RetryEnqueueFunc passed to the dispatcher.
// VoxSentinel does not persist a separate retry queue; a failed channel
// delivery is logged so an operator can see it in the control plane's log
// stream, and the alert itself is still recorded by alertWriter regardless
// of per-channel delivery outcome.
func (a *App) retryAlert(alrt model.Alert, channelName string) {
	slog.Warn("alert delivery will not be retried", "alert_id", alrt.AlertID, "channel", channelName)
}

// WebsocketChannel returns the websocket alert channel, or nil if none is
// configured. main.go uses this to wire the /ws/alerts upgrade endpoint.
func (a *App) WebsocketChannel() *websocket.Channel { return a.wsChannel }

// AuditStore exposes the audit store for health checks.
func (a *App) AuditStore() *postgres.AuditStore { return a.auditStore }

// DB exposes the pool for health checks.
func (a *App) DB() *pgxpool.Pool { return a.db }

// Sessions returns the in-memory session tracker.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Metrics returns the App's metrics recorder.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// ActiveStreams returns the stream IDs with a running pipeline, in no
// particular order.
func (a *App) ActiveStreams() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.pipelines))
	for id := range a.pipelines {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down every running stream and every backing connection.
func (a *App) Close(ctx context.Context) error {
	for _, id := range a.ActiveStreams() {
		a.StopStream(id)
	}
	a.supervisor.StopAll()
	a.hasher.Stop()
	a.db.Close()
	return a.queue.Close()
}
