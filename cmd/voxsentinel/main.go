// Command voxsentinel runs the VoxSentinel control plane: it loads
// configuration, wires every provider factory into a config.Registry,
// builds the app.App pipeline, auto-starts every configured stream, and
// serves health/metrics/websocket-alert HTTP endpoints until signalled to
// shut down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ws "github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxsentinel/voxsentinel/internal/alert"
	"github.com/voxsentinel/voxsentinel/internal/alert/channel/simple"
	"github.com/voxsentinel/voxsentinel/internal/alert/channel/slack"
	"github.com/voxsentinel/voxsentinel/internal/alert/channel/webhook"
	wschannel "github.com/voxsentinel/voxsentinel/internal/alert/channel/websocket"
	"github.com/voxsentinel/voxsentinel/internal/app"
	"github.com/voxsentinel/voxsentinel/internal/asr"
	"github.com/voxsentinel/voxsentinel/internal/asr/deepgram"
	"github.com/voxsentinel/voxsentinel/internal/asr/whisper"
	"github.com/voxsentinel/voxsentinel/internal/config"
	"github.com/voxsentinel/voxsentinel/internal/health"
	"github.com/voxsentinel/voxsentinel/internal/model"
	"github.com/voxsentinel/voxsentinel/internal/observe"
	"github.com/voxsentinel/voxsentinel/internal/vad"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to VoxSentinel config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("voxsentinel exited with error", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "voxsentinel",
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	registry := buildRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, registry)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	for _, sc := range cfg.Streams {
		if !sc.AutoStart {
			continue
		}
		if err := a.StartStream(sc.StreamID); err != nil {
			slog.Error("auto-start stream failed", "stream_id", sc.StreamID, "err", err)
		}
	}

	srv := buildServer(cfg, a)
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("control plane listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			slog.Error("control plane server failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("control plane shutdown error", "err", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		slog.Warn("app close error", "err", err)
	}
	return nil
}

// buildRegistry registers every ASR, VAD, and alert channel factory this
// build ships: deepgram/whisper for ASR, the energy-based VAD (no real
// ML backend is wired yet, see DESIGN.md), and the websocket/webhook/
// slack/simple alert channels. Provider names listed in config but not
// registered here (e.g. "silero", "teams", "email", "sms", "signal") fail
// at Create* time with config.ErrProviderNotRegistered.
func buildRegistry() *config.Registry {
	registry := config.NewRegistry()

	registry.RegisterASR("deepgram", func(entry config.ProviderEntry) (asr.Engine, error) {
		opts := []deepgram.Option{}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		return deepgram.New(entry.APIKey, opts...)
	})
	registry.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Engine, error) {
		return whisper.New(entry.Model)
	})

	registry.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) {
		return vad.NewEnergyEngine(), nil
	})

	registry.RegisterChannel("websocket", func(config.ChannelEntry) (alert.Channel, error) {
		return wschannel.New(), nil
	})
	registry.RegisterChannel("webhook", func(entry config.ChannelEntry) (alert.Channel, error) {
		url, _ := entry.Options["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("webhook channel %q: missing options.url", entry.ChannelID)
		}
		return webhook.New(url), nil
	})
	registry.RegisterChannel("slack", func(entry config.ChannelEntry) (alert.Channel, error) {
		url, _ := entry.Options["webhook_url"].(string)
		if url == "" {
			return nil, fmt.Errorf("slack channel %q: missing options.webhook_url", entry.ChannelID)
		}
		return slack.New(url), nil
	})
	registry.RegisterChannel("simple", func(entry config.ChannelEntry) (alert.Channel, error) {
		return simple.New(entry.ChannelID, func(context.Context, model.Alert) (bool, error) {
			slog.Info("simple channel delivery", "channel_id", entry.ChannelID)
			return true, nil
		}), nil
	})

	return registry
}

// buildServer assembles the control-plane HTTP mux: health/readiness
// probes, a Prometheus scrape endpoint, and the /ws/alerts dashboard feed.
func buildServer(cfg *config.Config, a *app.App) *http.Server {
	mux := http.NewServeMux()

	healthHandler := health.New(
		health.Checker{Name: "postgres", Check: func(ctx context.Context) error {
			return a.DB().Ping(ctx)
		}},
	)
	healthHandler.Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /ws/alerts", func(w http.ResponseWriter, r *http.Request) {
		ch := a.WebsocketChannel()
		if ch == nil {
			http.Error(w, "websocket alert channel not configured", http.StatusNotFound)
			return
		}
		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			slog.Warn("websocket accept error", "err", err)
			return
		}
		ch.Register(conn)
		defer func() {
			ch.Unregister(conn)
			conn.CloseNow()
		}()

		ctx := r.Context()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	})

	return &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: mux,
	}
}
