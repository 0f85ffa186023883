// Package config provides the configuration schema, loader, provider
// registry, and hot-reload watcher for VoxSentinel.
package config

import "time"

// Config is the root configuration structure for VoxSentinel.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	ASR      ASRConfig      `yaml:"asr"`
	VAD      ProviderEntry  `yaml:"vad"`
	Streams  []StreamConfig `yaml:"streams"`
	Channels []ChannelEntry `yaml:"channels"`
	Audit    AuditConfig    `yaml:"audit"`
}

// LogLevel controls slog verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, "":
		return true
	default:
		return false
	}
}

// ServerConfig holds network and logging settings for the VoxSentinel
// control-plane HTTP server (health checks, metrics, websocket alert feed).
type ServerConfig struct {
	// ListenAddr is the TCP address the control-plane server listens on.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// RedisConfig configures the Redis connection backing both Streams and
// PubSub (package queue).
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// StorageConfig configures the durable transcript archive.
type StorageConfig struct {
	// PostgresDSN is the connection string for the transcript/alert/audit store.
	PostgresDSN string `yaml:"postgres_dsn"`

	// ElasticsearchAddrs lists the Elasticsearch nodes used for full-text
	// transcript search indexing. Leave empty to disable search indexing.
	ElasticsearchAddrs []string `yaml:"elasticsearch_addrs"`

	// ElasticsearchIndex is the index name transcript segments are written to.
	ElasticsearchIndex string `yaml:"elasticsearch_index"`
}

// ASRConfig declares which ASR engine to use as primary and, optionally,
// as fallback, plus the failover thresholds shared by every stream. A
// stream can override the primary/fallback provider names, but not these
// thresholds.
type ASRConfig struct {
	Primary              ProviderEntry `yaml:"primary"`
	Fallback              ProviderEntry `yaml:"fallback"`
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryTimeout       time.Duration `yaml:"recovery_timeout"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. Name selects the registered constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "deepgram", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// StreamConfig describes one ingested audio source.
type StreamConfig struct {
	// StreamID is a unique identifier for this stream.
	StreamID string `yaml:"stream_id"`

	// SourceDescriptor is the ingest URI: rtsp://, https://...m3u8,
	// https://...mpd, file://, or sip:.
	SourceDescriptor string `yaml:"source_descriptor"`

	// ASRPrimary and ASRFallback override asr.primary/asr.fallback for
	// this stream. Empty means "use the global default".
	ASRPrimary  string `yaml:"asr_primary"`
	ASRFallback string `yaml:"asr_fallback"`

	// VADThreshold overrides the default speech-probability threshold.
	VADThreshold float64 `yaml:"vad_threshold"`

	// ChunkMs is the audio chunk duration in milliseconds, passed to the VAD
	// gate as its frame size. The ingest chunker does not read it: it always
	// emits ingest.ChunkDurationMs (280 ms) chunks. Defaults to 280.
	ChunkMs int `yaml:"chunk_ms"`

	// AutoStart starts ingestion for this stream as soon as the process
	// comes up, without waiting for an explicit control-plane command.
	AutoStart bool `yaml:"auto_start"`
}

// ChannelEntry configures one alert delivery destination.
type ChannelEntry struct {
	ChannelID   string         `yaml:"channel_id"`
	ChannelType string         `yaml:"channel_type"`
	MinSeverity string         `yaml:"min_severity"`
	AlertTypes  []string       `yaml:"alert_types"`
	StreamIDs   []string       `yaml:"stream_ids"`
	Enabled     bool           `yaml:"enabled"`
	Options     map[string]any `yaml:"options"`
}

// AuditConfig configures the Merkle anchoring job (C10).
type AuditConfig struct {
	// Interval is how often the anchoring job runs. Defaults to 60s.
	Interval time.Duration `yaml:"interval"`
}
