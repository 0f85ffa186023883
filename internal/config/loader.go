package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":     {"deepgram", "whisper"},
	"vad":     {"silero", "energy"},
	"channel": {"websocket", "webhook", "slack", "teams", "email", "sms", "signal"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the zero-value defaults documented on each field.
func applyDefaults(cfg *Config) {
	if cfg.ASR.FailureThreshold <= 0 {
		cfg.ASR.FailureThreshold = 3
	}
	if cfg.ASR.RecoveryTimeout <= 0 {
		cfg.ASR.RecoveryTimeout = 60 * time.Second
	}
	if cfg.Audit.Interval <= 0 {
		cfg.Audit.Interval = 60 * time.Second
	}
	for i := range cfg.Streams {
		if cfg.Streams[i].ChunkMs <= 0 {
			cfg.Streams[i].ChunkMs = 280
		}
		if cfg.Streams[i].VADThreshold <= 0 {
			cfg.Streams[i].VADThreshold = 0.5
		}
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("asr", cfg.ASR.Primary.Name)
	validateProviderName("asr", cfg.ASR.Fallback.Name)
	validateProviderName("vad", cfg.VAD.Name)

	if cfg.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required"))
	}

	streamIDsSeen := make(map[string]int, len(cfg.Streams))
	for i, s := range cfg.Streams {
		prefix := fmt.Sprintf("streams[%d]", i)
		if s.StreamID == "" {
			errs = append(errs, fmt.Errorf("%s.stream_id is required", prefix))
		} else if prev, ok := streamIDsSeen[s.StreamID]; ok {
			errs = append(errs, fmt.Errorf("%s.stream_id %q is a duplicate of streams[%d]", prefix, s.StreamID, prev))
		} else {
			streamIDsSeen[s.StreamID] = i
		}
		if s.SourceDescriptor == "" {
			errs = append(errs, fmt.Errorf("%s.source_descriptor is required", prefix))
		}
		if s.VADThreshold < 0 || s.VADThreshold > 1 {
			errs = append(errs, fmt.Errorf("%s.vad_threshold %.2f is out of range [0, 1]", prefix, s.VADThreshold))
		}
	}

	channelIDsSeen := make(map[string]int, len(cfg.Channels))
	for i, c := range cfg.Channels {
		prefix := fmt.Sprintf("channels[%d]", i)
		if c.ChannelID == "" {
			errs = append(errs, fmt.Errorf("%s.channel_id is required", prefix))
		} else if prev, ok := channelIDsSeen[c.ChannelID]; ok {
			errs = append(errs, fmt.Errorf("%s.channel_id %q is a duplicate of channels[%d]", prefix, c.ChannelID, prev))
		} else {
			channelIDsSeen[c.ChannelID] = i
		}
		validateProviderName("channel", c.ChannelType)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
