package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"sync"
)

// ErrUnsupportedScheme is returned when no Source factory is registered
// for a descriptor's URI scheme.
var ErrUnsupportedScheme = errors.New("ingest: unsupported source scheme")

// Source is an open audio source yielding raw 16 kHz mono signed 16-bit
// little-endian PCM. Close releases any underlying process or connection.
type Source io.ReadCloser

// OpenFunc opens a Source for a stream's source_descriptor.
type OpenFunc func(ctx context.Context, descriptor string) (Source, error)

// Registry resolves a source_descriptor's URI scheme (rtsp://,
// https://.../*.m3u8 or *.mpd, file://, sip:) to the OpenFunc that decodes
// it, mirroring config.Registry's name-to-factory pattern for providers.
type Registry struct {
	mu      sync.RWMutex
	schemes map[string]OpenFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{schemes: make(map[string]OpenFunc)}
}

// Register installs factory for scheme (without "://", e.g. "rtsp", "http").
func (r *Registry) Register(scheme string, factory OpenFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[scheme] = factory
}

// Open parses descriptor's scheme and dispatches to the registered
// OpenFunc.
func (r *Registry) Open(ctx context.Context, descriptor string) (Source, error) {
	u, err := url.Parse(descriptor)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse source descriptor %q: %w", descriptor, err)
	}

	r.mu.RLock()
	factory, ok := r.schemes[u.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return factory(ctx, descriptor)
}

// DefaultRegistry returns a Registry with ffmpeg-backed decoding wired for
// every transport ffmpeg can read directly: rtsp://, http(s):// (including
// HLS/DASH playlists), and file://. sip: is intentionally left
// unregistered — decoding a SIP media leg requires a signaling stack (INVITE/
// SDP negotiation) this extractor does not implement; Register a custom
// OpenFunc for "sip" once that front-end exists.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("rtsp", openFFmpeg)
	r.Register("http", openFFmpeg)
	r.Register("https", openFFmpeg)
	r.Register("file", openFFmpeg)
	return r
}

// ffmpegSource wraps a running ffmpeg process transcoding descriptor to
// raw PCM on stdout. No Go library in the corpus decodes the full span of
// containers/codecs a stream's source_descriptor can name (RTSP, HLS,
// DASH, arbitrary file containers); shelling out to ffmpeg is the standard
// approach this codebase already uses elsewhere for audio transcoding.
type ffmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
}

func openFFmpeg(ctx context.Context, descriptor string) (Source, error) {
	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, "ffmpeg",
		"-loglevel", "error",
		"-i", descriptor,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-ac", "1",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ingest: ffmpeg stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ingest: start ffmpeg for %q: %w", descriptor, err)
	}

	return &ffmpegSource{cmd: cmd, stdout: stdout, cancel: cancel}, nil
}

func (s *ffmpegSource) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSource) Close() error {
	s.cancel()
	_ = s.stdout.Close()
	return s.cmd.Wait()
}
