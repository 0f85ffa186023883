// Package diarization implements C5, the diarization accumulator: per
// stream it buffers speech audio into fixed windows, runs a pluggable
// speaker-diarization model over each window, and publishes the resulting
// speaker turns for the speaker merger (C6) to consume.
package diarization

import (
	"context"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// Model performs offline speaker diarization over one accumulated window
// of 16 kHz mono 16-bit PCM audio. A Model with no backing inference
// engine (e.g. missing credentials) may legitimately return an empty,
// nil-error segment list; callers then fall back to model.SpeakerUnknown.
type Model interface {
	Diarize(ctx context.Context, pcm []byte) ([]model.SpeakerSegment, error)
}
