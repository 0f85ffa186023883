package diarization

import (
	"context"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// NoopModel is the degraded-mode Model used when no diarization backend is
// configured: it always returns an empty segment list, causing every token
// in the window to be assigned model.SpeakerUnknown by the speaker merger.
// This mirrors the Python pyannote_pipeline's behavior when TG_HF_TOKEN is
// unset: the service starts in degraded mode rather than failing startup.
type NoopModel struct{}

// Diarize implements Model.
func (NoopModel) Diarize(context.Context, []byte) ([]model.SpeakerSegment, error) {
	return nil, nil
}
