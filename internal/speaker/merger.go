// Package speaker implements C6, the speaker-transcript merger: it
// intersects the speaker segments produced by diarization (C5) with
// ASR word-level/token-level timestamps to assign a speaker label to
// every transcript token.
package speaker

import (
	"sort"
	"sync"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

// Merger assigns speaker labels to transcript tokens using the latest
// diarization segment list for a stream. A Merger is safe for concurrent
// use: UpdateSegments is typically called from the diarization consumer
// goroutine while AssignSpeaker/Merge are called from the token pipeline.
type Merger struct {
	mu       sync.RWMutex
	segments []model.SpeakerSegment
}

// New returns an empty Merger. AssignSpeaker returns model.SpeakerUnknown
// until UpdateSegments is called.
func New() *Merger {
	return &Merger{}
}

// UpdateSegments replaces the segment list used for subsequent
// AssignSpeaker/Merge calls. segments need not be pre-sorted.
func (m *Merger) UpdateSegments(segments []model.SpeakerSegment) {
	sorted := make([]model.SpeakerSegment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })

	m.mu.Lock()
	m.segments = sorted
	m.mu.Unlock()
}

// Clear discards the current segment list, reverting AssignSpeaker to
// model.SpeakerUnknown. Used when a stream ends or is reset.
func (m *Merger) Clear() {
	m.mu.Lock()
	m.segments = nil
	m.mu.Unlock()
}

// AssignSpeaker returns the speaker label for the token span [startMs,
// endMs]. It prefers a segment containing (overlapping) the span; absent
// an overlap, it falls back to whichever adjacent segment is nearest. With
// no segments loaded it returns model.SpeakerUnknown.
func (m *Merger) AssignSpeaker(startMs, endMs int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.segments) == 0 {
		return model.SpeakerUnknown
	}

	// i is the index of the first segment starting strictly after
	// startMs; the only segments that can overlap or be nearest to the
	// token are m.segments[i-1] and m.segments[i].
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].StartMs > startMs
	})

	if i > 0 && overlaps(m.segments[i-1], startMs, endMs) {
		return m.segments[i-1].SpeakerLabel
	}
	if i < len(m.segments) && overlaps(m.segments[i], startMs, endMs) {
		return m.segments[i].SpeakerLabel
	}

	var (
		best     string
		bestDist int64 = -1
	)
	if i > 0 {
		d := distance(m.segments[i-1], startMs, endMs)
		best, bestDist = m.segments[i-1].SpeakerLabel, d
	}
	if i < len(m.segments) {
		d := distance(m.segments[i], startMs, endMs)
		if bestDist < 0 || d < bestDist {
			best, bestDist = m.segments[i].SpeakerLabel, d
		}
	}
	if bestDist < 0 {
		return model.SpeakerUnknown
	}
	return best
}

// overlaps reports whether the closed interval [startMs, endMs] intersects
// seg's closed interval, boundary-inclusive.
func overlaps(seg model.SpeakerSegment, startMs, endMs int64) bool {
	return startMs <= seg.EndMs && endMs >= seg.StartMs
}

// distance returns how far the token span [startMs, endMs] is from seg
// when they do not overlap: the gap to seg.EndMs if seg precedes the
// token, or the gap to seg.StartMs if seg follows it.
func distance(seg model.SpeakerSegment, startMs, endMs int64) int64 {
	if endMs < seg.StartMs {
		return seg.StartMs - endMs
	}
	return startMs - seg.EndMs
}

// Merge assigns a speaker label to every token and returns the enriched
// slice in the same order. An empty input returns an empty, non-nil slice.
func (m *Merger) Merge(tokens []model.TranscriptToken) []model.EnrichedToken {
	out := make([]model.EnrichedToken, 0, len(tokens))
	for _, tok := range tokens {
		label := m.AssignSpeaker(tok.StartTime.Milliseconds(), tok.EndTime.Milliseconds())
		out = append(out, model.EnrichedToken{
			TranscriptToken: tok,
			SpeakerLabel:    label,
		})
	}
	return out
}
