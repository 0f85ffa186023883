package ingest

import "testing"

func bytesOf(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestChunkSizeConstants(t *testing.T) {
	if ChunkSizeBytes != 8960 {
		t.Errorf("ChunkSizeBytes = %d, want 8960", ChunkSizeBytes)
	}
	if ChunkDurationMs != 280 {
		t.Errorf("ChunkDurationMs = %d, want 280", ChunkDurationMs)
	}
}

func TestChunker_ExactOneChunk(t *testing.T) {
	c := NewChunker("s1", "sess1")
	chunks := c.Feed(bytesOf(ChunkSizeBytes, 0x01))

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if len(chunks[0].PCM) != ChunkSizeBytes {
		t.Errorf("pcm len = %d, want %d", len(chunks[0].PCM), ChunkSizeBytes)
	}
	if chunks[0].StreamID != "s1" || chunks[0].SessionID != "sess1" {
		t.Errorf("chunk = %+v", chunks[0])
	}
	if chunks[0].DurationMs != 280 {
		t.Errorf("duration = %d, want 280", chunks[0].DurationMs)
	}
}

func TestChunker_TwoChunksFromDoubleData(t *testing.T) {
	c := NewChunker("s1", "sess1")
	chunks := c.Feed(bytesOf(ChunkSizeBytes*2, 0x02))

	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	for _, ch := range chunks {
		if len(ch.PCM) != ChunkSizeBytes {
			t.Errorf("pcm len = %d, want %d", len(ch.PCM), ChunkSizeBytes)
		}
	}
}

func TestChunker_TrailingBytesDiscarded(t *testing.T) {
	c := NewChunker("s1", "sess1")
	chunks := c.Feed(bytesOf(ChunkSizeBytes+100, 0x03))

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if len(c.buf) != 100 {
		t.Errorf("leftover buffered = %d, want 100", len(c.buf))
	}
}

func TestChunker_SmallFragmentsAccumulated(t *testing.T) {
	c := NewChunker("s1", "sess1")
	var all int
	for i := 0; i < 9; i++ {
		got := c.Feed(bytesOf(1000, 0x04))
		all += len(got)
	}
	if all != 1 {
		t.Fatalf("total chunks = %d, want 1", all)
	}
}

func TestChunker_EmptyFeedYieldsNoChunks(t *testing.T) {
	c := NewChunker("s1", "sess1")
	if got := c.Feed(nil); len(got) != 0 {
		t.Errorf("chunks = %v, want none", got)
	}
}

func TestChunker_ChunkIDsAreUnique(t *testing.T) {
	c := NewChunker("s1", "sess1")
	chunks := c.Feed(bytesOf(ChunkSizeBytes*3, 0x05))

	seen := make(map[string]bool)
	for _, ch := range chunks {
		if seen[ch.ChunkID] {
			t.Fatalf("duplicate chunk id %q", ch.ChunkID)
		}
		seen[ch.ChunkID] = true
	}
	if len(seen) != 3 {
		t.Errorf("unique ids = %d, want 3", len(seen))
	}
}
