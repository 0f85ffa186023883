package queue

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue implementation backed by plain slices
// and channels. It is used by component tests that need queue semantics
// without a live Redis instance.
type MemoryQueue struct {
	mu      sync.Mutex
	streams map[string][]Message
	seq     int64

	subMu sync.Mutex
	subs  map[string][]chan []byte
}

// NewMemoryQueue returns an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		streams: make(map[string][]Message),
		subs:    make(map[string][]chan []byte),
	}
}

// Add implements Streams.
func (q *MemoryQueue) Add(_ context.Context, stream string, fields map[string]string, maxlen int64) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	id := strconv.FormatInt(q.seq, 10) + "-0"
	frozen := make(map[string]string, len(fields))
	for k, v := range fields {
		frozen[k] = v
	}
	q.streams[stream] = append(q.streams[stream], Message{ID: id, Fields: frozen})

	if maxlen > 0 && int64(len(q.streams[stream])) > maxlen {
		excess := int64(len(q.streams[stream])) - maxlen
		q.streams[stream] = q.streams[stream][excess:]
	}
	return id, nil
}

// Read implements Streams. lastID "$" is resolved once, at the start of the
// call, to the ID of the stream's present tail, so only entries added after
// the call starts are returned. Unlike the Streams contract, block <= 0
// does not wait: Read returns whatever is present at once.
func (q *MemoryQueue) Read(ctx context.Context, stream, lastID string, count int64, block time.Duration) ([]Message, error) {
	if lastID == "$" {
		q.mu.Lock()
		lastID = "0"
		if all := q.streams[stream]; len(all) > 0 {
			lastID = all[len(all)-1].ID
		}
		q.mu.Unlock()
	}
	deadline := time.Now().Add(block)
	for {
		q.mu.Lock()
		all := q.streams[stream]
		var out []Message
		for _, m := range all {
			if afterID(m.ID, lastID) {
				out = append(out, m)
				if count > 0 && int64(len(out)) >= count {
					break
				}
			}
		}
		q.mu.Unlock()

		if len(out) > 0 || block <= 0 {
			return out, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func afterID(id, lastID string) bool {
	if lastID == "$" || lastID == "" {
		return false
	}
	return compareIDs(id, lastID) > 0
}

func compareIDs(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) != len(b) {
		if len(a) > len(b) {
			return 1
		}
		return -1
	}
	if a > b {
		return 1
	}
	return -1
}

// Publish implements PubSub.
func (q *MemoryQueue) Publish(_ context.Context, channel string, payload []byte) error {
	q.subMu.Lock()
	defer q.subMu.Unlock()
	for _, ch := range q.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe implements PubSub.
func (q *MemoryQueue) Subscribe(_ context.Context, channel string) (<-chan []byte, func() error, error) {
	ch := make(chan []byte, 64)
	q.subMu.Lock()
	q.subs[channel] = append(q.subs[channel], ch)
	q.subMu.Unlock()

	unsub := func() error {
		q.subMu.Lock()
		defer q.subMu.Unlock()
		peers := q.subs[channel]
		for i, c := range peers {
			if c == ch {
				q.subs[channel] = append(peers[:i], peers[i+1:]...)
				close(ch)
				break
			}
		}
		return nil
	}
	return ch, unsub, nil
}

// Close implements Streams.
func (q *MemoryQueue) Close() error { return nil }
