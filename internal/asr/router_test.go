package asr

import (
	"context"
	"testing"
	"time"
)

func TestRouter_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := &mockEngine{name: "deepgram"}
	fallback := &mockEngine{name: "whisper"}
	r := NewRouter(primary, fallback, RouterConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute}, nil)

	handle, err := r.StartStream(context.Background(), StreamConfig{StreamID: "s1"})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer handle.Close()

	if primary.started != 1 || fallback.started != 0 {
		t.Errorf("primary started=%d fallback started=%d, want 1/0", primary.started, fallback.started)
	}
}

func TestRouter_FailsOverAfterThreshold(t *testing.T) {
	primary := &mockEngine{name: "deepgram", failAlways: true}
	fallback := &mockEngine{name: "whisper"}
	r := NewRouter(primary, fallback, RouterConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute}, nil)

	var lastErr error
	var handle SessionHandle
	for i := 0; i < 3; i++ {
		h, err := r.StartStream(context.Background(), StreamConfig{StreamID: "s1"})
		lastErr = err
		handle = h
	}
	if lastErr != nil {
		t.Fatalf("expected fallback success on 3rd attempt, got: %v", lastErr)
	}
	defer handle.Close()

	if r.Breaker().State() != StateOpen {
		t.Errorf("breaker state = %v, want open", r.Breaker().State())
	}
	// Every failed primary attempt is routed to the fallback, so all three
	// calls land there.
	if fallback.started != 3 {
		t.Errorf("fallback.started = %d, want 3", fallback.started)
	}
}

func TestRouter_NoFallbackReturnsErrCircuitOpen(t *testing.T) {
	primary := &mockEngine{name: "deepgram", failAlways: true}
	r := NewRouter(primary, nil, RouterConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}, nil)

	_, err := r.StartStream(context.Background(), StreamConfig{StreamID: "s1"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRouter_RecoversAfterTimeout(t *testing.T) {
	primary := &mockEngine{name: "deepgram", failNext: 1}
	fallback := &mockEngine{name: "whisper"}
	r := NewRouter(primary, fallback, RouterConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond}, nil)

	// First call fails, opens circuit, falls over to whisper.
	h1, err := r.StartStream(context.Background(), StreamConfig{StreamID: "s1"})
	if err != nil {
		t.Fatalf("StartStream (failover): %v", err)
	}
	h1.Close()
	if r.Breaker().State() != StateOpen {
		t.Fatalf("breaker state = %v, want open", r.Breaker().State())
	}

	time.Sleep(20 * time.Millisecond)

	if r.Breaker().State() != StateHalfOpen {
		t.Fatalf("breaker state after timeout = %v, want half-open", r.Breaker().State())
	}

	// Next call should probe the primary again, which now succeeds.
	h2, err := r.StartStream(context.Background(), StreamConfig{StreamID: "s1"})
	if err != nil {
		t.Fatalf("StartStream (probe): %v", err)
	}
	defer h2.Close()

	if r.Breaker().State() != StateClosed {
		t.Errorf("breaker state after probe success = %v, want closed", r.Breaker().State())
	}
	if primary.started != 2 {
		t.Errorf("primary.started = %d, want 2", primary.started)
	}
}
