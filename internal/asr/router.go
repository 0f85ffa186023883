package asr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxsentinel/voxsentinel/internal/observe"
)

// ErrCircuitOpen is returned when the primary's circuit is open and no
// fallback engine is configured.
var ErrCircuitOpen = errors.New("asr: circuit open and no fallback configured")

// Router is C4: it routes StartStream calls to the primary engine while its
// circuit breaker is closed, and transparently fails over to the fallback
// engine on every primary failure. Once the primary has accumulated
// FailureThreshold consecutive failures the breaker opens and the primary
// is skipped entirely until the recovery timeout elapses. This is ported
// from the teacher's STTFallback/FallbackGroup,
// generalized so transition logging matches
// asr_primary_failure/asr_failover_activated exactly.
type Router struct {
	primary  Engine
	fallback Engine
	breaker  *CircuitBreaker
	metrics  *observe.Metrics

	mu            sync.Mutex
	usingFallback bool
}

// RouterConfig configures a Router's circuit breaker.
type RouterConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// NewRouter creates a Router for primary, with an optional fallback (nil if
// none is configured).
func NewRouter(primary, fallback Engine, cfg RouterConfig, metrics *observe.Metrics) *Router {
	return &Router{
		primary:  primary,
		fallback: fallback,
		breaker:  NewCircuitBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout),
		metrics:  metrics,
	}
}

// Breaker exposes the primary's circuit breaker for health checks.
func (r *Router) Breaker() *CircuitBreaker { return r.breaker }

// ActiveEngine returns the engine currently handling new sessions.
func (r *Router) ActiveEngine() Engine {
	if !r.breaker.IsAvailable() && r.fallback != nil {
		return r.fallback
	}
	return r.primary
}

// StartStream opens a session against the primary engine while its circuit
// is closed. On failure it records the failure and, if a fallback is
// configured, opens the session there instead. If the primary's circuit is
// already open, the fallback is used directly without retrying the primary.
func (r *Router) StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error) {
	log := slog.With("component", "asr_router", "stream_id", cfg.StreamID)

	if r.breaker.IsAvailable() {
		handle, err := r.primary.StartStream(ctx, cfg)
		if err == nil {
			r.breaker.RecordSuccess()
			r.setUsingFallback(false)
			if r.metrics != nil {
				r.metrics.RecordProviderRequest(ctx, r.primary.Name(), "asr", "ok")
			}
			return handle, nil
		}
		r.breaker.RecordFailure()
		if r.metrics != nil {
			r.metrics.RecordProviderError(ctx, r.primary.Name(), "asr")
		}
		log.Warn("asr_primary_failure",
			"engine", r.primary.Name(),
			"failure_count", r.breaker.FailureCount(),
			"error", err,
		)
	}

	if r.fallback == nil {
		return nil, fmt.Errorf("%w: engine %q", ErrCircuitOpen, r.primary.Name())
	}

	if !r.markFallbackActivated() {
		log.Warn("asr_failover_activated",
			"primary", r.primary.Name(),
			"fallback", r.fallback.Name(),
			"breaker_state", string(r.breaker.State()),
		)
		if r.metrics != nil {
			r.metrics.RecordASRFailover(ctx, cfg.StreamID)
		}
	}

	handle, err := r.fallback.StartStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("asr: fallback %q: %w", r.fallback.Name(), err)
	}
	if r.metrics != nil {
		r.metrics.RecordProviderRequest(ctx, r.fallback.Name(), "asr", "ok")
	}
	return handle, nil
}

// setUsingFallback updates the once-per-transition flag.
func (r *Router) setUsingFallback(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usingFallback = v
}

// markFallbackActivated sets usingFallback to true and returns whether it
// was already true, so the caller only logs on the first transition into
// fallback mode.
func (r *Router) markFallbackActivated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	was := r.usingFallback
	r.usingFallback = true
	return was
}
