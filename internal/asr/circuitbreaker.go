package asr

import (
	"sync"
	"time"
)

// CircuitState is the operating mode of a CircuitBreaker.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// CircuitBreaker tracks consecutive failures for one ASR engine. After
// FailureThreshold consecutive failures the breaker opens for
// RecoveryTimeout, then transitions to half-open to probe recovery: a
// single success closes it, a single failure re-opens it immediately. This
// mirrors the Python ASRCircuitBreaker exactly rather than the multi-probe
// breaker used elsewhere in the corpus.
type CircuitBreaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
}

// NewCircuitBreaker creates a CircuitBreaker. failureThreshold <= 0 defaults
// to 3; recoveryTimeout <= 0 defaults to 60s.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            StateClosed,
	}
}

// State returns the current state. Reading may transition Open to HalfOpen
// once the recovery timeout has elapsed, matching the Python property's
// read-triggers-transition behavior.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.recoveryTimeout {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// FailureCount returns the number of consecutive failures recorded.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// IsAvailable reports whether the breaker currently allows requests through.
func (cb *CircuitBreaker) IsAvailable() bool {
	return cb.State() != StateOpen
}

// RecordSuccess resets the failure counter and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure increments the failure counter, opening the circuit once
// failureThreshold consecutive failures have been recorded. A failure while
// half-open re-opens the circuit immediately regardless of the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// Reset forces the breaker back to closed with zero failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = StateClosed
	cb.lastFailure = time.Time{}
}
