// Package circuitbreaker protects upstream calls by opening after repeated
// failures and allowing probe requests in half-open state.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned when the circuit is open and the cooldown has not
// elapsed. Callers treat it like any other upstream failure.
var ErrOpen = errors.New("circuit breaker open")

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	OnStateChange    func(from, to State) // optional, for metrics
}

// CircuitBreaker tracks consecutive failures of one upstream component.
type CircuitBreaker struct {
	mu              sync.RWMutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	cfg             Config
}

// New creates a CircuitBreaker with the given config, applying defaults for
// unset thresholds.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state: StateClosed,
		cfg:   cfg,
	}
}

// Call runs fn when the circuit allows it. When open, returns ErrOpen unless
// the cooldown has elapsed (then transitions to half-open and probes).
// Failures and successes move the circuit between states.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	state := cb.state
	if state == StateOpen {
		if time.Since(cb.lastFailureTime) < cb.cfg.Timeout {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrOpen, cb.cfg.Component)
		}
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.mu.Unlock()
		cb.notify(StateOpen, StateHalfOpen)
	} else {
		cb.mu.Unlock()
	}

	err := fn()

	cb.mu.Lock()
	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = time.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.cfg.FailureThreshold {
			from := cb.state
			cb.state = StateOpen
			cb.failureCount = 0
			cb.mu.Unlock()
			cb.notify(from, StateOpen)
			return err
		}
		cb.mu.Unlock()
		return err
	}

	cb.successCount++
	cb.failureCount = 0
	if cb.state == StateHalfOpen && cb.successCount >= cb.cfg.SuccessThreshold {
		from := cb.state
		cb.state = StateClosed
		cb.successCount = 0
		cb.mu.Unlock()
		cb.notify(from, StateClosed)
		return nil
	}
	cb.mu.Unlock()
	return nil
}

// State returns the current state (for metrics).
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
