package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen fails calls fast until the cool-down ends.
	CircuitOpen
	// CircuitHalfOpen lets a single probe call through.
	CircuitHalfOpen
)

// String returns a human-readable string for the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive connectivity failures before the circuit trips.
	Threshold int
	// ResetAfter is how long the circuit stays open before a probe is allowed.
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig trips after 3 unreachable calls and probes
// again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  3,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker stops a dead model endpoint from costing a full request
// timeout on every attempt of the generation loop.
type CircuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Threshold < 1 {
		config.Threshold = 1
	}
	return &CircuitBreaker{
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
		now:        time.Now,
	}
}

// Allow reports whether a call may proceed. The first call after the
// cool-down moves the circuit to half-open and is let through as a probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		since := cb.now().Sub(cb.lastFailure)
		if since > cb.resetAfter {
			cb.state = CircuitHalfOpen
			return nil
		}
		return NewError(ErrorTypeConnection,
			fmt.Sprintf("circuit open: model endpoint unreachable %d times, last failure %v ago",
				cb.consecutiveFails, since.Round(time.Second)), false, nil)
	case CircuitHalfOpen:
		return NewError(ErrorTypeConnection, "circuit half-open: probing model endpoint", false, nil)
	default:
		return fmt.Errorf("circuit breaker in unknown state: %v", cb.state)
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// RecordFailure counts a connectivity failure and trips the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	if cb.state == CircuitHalfOpen || cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current count of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}

// BreakerClient guards a Client with a CircuitBreaker. Only connectivity
// failures and timeouts count against the circuit; a model that answers
// badly is still reachable.
type BreakerClient struct {
	inner   Client
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerClient wraps inner.
func NewBreakerClient(inner Client, breaker *CircuitBreaker, logger *zap.Logger) *BreakerClient {
	return &BreakerClient{inner: inner, breaker: breaker, logger: logger.Named("llm.breaker")}
}

// Generate implements Client.
func (c *BreakerClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := c.breaker.Allow(); err != nil {
		var llmErr *Error
		if e, ok := err.(*Error); ok {
			llmErr = e.withContext(c.inner.GetModel(), c.inner.GetEndpoint())
		} else {
			llmErr = ClassifyError(err)
		}
		c.logger.Warn("Model call rejected by circuit breaker", requestIDField(ctx), zap.Error(llmErr))
		return nil, llmErr
	}

	resp, err := c.inner.Generate(ctx, req)
	if err == nil {
		c.breaker.RecordSuccess()
		return resp, nil
	}

	switch GetErrorType(err) {
	case ErrorTypeConnection, ErrorTypeTimeout:
		c.breaker.RecordFailure()
		if c.breaker.State() == CircuitOpen {
			c.logger.Warn("Circuit breaker open",
				zap.String("model", c.inner.GetModel()),
				zap.Int("consecutive_failures", c.breaker.ConsecutiveFailures()))
		}
	default:
		c.breaker.RecordSuccess()
	}
	return nil, err
}

// GetModel implements Client.
func (c *BreakerClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint implements Client.
func (c *BreakerClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}

var _ Client = (*BreakerClient)(nil)
