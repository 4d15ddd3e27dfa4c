package governor

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// ValidateBreakerConfig checks breaker thresholds at registration time.
func ValidateBreakerConfig(config model.CircuitBreakerConfig) error {
	if config.FailureThreshold < 1 {
		return fmt.Errorf("%w: failure_threshold must be >= 1, got %d", ErrInvalidBreakerConfig, config.FailureThreshold)
	}
	if config.SuccessThreshold < 1 {
		return fmt.Errorf("%w: success_threshold must be >= 1, got %d", ErrInvalidBreakerConfig, config.SuccessThreshold)
	}
	if config.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidBreakerConfig, config.Timeout)
	}
	if config.HalfOpenFailureTolerance < 0 {
		return fmt.Errorf("%w: half_open_failure_tolerance must be >= 0, got %d", ErrInvalidBreakerConfig, config.HalfOpenFailureTolerance)
	}
	return nil
}

// CircuitBreaker isolates one executor after repeated failures or memory
// over-consumption. State changes happen only through RecordSuccess,
// RecordFailure and the lazy timeout check inside Allow; there is no
// background timer, so an open breaker left alone stays open.
type CircuitBreaker struct {
	logger *zap.Logger
	config model.CircuitBreakerConfig

	mu               sync.Mutex
	executorID       string
	state            model.CircuitState
	failureCount     int
	successCount     int
	halfOpenFailures int
	lastStateChange  time.Time
}

// NewCircuitBreaker creates a closed breaker for one executor. The config
// must have been validated.
func NewCircuitBreaker(executorID string, config model.CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		logger:          logger.Named("breaker"),
		config:          config,
		executorID:      executorID,
		state:           model.CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// Allow reports whether a call may proceed. An open breaker whose timeout
// has elapsed transitions to half-open here and admits the probe.
func (b *CircuitBreaker) Allow() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case model.CircuitOpen:
		if time.Since(b.lastStateChange) >= b.config.Timeout {
			b.transition(model.CircuitHalfOpen)
			return true, "circuit half-open, probing"
		}
		remaining := b.config.Timeout - time.Since(b.lastStateChange)
		return false, fmt.Sprintf("circuit open, retry in %s", remaining.Round(time.Millisecond))
	case model.CircuitHalfOpen:
		return true, "circuit half-open, probing"
	default:
		return true, ""
	}
}

// RecordSuccess records a successful execution. In the closed state it
// clears the failure streak; in half-open it counts toward closing.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case model.CircuitClosed:
		b.failureCount = 0
	case model.CircuitHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.transition(model.CircuitClosed)
		}
	}
}

// RecordFailure records a failed execution. memoryMB is the peak memory the
// execution reported; crossing the configured memory threshold opens the
// breaker immediately regardless of the failure streak.
func (b *CircuitBreaker) RecordFailure(memoryMB float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.MemoryThresholdMB > 0 && memoryMB >= b.config.MemoryThresholdMB {
		b.failureCount++
		if b.state != model.CircuitOpen {
			b.logger.Warn("Memory threshold breached",
				zap.String("executor_id", b.executorID),
				zap.Float64("memory_mb", memoryMB),
				zap.Float64("threshold_mb", b.config.MemoryThresholdMB))
			b.transition(model.CircuitOpen)
		}
		return
	}

	switch b.state {
	case model.CircuitClosed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			b.transition(model.CircuitOpen)
		}
	case model.CircuitHalfOpen:
		b.successCount = 0
		b.halfOpenFailures++
		if b.halfOpenFailures > b.config.HalfOpenFailureTolerance {
			b.transition(model.CircuitOpen)
		}
	case model.CircuitOpen:
		// Late result from an execution admitted before the trip.
		b.failureCount++
	}
}

// Reset forces the breaker closed and zeroes both counters, regardless of
// prior state. Execution metrics are untouched; those live in the governor.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != model.CircuitClosed {
		b.transition(model.CircuitClosed)
		return
	}
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenFailures = 0
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() model.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a read-only view for status reporting.
func (b *CircuitBreaker) Status() model.CircuitBreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.CircuitBreakerStatus{
		ExecutorID:      b.executorID,
		State:           b.state,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastStateChange: b.lastStateChange,
	}
}

// transition moves the breaker to a new state. Callers hold the lock.
func (b *CircuitBreaker) transition(state model.CircuitState) {
	from := b.state
	b.state = state
	b.lastStateChange = time.Now()

	switch state {
	case model.CircuitClosed:
		b.failureCount = 0
		b.successCount = 0
		b.halfOpenFailures = 0
	case model.CircuitHalfOpen:
		b.successCount = 0
		b.halfOpenFailures = 0
	}

	b.logger.Info("Circuit breaker state changed",
		zap.String("executor_id", b.executorID),
		zap.String("from", string(from)),
		zap.String("to", string(state)))
}
