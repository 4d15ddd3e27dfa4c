package model

import "time"

// CircuitState represents the current state of a circuit breaker
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig defines the thresholds for a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from closed to open. Must be >= 1.
	FailureThreshold int `json:"failure_threshold"`

	// SuccessThreshold is the number of consecutive successes required to
	// close a half-open breaker. Must be >= 1.
	SuccessThreshold int `json:"success_threshold"`

	// Timeout is how long an open breaker waits before allowing a probe.
	// Must be > 0.
	Timeout time.Duration `json:"timeout"`

	// MemoryThresholdMB trips the breaker immediately when a single
	// execution reports at least this much memory. Zero disables the check.
	MemoryThresholdMB float64 `json:"memory_threshold_mb,omitempty"`

	// HalfOpenFailureTolerance is the number of failures a half-open
	// breaker absorbs before re-opening. The default of zero re-opens on
	// the first failure.
	HalfOpenFailureTolerance int `json:"half_open_failure_tolerance,omitempty"`
}

// CircuitBreakerStatus is a read-only view of one breaker, for status reads.
type CircuitBreakerStatus struct {
	ExecutorID      string       `json:"executor_id"`
	State           CircuitState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	LastStateChange time.Time    `json:"last_state_change"`
}
