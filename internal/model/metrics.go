package model

import "time"

// ExecutionMetrics accumulates per-executor execution outcomes. Counters
// only ever increase; they are mutated exclusively by the end-of-execution
// path in the governor.
type ExecutionMetrics struct {
	ExecutorID           string        `json:"executor_id"`
	TotalExecutions      int64         `json:"total_executions"`
	SuccessfulExecutions int64         `json:"successful_executions"`
	FailedExecutions     int64         `json:"failed_executions"`
	CumulativeDuration   time.Duration `json:"cumulative_duration"`
	CumulativeMemoryMB   float64       `json:"cumulative_memory_mb"`
	LastExecutionAt      time.Time     `json:"last_execution_at"`
}

// AverageDuration returns the mean execution duration, or zero before the
// first recorded execution.
func (m ExecutionMetrics) AverageDuration() time.Duration {
	if m.TotalExecutions == 0 {
		return 0
	}
	return m.CumulativeDuration / time.Duration(m.TotalExecutions)
}

// GovernorStatus is a JSON-serializable snapshot of the governor for
// dashboards and logs.
type GovernorStatus struct {
	PressureLevel       PressureLevel          `json:"pressure_level"`
	Snapshot            ResourceSnapshot       `json:"snapshot"`
	ActiveExecutors     []string               `json:"active_executors"`
	CircuitBreakersOpen []string               `json:"circuit_breakers_open"`
	Degradation         DegradationConfig      `json:"degradation"`
	Breakers            []CircuitBreakerStatus `json:"breakers"`
	CollectedAt         time.Time              `json:"collected_at"`
}
