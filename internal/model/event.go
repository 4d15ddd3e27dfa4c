package model

import "time"

// PressureEvent is emitted by the governor when the pressure level changes
// or a circuit breaker opens. Events are ephemeral: they are handed to
// subscribers and never stored by the governor itself.
type PressureEvent struct {
	Timestamp           time.Time     `json:"timestamp"`
	PressureLevel       PressureLevel `json:"pressure_level"`
	CPUPercent          float64       `json:"cpu_percent"`
	MemoryMB            float64       `json:"memory_mb"`
	MemoryPercent       float64       `json:"memory_percent"`
	WorkerCount         int           `json:"worker_count"`
	ActiveExecutors     []string      `json:"active_executors,omitempty"`
	DegradationApplied  []string      `json:"degradation_applied,omitempty"`
	CircuitBreakersOpen []string      `json:"circuit_breakers_open,omitempty"`
	Message             string        `json:"message"`
}
