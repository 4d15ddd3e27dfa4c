package model

import (
	"encoding/json"
	"fmt"
)

// Priority represents the scheduling priority of an executor. Higher values
// are compared with >= when deciding how much an allocation may shrink.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParsePriority parses a priority name as used in configuration.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityNormal, fmt.Errorf("invalid priority: %q", s)
	}
}

// MarshalJSON renders the priority as its name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a priority name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	priority, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = priority
	return nil
}

// AllocationPolicy defines the static resource bounds for one executor.
// Bounds are independent of momentary pressure; the governor scales the
// granted allocation between min and max as pressure rises.
type AllocationPolicy struct {
	ExecutorID  string   `json:"executor_id"`
	Priority    Priority `json:"priority"`
	MinMemoryMB float64  `json:"min_memory_mb"`
	MaxMemoryMB float64  `json:"max_memory_mb"`
	MinWorkers  int      `json:"min_workers"`
	MaxWorkers  int      `json:"max_workers"`
}

// ResourceAllocation is the budget granted to one executor invocation.
type ResourceAllocation struct {
	ExecutorID    string        `json:"executor_id"`
	Priority      Priority      `json:"priority"`
	MaxMemoryMB   float64       `json:"max_memory_mb"`
	MaxWorkers    int           `json:"max_workers"`
	PressureLevel PressureLevel `json:"pressure_level"`
}
