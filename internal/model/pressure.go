package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// PressureLevel represents the discretized system load classification.
// Levels are ordered; every threshold decision in the governor compares
// levels with >= rather than by name.
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureElevated
	PressureHigh
	PressureCritical
	PressureEmergency
)

// String returns the human-readable pressure level name.
func (p PressureLevel) String() string {
	switch p {
	case PressureNormal:
		return "normal"
	case PressureElevated:
		return "elevated"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	case PressureEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ParsePressureLevel parses a pressure level name as used in configuration.
func ParsePressureLevel(s string) (PressureLevel, error) {
	switch s {
	case "normal":
		return PressureNormal, nil
	case "elevated":
		return PressureElevated, nil
	case "high":
		return PressureHigh, nil
	case "critical":
		return PressureCritical, nil
	case "emergency":
		return PressureEmergency, nil
	default:
		return PressureNormal, fmt.Errorf("invalid pressure level: %q", s)
	}
}

// MarshalJSON renders the level as its name so status snapshots stay readable.
func (p PressureLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a pressure level name.
func (p *PressureLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, err := ParsePressureLevel(s)
	if err != nil {
		return err
	}
	*p = level
	return nil
}

// ResourceSnapshot is a point-in-time view of system resource usage.
type ResourceSnapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	RSSMB         float64   `json:"rss_mb"`
	WorkerBudget  int       `json:"worker_budget"`
	CollectedAt   time.Time `json:"collected_at"`
}
