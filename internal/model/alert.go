package model

import "time"

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertKind represents the condition that produced an alert
type AlertKind string

const (
	AlertKindPressure       AlertKind = "resource_pressure"
	AlertKindMemoryCeiling  AlertKind = "memory_ceiling"
	AlertKindCircuitBreaker AlertKind = "circuit_breaker_open"
)

// Alert represents a single dispatched alert.
type Alert struct {
	ID        string        `json:"id"`
	Kind      AlertKind     `json:"kind"`
	Severity  AlertSeverity `json:"severity"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	DedupeKey string        `json:"dedupe_key"`
	CreatedAt time.Time     `json:"created_at"`
}

// AlertSummary reports alert counts by severity over rolling windows.
type AlertSummary struct {
	LastHour    map[AlertSeverity]int `json:"last_hour"`
	Last24Hours map[AlertSeverity]int `json:"last_24_hours"`
	AllTime     map[AlertSeverity]int `json:"all_time"`
	GeneratedAt time.Time             `json:"generated_at"`
}
