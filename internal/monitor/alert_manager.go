package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// NotificationChannel represents a channel for sending alert notifications
type NotificationChannel interface {
	Send(alert *model.Alert) error
}

// AlertManagerConfig defines alerting thresholds and suppression.
type AlertManagerConfig struct {
	// Cooldown suppresses repeat alerts with the same dedupe key.
	Cooldown time.Duration

	// MemoryCeilingMB is a hard ceiling on process memory. A breach
	// produces at least a warning regardless of the pressure band.
	// Zero disables the check.
	MemoryCeilingMB float64
}

// AlertManager turns governor pressure events into deduplicated alerts and
// dispatches them to the registered notification channels.
type AlertManager struct {
	logger   *zap.Logger
	config   AlertManagerConfig
	channels map[string]NotificationChannel

	mu       sync.Mutex
	lastSent map[string]time.Time
	recent   []model.Alert
	allTime  map[model.AlertSeverity]int
}

// NewAlertManager creates a new alert manager
func NewAlertManager(config AlertManagerConfig, logger *zap.Logger) *AlertManager {
	return &AlertManager{
		logger:   logger.Named("alert-manager"),
		config:   config,
		channels: make(map[string]NotificationChannel),
		lastSent: make(map[string]time.Time),
		allTime:  make(map[model.AlertSeverity]int),
	}
}

// RegisterChannel registers a notification channel under a name. Channels
// are pluggable external sinks; delivery failures are logged, never fatal.
func (m *AlertManager) RegisterChannel(name string, channel NotificationChannel) {
	m.channels[name] = channel
}

// HandlePressureEvent implements the governor's event handler interface.
func (m *AlertManager) HandlePressureEvent(event model.PressureEvent) {
	m.ProcessEvent(event)
}

// ProcessEvent evaluates one pressure event and returns the alerts that
// were dispatched after cooldown suppression.
func (m *AlertManager) ProcessEvent(event model.PressureEvent) []model.Alert {
	var candidates []model.Alert

	if severity, ok := pressureSeverity(event.PressureLevel); ok {
		candidates = append(candidates, model.Alert{
			Kind:     model.AlertKindPressure,
			Severity: severity,
			Title:    fmt.Sprintf("Resource pressure %s", event.PressureLevel),
			Message: fmt.Sprintf("pressure %s: cpu %.1f%%, memory %.1f%%, %d active executors",
				event.PressureLevel, event.CPUPercent, event.MemoryPercent, len(event.ActiveExecutors)),
			DedupeKey: "pressure:" + event.PressureLevel.String(),
		})
	}

	if m.config.MemoryCeilingMB > 0 && event.MemoryMB >= m.config.MemoryCeilingMB {
		candidates = append(candidates, model.Alert{
			Kind:     model.AlertKindMemoryCeiling,
			Severity: model.AlertSeverityWarning,
			Title:    "Memory ceiling breached",
			Message: fmt.Sprintf("process memory %.1f MB exceeds ceiling %.1f MB",
				event.MemoryMB, m.config.MemoryCeilingMB),
			DedupeKey: "memory_ceiling",
		})
	}

	if len(event.CircuitBreakersOpen) > 0 {
		candidates = append(candidates, model.Alert{
			Kind:     model.AlertKindCircuitBreaker,
			Severity: model.AlertSeverityWarning,
			Title:    fmt.Sprintf("%d circuit breaker(s) open", len(event.CircuitBreakersOpen)),
			Message: fmt.Sprintf("executors isolated: %s",
				strings.Join(event.CircuitBreakersOpen, ", ")),
			DedupeKey: "breakers:" + strings.Join(event.CircuitBreakersOpen, ","),
		})
	}

	now := time.Now()
	var dispatched []model.Alert

	m.mu.Lock()
	for _, alert := range candidates {
		if last, ok := m.lastSent[alert.DedupeKey]; ok && now.Sub(last) < m.config.Cooldown {
			m.logger.Debug("Alert suppressed by cooldown",
				zap.String("dedupe_key", alert.DedupeKey))
			continue
		}
		m.lastSent[alert.DedupeKey] = now

		alert.ID = uuid.New().String()
		alert.CreatedAt = now
		m.recent = append(m.recent, alert)
		m.allTime[alert.Severity]++
		dispatched = append(dispatched, alert)
	}
	m.pruneLocked(now)
	m.mu.Unlock()

	for i := range dispatched {
		m.dispatch(&dispatched[i])
	}

	return dispatched
}

// Summary returns alert counts by severity over rolling windows.
func (m *AlertManager) Summary() model.AlertSummary {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(now)

	summary := model.AlertSummary{
		LastHour:    make(map[model.AlertSeverity]int),
		Last24Hours: make(map[model.AlertSeverity]int),
		AllTime:     make(map[model.AlertSeverity]int),
		GeneratedAt: now,
	}
	for severity, count := range m.allTime {
		summary.AllTime[severity] = count
	}
	for _, alert := range m.recent {
		summary.Last24Hours[alert.Severity]++
		if now.Sub(alert.CreatedAt) <= time.Hour {
			summary.LastHour[alert.Severity]++
		}
	}
	return summary
}

// dispatch delivers one alert to every registered channel.
func (m *AlertManager) dispatch(alert *model.Alert) {
	for name, channel := range m.channels {
		if err := channel.Send(alert); err != nil {
			m.logger.Error("Failed to send alert",
				zap.String("channel", name),
				zap.String("alert_id", alert.ID),
				zap.Error(err))
		}
	}

	m.logger.Info("Alert dispatched",
		zap.String("id", alert.ID),
		zap.String("kind", string(alert.Kind)),
		zap.String("severity", string(alert.Severity)),
		zap.String("title", alert.Title))
}

// pruneLocked drops alerts outside the 24h rolling window. All-time counts
// are kept separately and never decrease. Callers hold the lock.
func (m *AlertManager) pruneLocked(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	kept := m.recent[:0]
	for _, alert := range m.recent {
		if alert.CreatedAt.After(cutoff) {
			kept = append(kept, alert)
		}
	}
	m.recent = kept
}

// pressureSeverity maps pressure levels to alert severities. Levels below
// high produce no alert.
func pressureSeverity(level model.PressureLevel) (model.AlertSeverity, bool) {
	switch {
	case level >= model.PressureCritical:
		return model.AlertSeverityError, true
	case level >= model.PressureHigh:
		return model.AlertSeverityWarning, true
	default:
		return "", false
	}
}
