package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/resource-governor/internal/model"
)

// fakeChannel collects every alert it is asked to send.
type fakeChannel struct {
	mu      sync.Mutex
	sent    []model.Alert
	sendErr error
}

func (c *fakeChannel) Send(alert *model.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, *alert)
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func pressureEvent(level model.PressureLevel) model.PressureEvent {
	return model.PressureEvent{
		Timestamp:     time.Now(),
		PressureLevel: level,
		CPUPercent:    80,
		MemoryPercent: 70,
	}
}

func TestAlertManager_PressureSeverity(t *testing.T) {
	tests := []struct {
		level    model.PressureLevel
		severity model.AlertSeverity
		alerts   int
	}{
		{model.PressureNormal, "", 0},
		{model.PressureElevated, "", 0},
		{model.PressureHigh, model.AlertSeverityWarning, 1},
		{model.PressureCritical, model.AlertSeverityError, 1},
		{model.PressureEmergency, model.AlertSeverityError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			manager := NewAlertManager(AlertManagerConfig{Cooldown: time.Minute}, zaptest.NewLogger(t))

			dispatched := manager.ProcessEvent(pressureEvent(tt.level))
			require.Len(t, dispatched, tt.alerts)
			if tt.alerts > 0 {
				assert.Equal(t, model.AlertKindPressure, dispatched[0].Kind)
				assert.Equal(t, tt.severity, dispatched[0].Severity)
				assert.NotEmpty(t, dispatched[0].ID)
			}
		})
	}
}

func TestAlertManager_MemoryCeiling(t *testing.T) {
	manager := NewAlertManager(AlertManagerConfig{
		Cooldown:        time.Minute,
		MemoryCeilingMB: 1024,
	}, zaptest.NewLogger(t))

	// Ceiling breach alerts even while the pressure bands stay quiet
	event := pressureEvent(model.PressureNormal)
	event.MemoryMB = 2048

	dispatched := manager.ProcessEvent(event)
	require.Len(t, dispatched, 1)
	assert.Equal(t, model.AlertKindMemoryCeiling, dispatched[0].Kind)
	assert.Equal(t, model.AlertSeverityWarning, dispatched[0].Severity)

	// Below the ceiling, nothing fires
	event.MemoryMB = 512
	assert.Empty(t, manager.ProcessEvent(event))
}

func TestAlertManager_OpenBreakers(t *testing.T) {
	manager := NewAlertManager(AlertManagerConfig{Cooldown: time.Minute}, zaptest.NewLogger(t))

	event := pressureEvent(model.PressureNormal)
	event.CircuitBreakersOpen = []string{"entity-extractor", "pattern-matcher"}

	dispatched := manager.ProcessEvent(event)
	require.Len(t, dispatched, 1)
	assert.Equal(t, model.AlertKindCircuitBreaker, dispatched[0].Kind)
	assert.Equal(t, model.AlertSeverityWarning, dispatched[0].Severity)
	assert.Contains(t, dispatched[0].Message, "entity-extractor")
	assert.Contains(t, dispatched[0].Message, "pattern-matcher")
}

func TestAlertManager_CooldownSuppressesRepeats(t *testing.T) {
	manager := NewAlertManager(AlertManagerConfig{Cooldown: time.Minute}, zaptest.NewLogger(t))

	event := pressureEvent(model.PressureCritical)
	require.Len(t, manager.ProcessEvent(event), 1)

	// Same level inside the cooldown window is suppressed
	assert.Empty(t, manager.ProcessEvent(event))

	// A different level carries a different dedupe key
	require.Len(t, manager.ProcessEvent(pressureEvent(model.PressureEmergency)), 1)
}

func TestAlertManager_CooldownExpires(t *testing.T) {
	manager := NewAlertManager(AlertManagerConfig{Cooldown: 20 * time.Millisecond}, zaptest.NewLogger(t))

	event := pressureEvent(model.PressureHigh)
	require.Len(t, manager.ProcessEvent(event), 1)
	require.Empty(t, manager.ProcessEvent(event))

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, manager.ProcessEvent(event), 1)
}

func TestAlertManager_ChannelDispatch(t *testing.T) {
	manager := NewAlertManager(AlertManagerConfig{Cooldown: time.Minute}, zaptest.NewLogger(t))

	healthy := &fakeChannel{}
	broken := &fakeChannel{sendErr: errors.New("sink unavailable")}
	manager.RegisterChannel("healthy", healthy)
	manager.RegisterChannel("broken", broken)

	// A failing channel never blocks delivery to the others
	manager.ProcessEvent(pressureEvent(model.PressureCritical))
	assert.Equal(t, 1, healthy.count())
}

func TestAlertManager_Summary(t *testing.T) {
	manager := NewAlertManager(AlertManagerConfig{Cooldown: time.Millisecond}, zaptest.NewLogger(t))

	manager.ProcessEvent(pressureEvent(model.PressureHigh))
	time.Sleep(2 * time.Millisecond)
	manager.ProcessEvent(pressureEvent(model.PressureCritical))
	time.Sleep(2 * time.Millisecond)
	manager.ProcessEvent(pressureEvent(model.PressureCritical))

	summary := manager.Summary()
	assert.Equal(t, 1, summary.LastHour[model.AlertSeverityWarning])
	assert.Equal(t, 2, summary.LastHour[model.AlertSeverityError])
	assert.Equal(t, 1, summary.Last24Hours[model.AlertSeverityWarning])
	assert.Equal(t, 2, summary.Last24Hours[model.AlertSeverityError])
	assert.Equal(t, 1, summary.AllTime[model.AlertSeverityWarning])
	assert.Equal(t, 2, summary.AllTime[model.AlertSeverityError])
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestAlertManager_HandlePressureEvent(t *testing.T) {
	manager := NewAlertManager(AlertManagerConfig{Cooldown: time.Minute}, zaptest.NewLogger(t))
	channel := &fakeChannel{}
	manager.RegisterChannel("fake", channel)

	manager.HandlePressureEvent(pressureEvent(model.PressureEmergency))
	assert.Equal(t, 1, channel.count())
}
