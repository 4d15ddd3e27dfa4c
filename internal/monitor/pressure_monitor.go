package monitor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// PressureAssessor is the slice of the governor the monitor drives.
type PressureAssessor interface {
	AssessPressure() model.PressureLevel
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// PressureMonitor periodically refreshes the governor's cached pressure.
// Lifecycle calls never sample telemetry themselves; this loop is the only
// driver, so readers see a value at most one interval stale.
type PressureMonitor struct {
	logger   *zap.Logger
	assessor PressureAssessor
	interval string
	cron     *cron.Cron
}

// NewPressureMonitor creates a monitor that assesses pressure at the given
// interval, e.g. "10s".
func NewPressureMonitor(assessor PressureAssessor, interval string, logger *zap.Logger) *PressureMonitor {
	cronLogger := &cronLogger{logger: logger.Named("cron")}
	cronOptions := []cron.Option{
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger)),
	}

	return &PressureMonitor{
		logger:   logger.Named("pressure-monitor"),
		assessor: assessor,
		interval: interval,
		cron:     cron.New(cronOptions...),
	}
}

// Start starts the assessment loop. An initial assessment runs immediately
// so the cached pressure is populated before the first tick.
func (m *PressureMonitor) Start(ctx context.Context) error {
	level := m.assessor.AssessPressure()
	m.logger.Info("Initial pressure assessment",
		zap.String("pressure_level", level.String()))

	if _, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.interval), func() {
		m.assessor.AssessPressure()
	}); err != nil {
		return fmt.Errorf("failed to schedule pressure assessment: %w", err)
	}

	m.cron.Start()
	m.logger.Info("Pressure monitor started", zap.String("interval", m.interval))
	return nil
}

// Stop stops the assessment loop and waits for an in-flight run.
func (m *PressureMonitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("Pressure monitor stopped")
}
