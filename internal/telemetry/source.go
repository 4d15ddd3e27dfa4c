package telemetry

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// Source provides best-effort resource usage snapshots. A failed sample
// returns an error and the caller decides how conservatively to react;
// sampling never blocks lifecycle calls.
type Source interface {
	Sample() (model.ResourceSnapshot, error)
}

// SystemSource samples the host via gopsutil.
type SystemSource struct {
	logger       *zap.Logger
	workerBudget int
	proc         *process.Process
}

// NewSystemSource creates a system telemetry source. workerBudget is the
// configured parallelism cap reported alongside each sample.
func NewSystemSource(workerBudget int, logger *zap.Logger) *SystemSource {
	// RSS falls back to zero when the process handle is unavailable
	// instead of failing every sample.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("Failed to open own process handle", zap.Error(err))
		proc = nil
	}

	return &SystemSource{
		logger:       logger.Named("telemetry"),
		workerBudget: workerBudget,
		proc:         proc,
	}
}

// Sample collects a snapshot of current CPU and memory usage.
func (s *SystemSource) Sample() (model.ResourceSnapshot, error) {
	snapshot := model.ResourceSnapshot{
		WorkerBudget: s.workerBudget,
		CollectedAt:  time.Now(),
	}

	// Interval 0 reports usage since the previous call without blocking.
	cpuPercent, err := cpu.Percent(0, false)
	if err != nil {
		return snapshot, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(cpuPercent) > 0 {
		snapshot.CPUPercent = cpuPercent[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return snapshot, fmt.Errorf("failed to get memory usage: %w", err)
	}
	snapshot.MemoryPercent = memInfo.UsedPercent

	if s.proc != nil {
		if memStat, err := s.proc.MemoryInfo(); err != nil {
			s.logger.Debug("Failed to get process RSS", zap.Error(err))
		} else {
			snapshot.RSSMB = float64(memStat.RSS) / (1024 * 1024)
		}
	}

	return snapshot, nil
}

// StaticSource returns a fixed snapshot, or an error when Err is set.
// Intended for tests and for wiring the governor without host telemetry.
type StaticSource struct {
	Snapshot model.ResourceSnapshot
	Err      error
}

// Sample returns the configured snapshot.
func (s *StaticSource) Sample() (model.ResourceSnapshot, error) {
	if s.Err != nil {
		return model.ResourceSnapshot{CollectedAt: time.Now()}, s.Err
	}
	snapshot := s.Snapshot
	snapshot.CollectedAt = time.Now()
	return snapshot, nil
}
