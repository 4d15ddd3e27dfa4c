package governor

import (
	"github.com/t77yq/resource-governor/internal/model"
)

// PressureBands holds the lower boundary of each non-normal pressure level
// for one signal, in percent. Boundaries must be ascending.
type PressureBands struct {
	Elevated  float64
	High      float64
	Critical  float64
	Emergency float64
}

// DefaultPressureBands are calibration values, not universal constants;
// deployments tune them through configuration.
func DefaultPressureBands() PressureBands {
	return PressureBands{Elevated: 60, High: 75, Critical: 85, Emergency: 95}
}

func (b PressureBands) classify(percent float64) model.PressureLevel {
	switch {
	case percent >= b.Emergency:
		return model.PressureEmergency
	case percent >= b.Critical:
		return model.PressureCritical
	case percent >= b.High:
		return model.PressureHigh
	case percent >= b.Elevated:
		return model.PressureElevated
	default:
		return model.PressureNormal
	}
}

// PressureAssessor classifies telemetry snapshots into ordered pressure
// levels. It is a pure function of the snapshot and the configured bands.
type PressureAssessor struct {
	cpu    PressureBands
	memory PressureBands
}

// NewPressureAssessor creates an assessor with the given band tables.
func NewPressureAssessor(cpu, memory PressureBands) *PressureAssessor {
	return &PressureAssessor{cpu: cpu, memory: memory}
}

// Assess returns the pressure level for a snapshot. When the CPU and memory
// signals disagree the more severe band wins.
func (a *PressureAssessor) Assess(snapshot model.ResourceSnapshot) model.PressureLevel {
	cpuLevel := a.cpu.classify(snapshot.CPUPercent)
	memLevel := a.memory.classify(snapshot.MemoryPercent)
	if memLevel > cpuLevel {
		return memLevel
	}
	return cpuLevel
}

// AssessSample classifies a possibly failed sample. A missing sample must
// not read as healthy, so errors escalate to at least elevated.
func (a *PressureAssessor) AssessSample(snapshot model.ResourceSnapshot, err error) model.PressureLevel {
	if err != nil {
		return model.PressureElevated
	}
	return a.Assess(snapshot)
}
