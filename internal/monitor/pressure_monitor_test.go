package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/resource-governor/internal/model"
)

// countingAssessor counts invocations.
type countingAssessor struct {
	calls atomic.Int64
}

func (a *countingAssessor) AssessPressure() model.PressureLevel {
	a.calls.Add(1)
	return model.PressureNormal
}

func TestPressureMonitor_RunsInitialAssessment(t *testing.T) {
	assessor := &countingAssessor{}
	monitor := NewPressureMonitor(assessor, "1h", zaptest.NewLogger(t))

	require.NoError(t, monitor.Start(context.Background()))
	defer monitor.Stop()

	// The cache is populated before the first tick
	assert.Equal(t, int64(1), assessor.calls.Load())
}

func TestPressureMonitor_AssessesPeriodically(t *testing.T) {
	assessor := &countingAssessor{}
	monitor := NewPressureMonitor(assessor, "1s", zaptest.NewLogger(t))

	require.NoError(t, monitor.Start(context.Background()))
	time.Sleep(1500 * time.Millisecond)
	monitor.Stop()

	assert.GreaterOrEqual(t, assessor.calls.Load(), int64(2))
}

func TestPressureMonitor_RejectsBadInterval(t *testing.T) {
	monitor := NewPressureMonitor(&countingAssessor{}, "not-a-duration", zaptest.NewLogger(t))

	err := monitor.Start(context.Background())
	require.Error(t, err)
}
