package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/resource-governor/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: "governor-test"

pressure:
  cpu:
    elevated: 50.0
    high: 65.0
    critical: 80.0
    emergency: 90.0

breaker:
  failure_threshold: 3
  success_threshold: 1
  timeout: 10s
  memory_threshold_mb: 512.0

monitor:
  assess_interval: "5s"

alerts:
  cooldown: 1m
  memory_ceiling_mb: 2048.0

policies:
  - executor_id: "entity-extractor"
    priority: "critical"
    min_memory_mb: 256
    max_memory_mb: 2048
    min_workers: 2
    max_workers: 8

strategies:
  - name: "skip-expensive"
    pressure_threshold: "high"
    enabled: true
    disable_expensive_computations: true

history:
  enabled: true
  path: "test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "governor-test", cfg.App.Name)
	assert.Equal(t, time.Minute, cfg.Alerts.Cooldown)
	assert.Equal(t, 2048.0, cfg.Alerts.MemoryCeilingMB)
	assert.True(t, cfg.History.Enabled)

	breaker := cfg.BreakerConfig()
	assert.Equal(t, 3, breaker.FailureThreshold)
	assert.Equal(t, 10*time.Second, breaker.Timeout)
	assert.Equal(t, 512.0, breaker.MemoryThresholdMB)

	cpu := cfg.CPUBands()
	assert.Equal(t, 50.0, cpu.Elevated)
	assert.Equal(t, 90.0, cpu.Emergency)

	// Unset sections fall back to defaults
	memory := cfg.MemoryBands()
	assert.Equal(t, 60.0, memory.Elevated)
	assert.Equal(t, 8, cfg.Telemetry.WorkerBudget)

	policies, err := cfg.AllocationPolicies()
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, model.PriorityCritical, policies[0].Priority)
	assert.Equal(t, 2048.0, policies[0].MaxMemoryMB)

	strategies, err := cfg.DegradationStrategies()
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.Equal(t, model.PressureHigh, strategies[0].PressureThreshold)
	assert.True(t, strategies[0].DisableExpensiveComputations)
	// Omitted factor reads as no entity reduction
	assert.Equal(t, 1.0, strategies[0].EntityLimitFactor)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidPriority(t *testing.T) {
	path := writeConfig(t, `
policies:
  - executor_id: "entity-extractor"
    priority: "urgent"
    min_memory_mb: 128
    max_memory_mb: 1024
    min_workers: 1
    max_workers: 4
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid priority")
}

func TestLoad_InvalidPressureThreshold(t *testing.T) {
	path := writeConfig(t, `
strategies:
  - name: "skip-expensive"
    pressure_threshold: "extreme"
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pressure level")
}

func TestLoad_InvalidBreaker(t *testing.T) {
	path := writeConfig(t, `
breaker:
  failure_threshold: 0
  success_threshold: 1
  timeout: 10s
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidInterval(t *testing.T) {
	path := writeConfig(t, `
monitor:
  assess_interval: "often"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assess_interval")
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "resource-governor", cfg.App.Name)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, "10s", cfg.Monitor.AssessInterval)
	assert.Equal(t, 75.0, cfg.CPUBands().High)
	assert.False(t, cfg.NATS.Enabled)
	assert.Empty(t, cfg.Policies)
}
