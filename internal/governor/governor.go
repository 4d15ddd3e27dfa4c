package governor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
	"github.com/t77yq/resource-governor/internal/storage"
	"github.com/t77yq/resource-governor/internal/telemetry"
)

// EventHandler receives pressure events emitted by the governor. Handlers
// run synchronously on the emitting goroutine and must not block.
type EventHandler interface {
	HandlePressureEvent(event model.PressureEvent)
}

// Options configures a Governor.
type Options struct {
	// Source provides telemetry snapshots. Required.
	Source telemetry.Source

	// Breaker is the config applied to lazily created circuit breakers.
	Breaker model.CircuitBreakerConfig

	// CPUBands and MemoryBands define the pressure classification table.
	// Zero values fall back to the defaults.
	CPUBands    PressureBands
	MemoryBands PressureBands

	// History, when set, receives one record per ended execution.
	// Write failures are logged and never surface to lifecycle calls.
	History storage.ExecutionHistory
}

// executorState is all per-executor governance state. Its mutex serializes
// concurrent lifecycle calls for the same executor id; distinct ids never
// contend beyond the brief registry lookup.
type executorState struct {
	mu      sync.Mutex
	breaker *CircuitBreaker
	metrics model.ExecutionMetrics
	active  bool
}

// Governor coordinates admission control, resource allocation, degradation
// and failure isolation for all executors in the process. Construct one per
// process and share it by reference.
type Governor struct {
	logger      *zap.Logger
	source      telemetry.Source
	assessor    *PressureAssessor
	policies    *PolicyRegistry
	degradation *DegradationEngine
	breakerCfg  model.CircuitBreakerConfig
	history     storage.ExecutionHistory

	mu        sync.RWMutex
	executors map[string]*executorState

	// pressure and snapshot are the cached view refreshed by AssessPressure.
	// Lifecycle calls read them without sampling; readers may observe a
	// value up to one assessment cycle stale.
	pressureMu sync.RWMutex
	pressure   model.PressureLevel
	snapshot   model.ResourceSnapshot

	handlerMu sync.RWMutex
	handlers  []EventHandler
}

// New creates a Governor. The breaker config is validated here so that bad
// thresholds are fatal at startup, never at call time.
func New(opts Options, logger *zap.Logger) (*Governor, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("telemetry source is required")
	}
	if err := ValidateBreakerConfig(opts.Breaker); err != nil {
		return nil, err
	}

	cpuBands := opts.CPUBands
	if cpuBands == (PressureBands{}) {
		cpuBands = DefaultPressureBands()
	}
	memBands := opts.MemoryBands
	if memBands == (PressureBands{}) {
		memBands = DefaultPressureBands()
	}

	return &Governor{
		logger:      logger.Named("governor"),
		source:      opts.Source,
		assessor:    NewPressureAssessor(cpuBands, memBands),
		policies:    NewPolicyRegistry(logger),
		degradation: NewDegradationEngine(logger),
		breakerCfg:  opts.Breaker,
		history:     opts.History,
		executors:   make(map[string]*executorState),
		pressure:    model.PressureNormal,
	}, nil
}

// AddEventHandler subscribes a handler to pressure events.
func (g *Governor) AddEventHandler(handler EventHandler) {
	g.handlerMu.Lock()
	g.handlers = append(g.handlers, handler)
	g.handlerMu.Unlock()
}

// RegisterPolicy registers an allocation policy, last write wins.
func (g *Governor) RegisterPolicy(policy model.AllocationPolicy) error {
	return g.policies.Register(policy)
}

// RegisterStrategy registers a degradation strategy.
func (g *Governor) RegisterStrategy(strategy model.DegradationStrategy) error {
	return g.degradation.Register(strategy)
}

// CanExecute reports whether an executor may run. It returns false only
// while the executor's breaker is open and not yet due for a probe. The
// result is advisory: the governor never cancels in-flight work.
func (g *Governor) CanExecute(executorID string) (bool, string) {
	state := g.state(executorID)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.breaker.Allow()
}

// DegradationConfig returns the behavior relaxation an executor must apply
// at the cached pressure level.
func (g *Governor) DegradationConfig(executorID string) model.DegradationConfig {
	return g.degradation.ConfigAt(g.CurrentPressure())
}

// AllocateResources returns the budget for an executor at the cached
// pressure level.
func (g *Governor) AllocateResources(executorID string) model.ResourceAllocation {
	return g.policies.Allocate(executorID, g.CurrentPressure())
}

// StartExecution admits an executor into the active set and returns its
// allocation. A second start for an id that is still active fails with
// ErrDuplicateStart.
func (g *Governor) StartExecution(executorID string) (model.ResourceAllocation, error) {
	state := g.state(executorID)

	state.mu.Lock()
	if state.active {
		state.mu.Unlock()
		return model.ResourceAllocation{}, fmt.Errorf("%w: %s", ErrDuplicateStart, executorID)
	}
	state.active = true
	state.mu.Unlock()

	allocation := g.AllocateResources(executorID)

	g.logger.Debug("Executor admitted",
		zap.String("executor_id", executorID),
		zap.Float64("max_memory_mb", allocation.MaxMemoryMB),
		zap.Int("max_workers", allocation.MaxWorkers))

	return allocation, nil
}

// EndExecution removes an executor from the active set and records the
// outcome against its breaker and metrics. An end with no matching start is
// tolerated: the outcome is still recorded so the breaker learns about
// failures even when the harness lost track of the admission.
func (g *Governor) EndExecution(ctx context.Context, executorID string, success bool, duration time.Duration, memoryMB float64) {
	state := g.state(executorID)

	state.mu.Lock()
	if !state.active {
		g.logger.Warn("Execution ended without matching start",
			zap.String("executor_id", executorID))
	}
	state.active = false

	state.metrics.TotalExecutions++
	if success {
		state.metrics.SuccessfulExecutions++
	} else {
		state.metrics.FailedExecutions++
	}
	state.metrics.CumulativeDuration += duration
	state.metrics.CumulativeMemoryMB += memoryMB
	state.metrics.LastExecutionAt = time.Now()

	before := state.breaker.State()
	if success {
		state.breaker.RecordSuccess()
	} else {
		state.breaker.RecordFailure(memoryMB)
	}
	justOpened := before != model.CircuitOpen && state.breaker.State() == model.CircuitOpen
	state.mu.Unlock()

	if justOpened {
		g.emit(g.buildEvent(fmt.Sprintf("circuit breaker opened for executor %s", executorID)))
	}

	if g.history != nil {
		completed := time.Now()
		record := &storage.ExecutionRecord{
			ID:          uuid.New().String(),
			ExecutorID:  executorID,
			Success:     success,
			Duration:    duration,
			MemoryMB:    memoryMB,
			Pressure:    g.CurrentPressure(),
			StartedAt:   completed.Add(-duration),
			CompletedAt: completed,
		}
		if err := g.history.Record(ctx, record); err != nil {
			g.logger.Error("Failed to store execution record",
				zap.String("executor_id", executorID),
				zap.Error(err))
		}
	}
}

// AssessPressure pulls a fresh telemetry snapshot, classifies it and
// refreshes the cached pressure. A pressure event is emitted on level
// change. A failed sample escalates conservatively instead of propagating.
func (g *Governor) AssessPressure() model.PressureLevel {
	snapshot, err := g.source.Sample()
	level := g.assessor.AssessSample(snapshot, err)
	if err != nil {
		g.logger.Warn("Telemetry sample failed, escalating conservatively",
			zap.String("pressure_level", level.String()),
			zap.Error(err))
	}

	g.pressureMu.Lock()
	previous := g.pressure
	g.pressure = level
	g.snapshot = snapshot
	g.pressureMu.Unlock()

	if level != previous {
		g.logger.Info("Pressure level changed",
			zap.String("from", previous.String()),
			zap.String("to", level.String()),
			zap.Float64("cpu_percent", snapshot.CPUPercent),
			zap.Float64("memory_percent", snapshot.MemoryPercent))
		g.emit(g.buildEvent(fmt.Sprintf("pressure level changed from %s to %s", previous, level)))
	}

	return level
}

// CurrentPressure returns the cached pressure level.
func (g *Governor) CurrentPressure() model.PressureLevel {
	g.pressureMu.RLock()
	defer g.pressureMu.RUnlock()
	return g.pressure
}

// ResetBreaker forces an executor's breaker closed, zeroing its counters.
// Execution metrics are untouched.
func (g *Governor) ResetBreaker(executorID string) error {
	g.mu.RLock()
	state, ok := g.executors[executorID]
	g.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExecutor, executorID)
	}

	state.mu.Lock()
	state.breaker.Reset()
	state.mu.Unlock()

	g.logger.Info("Circuit breaker manually reset", zap.String("executor_id", executorID))
	return nil
}

// ExecutorMetrics returns the execution metrics for one executor.
func (g *Governor) ExecutorMetrics(executorID string) (model.ExecutionMetrics, error) {
	g.mu.RLock()
	state, ok := g.executors[executorID]
	g.mu.RUnlock()
	if !ok {
		return model.ExecutionMetrics{}, fmt.Errorf("%w: %s", ErrUnknownExecutor, executorID)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	metrics := state.metrics
	metrics.ExecutorID = executorID
	return metrics, nil
}

// Status returns a snapshot of the governor for dashboards and logs.
func (g *Governor) Status() model.GovernorStatus {
	g.pressureMu.RLock()
	level := g.pressure
	snapshot := g.snapshot
	g.pressureMu.RUnlock()

	status := model.GovernorStatus{
		PressureLevel:   level,
		Snapshot:        snapshot,
		ActiveExecutors: []string{},
		Degradation:     g.degradation.ConfigAt(level),
		CollectedAt:     time.Now(),
	}

	g.mu.RLock()
	ids := make([]string, 0, len(g.executors))
	for id := range g.executors {
		ids = append(ids, id)
	}
	g.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		g.mu.RLock()
		state := g.executors[id]
		g.mu.RUnlock()

		state.mu.Lock()
		breakerStatus := state.breaker.Status()
		active := state.active
		state.mu.Unlock()

		status.Breakers = append(status.Breakers, breakerStatus)
		if breakerStatus.State == model.CircuitOpen {
			status.CircuitBreakersOpen = append(status.CircuitBreakersOpen, id)
		}
		if active {
			status.ActiveExecutors = append(status.ActiveExecutors, id)
		}
	}

	return status
}

// state returns the per-executor state, creating it (and its breaker)
// lazily on first sight of an id.
func (g *Governor) state(executorID string) *executorState {
	g.mu.RLock()
	state, ok := g.executors[executorID]
	g.mu.RUnlock()
	if ok {
		return state
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if state, ok := g.executors[executorID]; ok {
		return state
	}
	state = &executorState{
		breaker: NewCircuitBreaker(executorID, g.breakerCfg, g.logger),
		metrics: model.ExecutionMetrics{ExecutorID: executorID},
	}
	g.executors[executorID] = state
	return state
}

// buildEvent assembles a pressure event from the current cached view.
func (g *Governor) buildEvent(message string) model.PressureEvent {
	g.pressureMu.RLock()
	level := g.pressure
	snapshot := g.snapshot
	g.pressureMu.RUnlock()

	event := model.PressureEvent{
		Timestamp:     time.Now(),
		PressureLevel: level,
		CPUPercent:    snapshot.CPUPercent,
		MemoryMB:      snapshot.RSSMB,
		MemoryPercent: snapshot.MemoryPercent,
		WorkerCount:   snapshot.WorkerBudget,
		Message:       message,
	}

	event.DegradationApplied = g.degradation.ConfigAt(level).AppliedStrategies

	g.mu.RLock()
	states := make(map[string]*executorState, len(g.executors))
	for id, state := range g.executors {
		states[id] = state
	}
	g.mu.RUnlock()

	for id, state := range states {
		state.mu.Lock()
		open := state.breaker.State() == model.CircuitOpen
		active := state.active
		state.mu.Unlock()

		if open {
			event.CircuitBreakersOpen = append(event.CircuitBreakersOpen, id)
		}
		if active {
			event.ActiveExecutors = append(event.ActiveExecutors, id)
		}
	}
	sort.Strings(event.CircuitBreakersOpen)
	sort.Strings(event.ActiveExecutors)

	return event
}

// emit delivers an event to every subscribed handler.
func (g *Governor) emit(event model.PressureEvent) {
	g.handlerMu.RLock()
	handlers := make([]EventHandler, len(g.handlers))
	copy(handlers, g.handlers)
	g.handlerMu.RUnlock()

	for _, handler := range handlers {
		handler.HandlePressureEvent(event)
	}
}
