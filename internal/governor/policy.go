package governor

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// DefaultPolicyBounds are the bounds synthesized for executors with no
// registered allocation policy.
var DefaultPolicyBounds = model.AllocationPolicy{
	Priority:    model.PriorityNormal,
	MinMemoryMB: 128,
	MaxMemoryMB: 1024,
	MinWorkers:  1,
	MaxWorkers:  4,
}

// pressureFactor is the baseline share of the max-min range granted at each
// pressure level, before priority weighting.
var pressureFactor = map[model.PressureLevel]float64{
	model.PressureNormal:    1.0,
	model.PressureElevated:  0.9,
	model.PressureHigh:      0.75,
	model.PressureCritical:  0.5,
	model.PressureEmergency: 0.25,
}

// priorityWeight scales how strongly pressure reductions bite. Low-priority
// executors are reduced first and hardest; critical ones barely move and are
// never pushed below their policy minimum.
var priorityWeight = map[model.Priority]float64{
	model.PriorityCritical: 0.25,
	model.PriorityHigh:     0.5,
	model.PriorityNormal:   1.0,
	model.PriorityLow:      1.25,
}

// PolicyRegistry holds per-executor allocation policies and computes
// pressure-scaled allocations from them.
type PolicyRegistry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	policies map[string]model.AllocationPolicy
}

// NewPolicyRegistry creates an empty policy registry.
func NewPolicyRegistry(logger *zap.Logger) *PolicyRegistry {
	return &PolicyRegistry{
		logger:   logger.Named("policy"),
		policies: make(map[string]model.AllocationPolicy),
	}
}

// Register stores a policy, last write wins per executor id. Policies with
// inverted bounds are rejected at registration time so misconfiguration is
// fatal at startup, never at call time.
func (r *PolicyRegistry) Register(policy model.AllocationPolicy) error {
	if policy.ExecutorID == "" {
		return fmt.Errorf("%w: executor_id is required", ErrInvalidPolicy)
	}
	if policy.MinMemoryMB > policy.MaxMemoryMB {
		return fmt.Errorf("%w: min_memory_mb %g > max_memory_mb %g for %s",
			ErrInvalidPolicy, policy.MinMemoryMB, policy.MaxMemoryMB, policy.ExecutorID)
	}
	if policy.MinWorkers > policy.MaxWorkers {
		return fmt.Errorf("%w: min_workers %d > max_workers %d for %s",
			ErrInvalidPolicy, policy.MinWorkers, policy.MaxWorkers, policy.ExecutorID)
	}

	r.mu.Lock()
	r.policies[policy.ExecutorID] = policy
	r.mu.Unlock()

	r.logger.Info("Allocation policy registered",
		zap.String("executor_id", policy.ExecutorID),
		zap.String("priority", policy.Priority.String()),
		zap.Float64("max_memory_mb", policy.MaxMemoryMB),
		zap.Int("max_workers", policy.MaxWorkers))

	return nil
}

// Get returns the registered policy for an executor, or a synthesized
// normal-priority default when none exists.
func (r *PolicyRegistry) Get(executorID string) model.AllocationPolicy {
	r.mu.RLock()
	policy, ok := r.policies[executorID]
	r.mu.RUnlock()

	if !ok {
		policy = DefaultPolicyBounds
		policy.ExecutorID = executorID
	}
	return policy
}

// Count returns the number of registered policies.
func (r *PolicyRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.policies)
}

// Allocate computes the budget for an executor at the given pressure level.
// The granted amount scales between the policy min and max: the baseline
// pressure factor is softened or amplified by priority, and the policy
// minimum is an absolute floor at every level.
func (r *PolicyRegistry) Allocate(executorID string, level model.PressureLevel) model.ResourceAllocation {
	policy := r.Get(executorID)

	base, ok := pressureFactor[level]
	if !ok {
		base = pressureFactor[model.PressureEmergency]
	}
	weight, ok := priorityWeight[policy.Priority]
	if !ok {
		weight = priorityWeight[model.PriorityNormal]
	}

	factor := 1 - (1-base)*weight
	if factor < 0 {
		factor = 0
	}

	memory := policy.MinMemoryMB + factor*(policy.MaxMemoryMB-policy.MinMemoryMB)
	workers := policy.MinWorkers + int(factor*float64(policy.MaxWorkers-policy.MinWorkers)+0.5)
	if workers > policy.MaxWorkers {
		workers = policy.MaxWorkers
	}
	if workers < policy.MinWorkers {
		workers = policy.MinWorkers
	}

	return model.ResourceAllocation{
		ExecutorID:    executorID,
		Priority:      policy.Priority,
		MaxMemoryMB:   memory,
		MaxWorkers:    workers,
		PressureLevel: level,
	}
}
