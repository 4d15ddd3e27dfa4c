package governor

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/t77yq/resource-governor/internal/model"
)

// DegradationEngine holds the ordered degradation strategy table and
// composes the strategies that apply at a given pressure level.
type DegradationEngine struct {
	logger *zap.Logger

	mu         sync.RWMutex
	strategies []model.DegradationStrategy
}

// NewDegradationEngine creates an empty strategy table.
func NewDegradationEngine(logger *zap.Logger) *DegradationEngine {
	return &DegradationEngine{logger: logger.Named("degradation")}
}

// Register adds a strategy to the table. Re-registering a name replaces the
// existing entry in place, preserving table order.
func (e *DegradationEngine) Register(strategy model.DegradationStrategy) error {
	if strategy.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidStrategy)
	}
	if strategy.EntityLimitFactor <= 0 || strategy.EntityLimitFactor > 1 {
		return fmt.Errorf("%w: entity_limit_factor must be in (0, 1], got %g",
			ErrInvalidStrategy, strategy.EntityLimitFactor)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i, existing := range e.strategies {
		if existing.Name == strategy.Name {
			e.strategies[i] = strategy
			return nil
		}
	}
	e.strategies = append(e.strategies, strategy)

	e.logger.Info("Degradation strategy registered",
		zap.String("name", strategy.Name),
		zap.String("pressure_threshold", strategy.PressureThreshold.String()))

	return nil
}

// Strategies returns a copy of the registered table.
func (e *DegradationEngine) Strategies() []model.DegradationStrategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.DegradationStrategy, len(e.strategies))
	copy(out, e.strategies)
	return out
}

// ConfigAt composes every enabled strategy whose threshold is at or below
// the given pressure level. Strictest wins: the smallest entity limit
// factor survives and boolean effects are OR'd. With nothing applied the
// result is the identity configuration.
func (e *DegradationEngine) ConfigAt(level model.PressureLevel) model.DegradationConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	config := model.IdentityDegradation()
	for _, strategy := range e.strategies {
		if !strategy.Enabled || level < strategy.PressureThreshold {
			continue
		}
		if strategy.EntityLimitFactor < config.EntityLimitFactor {
			config.EntityLimitFactor = strategy.EntityLimitFactor
		}
		config.DisableExpensiveComputations = config.DisableExpensiveComputations || strategy.DisableExpensiveComputations
		config.UseSimplifiedMethods = config.UseSimplifiedMethods || strategy.UseSimplifiedMethods
		config.AppliedStrategies = append(config.AppliedStrategies, strategy.Name)
	}
	return config
}
