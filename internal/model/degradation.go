package model

// DegradationStrategy is a rule that relaxes executor behavior once the
// system reaches a pressure threshold.
type DegradationStrategy struct {
	Name              string        `json:"name"`
	PressureThreshold PressureLevel `json:"pressure_threshold"`
	Enabled           bool          `json:"enabled"`

	// EntityLimitFactor scales down how many entities an executor may
	// process. Must be in (0, 1]; 1 means no reduction.
	EntityLimitFactor            float64 `json:"entity_limit_factor"`
	DisableExpensiveComputations bool    `json:"disable_expensive_computations"`
	UseSimplifiedMethods         bool    `json:"use_simplified_methods"`
}

// DegradationConfig is the composed effect of every strategy that applies
// at the current pressure level. Strategies compose strictest-wins: the
// smallest factor survives and booleans are OR'd.
type DegradationConfig struct {
	EntityLimitFactor            float64  `json:"entity_limit_factor"`
	DisableExpensiveComputations bool     `json:"disable_expensive_computations"`
	UseSimplifiedMethods         bool     `json:"use_simplified_methods"`
	AppliedStrategies            []string `json:"applied_strategies"`
}

// IdentityDegradation returns the no-op configuration in effect when no
// strategy applies.
func IdentityDegradation() DegradationConfig {
	return DegradationConfig{EntityLimitFactor: 1.0}
}
