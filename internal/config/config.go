package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/t77yq/resource-governor/internal/governor"
	"github.com/t77yq/resource-governor/internal/model"
)

// Bands holds the lower boundary of each pressure level for one signal.
type Bands struct {
	Elevated  float64 `mapstructure:"elevated"`
	High      float64 `mapstructure:"high"`
	Critical  float64 `mapstructure:"critical"`
	Emergency float64 `mapstructure:"emergency"`
}

// PolicySpec is the on-disk form of an allocation policy.
type PolicySpec struct {
	ExecutorID  string  `mapstructure:"executor_id"`
	Priority    string  `mapstructure:"priority"`
	MinMemoryMB float64 `mapstructure:"min_memory_mb"`
	MaxMemoryMB float64 `mapstructure:"max_memory_mb"`
	MinWorkers  int     `mapstructure:"min_workers"`
	MaxWorkers  int     `mapstructure:"max_workers"`
}

// StrategySpec is the on-disk form of a degradation strategy.
type StrategySpec struct {
	Name                         string  `mapstructure:"name"`
	PressureThreshold            string  `mapstructure:"pressure_threshold"`
	Enabled                      bool    `mapstructure:"enabled"`
	EntityLimitFactor            float64 `mapstructure:"entity_limit_factor"`
	DisableExpensiveComputations bool    `mapstructure:"disable_expensive_computations"`
	UseSimplifiedMethods         bool    `mapstructure:"use_simplified_methods"`
}

// Config is the full governor configuration.
type Config struct {
	App struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"app"`

	Telemetry struct {
		WorkerBudget int `mapstructure:"worker_budget"`
	} `mapstructure:"telemetry"`

	Pressure struct {
		CPU    Bands `mapstructure:"cpu"`
		Memory Bands `mapstructure:"memory"`
	} `mapstructure:"pressure"`

	Breaker struct {
		FailureThreshold         int           `mapstructure:"failure_threshold"`
		SuccessThreshold         int           `mapstructure:"success_threshold"`
		Timeout                  time.Duration `mapstructure:"timeout"`
		MemoryThresholdMB        float64       `mapstructure:"memory_threshold_mb"`
		HalfOpenFailureTolerance int           `mapstructure:"half_open_failure_tolerance"`
	} `mapstructure:"breaker"`

	Monitor struct {
		AssessInterval string `mapstructure:"assess_interval"`
	} `mapstructure:"monitor"`

	Alerts struct {
		Cooldown        time.Duration `mapstructure:"cooldown"`
		MemoryCeilingMB float64       `mapstructure:"memory_ceiling_mb"`
	} `mapstructure:"alerts"`

	Policies   []PolicySpec   `mapstructure:"policies"`
	Strategies []StrategySpec `mapstructure:"strategies"`

	NATS struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
	} `mapstructure:"nats"`

	History struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"history"`
}

// Load reads a yaml config file and applies defaults for anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("defaults failed to unmarshal: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "resource-governor")
	v.SetDefault("telemetry.worker_budget", 8)

	v.SetDefault("pressure.cpu.elevated", 60.0)
	v.SetDefault("pressure.cpu.high", 75.0)
	v.SetDefault("pressure.cpu.critical", 85.0)
	v.SetDefault("pressure.cpu.emergency", 95.0)
	v.SetDefault("pressure.memory.elevated", 60.0)
	v.SetDefault("pressure.memory.high", 75.0)
	v.SetDefault("pressure.memory.critical", 85.0)
	v.SetDefault("pressure.memory.emergency", 95.0)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.memory_threshold_mb", 0.0)
	v.SetDefault("breaker.half_open_failure_tolerance", 0)

	v.SetDefault("monitor.assess_interval", "10s")

	v.SetDefault("alerts.cooldown", "5m")
	v.SetDefault("alerts.memory_ceiling_mb", 4096.0)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "governance_history.db")
}

// Validate checks everything that must be caught before startup: breaker
// thresholds, interval syntax and enum names. Policy bound checks happen at
// registration so both paths reject the same misconfiguration.
func (c *Config) Validate() error {
	if err := governor.ValidateBreakerConfig(c.BreakerConfig()); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.Monitor.AssessInterval); err != nil {
		return fmt.Errorf("invalid monitor.assess_interval: %w", err)
	}
	if c.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown must not be negative")
	}
	if _, err := c.AllocationPolicies(); err != nil {
		return err
	}
	if _, err := c.DegradationStrategies(); err != nil {
		return err
	}
	return nil
}

// BreakerConfig converts the breaker section to the model type.
func (c *Config) BreakerConfig() model.CircuitBreakerConfig {
	return model.CircuitBreakerConfig{
		FailureThreshold:         c.Breaker.FailureThreshold,
		SuccessThreshold:         c.Breaker.SuccessThreshold,
		Timeout:                  c.Breaker.Timeout,
		MemoryThresholdMB:        c.Breaker.MemoryThresholdMB,
		HalfOpenFailureTolerance: c.Breaker.HalfOpenFailureTolerance,
	}
}

// CPUBands converts the CPU pressure section to the governor type.
func (c *Config) CPUBands() governor.PressureBands {
	return governor.PressureBands{
		Elevated:  c.Pressure.CPU.Elevated,
		High:      c.Pressure.CPU.High,
		Critical:  c.Pressure.CPU.Critical,
		Emergency: c.Pressure.CPU.Emergency,
	}
}

// MemoryBands converts the memory pressure section to the governor type.
func (c *Config) MemoryBands() governor.PressureBands {
	return governor.PressureBands{
		Elevated:  c.Pressure.Memory.Elevated,
		High:      c.Pressure.Memory.High,
		Critical:  c.Pressure.Memory.Critical,
		Emergency: c.Pressure.Memory.Emergency,
	}
}

// AllocationPolicies converts the policy specs, resolving priority names.
func (c *Config) AllocationPolicies() ([]model.AllocationPolicy, error) {
	policies := make([]model.AllocationPolicy, 0, len(c.Policies))
	for _, spec := range c.Policies {
		priority, err := model.ParsePriority(spec.Priority)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", spec.ExecutorID, err)
		}
		policies = append(policies, model.AllocationPolicy{
			ExecutorID:  spec.ExecutorID,
			Priority:    priority,
			MinMemoryMB: spec.MinMemoryMB,
			MaxMemoryMB: spec.MaxMemoryMB,
			MinWorkers:  spec.MinWorkers,
			MaxWorkers:  spec.MaxWorkers,
		})
	}
	return policies, nil
}

// DegradationStrategies converts the strategy specs, resolving level names.
func (c *Config) DegradationStrategies() ([]model.DegradationStrategy, error) {
	strategies := make([]model.DegradationStrategy, 0, len(c.Strategies))
	for _, spec := range c.Strategies {
		threshold, err := model.ParsePressureLevel(spec.PressureThreshold)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", spec.Name, err)
		}
		// Omitted factor means "no entity reduction", not zero.
		if spec.EntityLimitFactor == 0 {
			spec.EntityLimitFactor = 1.0
		}
		strategies = append(strategies, model.DegradationStrategy{
			Name:                         spec.Name,
			PressureThreshold:            threshold,
			Enabled:                      spec.Enabled,
			EntityLimitFactor:            spec.EntityLimitFactor,
			DisableExpensiveComputations: spec.DisableExpensiveComputations,
			UseSimplifiedMethods:         spec.UseSimplifiedMethods,
		})
	}
	return strategies, nil
}
