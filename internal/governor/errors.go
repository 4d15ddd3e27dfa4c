package governor

import "errors"

var (
	// ErrDuplicateStart is returned when an executor is started while
	// already admitted. It signals a caller bug, not a resource condition.
	ErrDuplicateStart = errors.New("executor already active")

	// ErrInvalidPolicy is returned when an allocation policy is registered
	// with min bounds above max bounds.
	ErrInvalidPolicy = errors.New("invalid allocation policy")

	// ErrInvalidBreakerConfig is returned when circuit breaker thresholds
	// are out of range.
	ErrInvalidBreakerConfig = errors.New("invalid circuit breaker config")

	// ErrInvalidStrategy is returned when a degradation strategy is
	// registered with an out-of-range entity limit factor.
	ErrInvalidStrategy = errors.New("invalid degradation strategy")

	// ErrUnknownExecutor is returned when a metrics read names an executor
	// the governor has never seen.
	ErrUnknownExecutor = errors.New("unknown executor")
)
