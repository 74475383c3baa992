package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	// StateClosed allows requests and counts failures.
	StateClosed BreakerState = iota

	// StateOpen fails fast until the reset timeout elapses.
	StateOpen

	// StateHalfOpen admits a bounded number of probe requests.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the failure count at which the circuit opens.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" validate:"gt=0"`

	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout types.Duration `json:"reset_timeout" yaml:"reset_timeout"`

	// MinOperations is the minimum number of observed operations before
	// the threshold can trip the circuit. Prevents opening on the first
	// few calls of a cold service.
	MinOperations int `json:"min_operations" yaml:"min_operations" validate:"gte=0"`

	// HalfOpenLimit caps concurrent probe calls while half-open.
	HalfOpenLimit int `json:"half_open_limit" yaml:"half_open_limit" validate:"gt=0"`
}

// DefaultBreakerConfig opens after 5 failures out of at least 10
// operations and probes one call after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     types.Duration(30 * time.Second),
		MinOperations:    10,
		HalfOpenLimit:    1,
	}
}

// CircuitBreaker guards one downstream dependency.
//
// State transitions:
//   - Closed -> Open: failures >= FailureThreshold and total operations
//     >= MinOperations
//   - Open -> HalfOpen: ResetTimeout elapsed since opening
//   - HalfOpen -> Closed: a probe succeeds (counters reset)
//   - HalfOpen -> Open: a probe fails
//
// All methods are safe for concurrent use.
type CircuitBreaker struct {
	config BreakerConfig

	mu            sync.Mutex
	state         BreakerState
	failures      int
	totalOps      int
	openedAt      time.Time
	halfOpenProbe int
	lastFailure   time.Time

	now func() time.Time
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, state: StateClosed, now: time.Now}
}

// Allow reports whether a call may proceed, advancing Open to HalfOpen
// when the reset timeout has elapsed. Rejections carry a retryable
// CIRCUIT_BREAKER_OPEN error.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout.Std() {
			cb.state = StateHalfOpen
			cb.halfOpenProbe = 1
			return nil
		}
		return cb.openError()

	case StateHalfOpen:
		if cb.halfOpenProbe < cb.config.HalfOpenLimit {
			cb.halfOpenProbe++
			return nil
		}
		return cb.openError()

	default:
		return nil
	}
}

func (cb *CircuitBreaker) openError() error {
	retryAt := cb.openedAt.Add(cb.config.ResetTimeout.Std())
	return types.NewRetryableError(types.CIRCUIT_BREAKER_OPEN,
		"circuit open, retry after "+retryAt.Format(time.RFC3339))
}

// RecordSuccess closes a half-open circuit and resets counters; in the
// closed state it only counts the operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.totalOps++
		cb.failures = 0
	case StateHalfOpen, StateOpen:
		cb.state = StateClosed
		cb.failures = 0
		cb.totalOps = 0
		cb.halfOpenProbe = 0
	}
}

// RecordFailure counts a failure, opening the circuit once both the
// failure threshold and the minimum operation count are reached. A
// half-open failure reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		cb.totalOps++
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold && cb.totalOps >= cb.config.MinOperations {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.halfOpenProbe = 0
	case StateOpen:
		// Counter already tripped.
	}
}

// State returns the current state, reporting HalfOpen for an open
// circuit whose reset timeout has elapsed.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout.Std() {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.totalOps = 0
	cb.halfOpenProbe = 0
}

// BreakerStats is a point-in-time snapshot for monitoring.
type BreakerStats struct {
	State       BreakerState `json:"state"`
	Failures    int          `json:"failures"`
	TotalOps    int          `json:"total_ops"`
	OpenedAt    time.Time    `json:"opened_at,omitempty"`
	LastFailure time.Time    `json:"last_failure,omitempty"`
}

// Stats snapshots the breaker's counters.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		State:       cb.state,
		Failures:    cb.failures,
		TotalOps:    cb.totalOps,
		OpenedAt:    cb.openedAt,
		LastFailure: cb.lastFailure,
	}
}

// ExecuteBreaker runs op under the breaker: a rejected call never invokes
// op; outcomes feed the failure counters.
func ExecuteBreaker[T any](ctx context.Context, cb *CircuitBreaker, op Func[T]) (T, error) {
	var zero T
	if err := cb.Allow(); err != nil {
		return zero, err
	}
	result, err := op(ctx)
	if err != nil {
		cb.RecordFailure()
		return zero, err
	}
	cb.RecordSuccess()
	return result, nil
}
