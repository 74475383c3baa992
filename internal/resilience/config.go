package resilience

import (
	"sync"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// PolicyConfig is the serializable form of a policy, embedded in node
// definitions and runtime configuration. Durations accept milliseconds,
// Go duration strings or {secs, nanos} objects.
type PolicyConfig struct {
	Timeout  types.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retry    *RetryConfig    `json:"retry,omitempty" yaml:"retry,omitempty"`
	Breaker  *BreakerConfig  `json:"breaker,omitempty" yaml:"breaker,omitempty"`
	Bulkhead *BulkheadConfig `json:"bulkhead,omitempty" yaml:"bulkhead,omitempty"`
}

// IsZero reports whether the config enables any pattern.
func (c PolicyConfig) IsZero() bool {
	return c.Timeout == 0 && c.Retry == nil && c.Breaker == nil && c.Bulkhead == nil
}

// Registry shares breakers and bulkheads across policies protecting the
// same dependency, keyed by normalized name.
type Registry struct {
	mu        sync.RWMutex
	breakers  map[types.Key]*CircuitBreaker
	bulkheads map[types.Key]*Bulkhead
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers:  make(map[types.Key]*CircuitBreaker),
		bulkheads: make(map[types.Key]*Bulkhead),
	}
}

// Breaker returns the shared breaker for key, creating it from config on
// first use. Later calls ignore the config.
func (r *Registry) Breaker(key types.Key, config BreakerConfig) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb = NewCircuitBreaker(config)
	r.breakers[key] = cb
	return cb
}

// Bulkhead returns the shared bulkhead for key, creating it from config
// on first use.
func (r *Registry) Bulkhead(key types.Key, config BulkheadConfig) *Bulkhead {
	r.mu.RLock()
	b, ok := r.bulkheads[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bulkheads[key]; ok {
		return b
	}
	b = NewBulkhead(config)
	r.bulkheads[key] = b
	return b
}

// BuildPolicy assembles a policy from config, taking shared breakers and
// bulkheads from the registry under the given key. A nil registry builds
// unshared instances.
func BuildPolicy[T any](registry *Registry, key types.Key, config PolicyConfig) *Policy[T] {
	builder := NewPolicy[T]()
	if config.Bulkhead != nil {
		if registry != nil {
			builder.WithBulkhead(registry.Bulkhead(key, *config.Bulkhead))
		} else {
			builder.WithBulkhead(NewBulkhead(*config.Bulkhead))
		}
	}
	if config.Breaker != nil {
		if registry != nil {
			builder.WithBreaker(registry.Breaker(key, *config.Breaker))
		} else {
			builder.WithBreaker(NewCircuitBreaker(*config.Breaker))
		}
	}
	if config.Retry != nil {
		builder.WithRetry(*config.Retry)
	}
	if config.Timeout > 0 {
		builder.WithTimeout(config.Timeout.Std())
	}
	return builder.Build()
}
