package value

import "sync"

// Limits bounds the size and nesting of values at construction time.
// Every length-extending operation re-checks the relevant limit and fails
// with LIMIT_EXCEEDED when it would be crossed.
type Limits struct {
	// MaxStringBytes bounds the byte length of Text values.
	MaxStringBytes int

	// MaxArrayLength bounds the element count of Array values.
	MaxArrayLength int

	// MaxObjectKeys bounds the key count of Object values.
	MaxObjectKeys int

	// MaxBytesLength bounds the byte length of Bytes values.
	MaxBytesLength int

	// MaxNestingDepth bounds how deep arrays and objects may nest.
	MaxNestingDepth int
}

// DefaultLimits returns the limits applied when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxStringBytes:  1 << 20, // 1 MiB
		MaxArrayLength:  10_000,
		MaxObjectKeys:   10_000,
		MaxBytesLength:  16 << 20, // 16 MiB
		MaxNestingDepth: 32,
	}
}

var (
	limitsMu      sync.RWMutex
	currentLimits = DefaultLimits()
)

// SetLimits replaces the process-wide limits. Tests inject tighter limits
// through this; production code sets it once during startup.
func SetLimits(l Limits) {
	limitsMu.Lock()
	defer limitsMu.Unlock()
	currentLimits = l
}

// CurrentLimits returns the process-wide limits in effect.
func CurrentLimits() Limits {
	limitsMu.RLock()
	defer limitsMu.RUnlock()
	return currentLimits
}
