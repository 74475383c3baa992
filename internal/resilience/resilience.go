// Package resilience provides composable fault-handling combinators:
// retry with exponential backoff, timeouts, a circuit breaker, a bulkhead
// and fallback strategies. A Policy chains them in a fixed order so every
// retry attempt is individually timeout-bounded while the breaker and
// bulkhead gate the sequence as a whole.
package resilience

import "context"

// Func is the unit of work the combinators wrap.
type Func[T any] func(ctx context.Context) (T, error)
