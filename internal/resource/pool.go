package resource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// PoolConfig sizes and paces a pool.
type PoolConfig struct {
	// MinSize is the instance count the background task rebuilds to.
	MinSize int `json:"min_size" yaml:"min_size" validate:"gte=0"`

	// MaxSize caps total live instances. Must be positive.
	MaxSize int `json:"max_size" yaml:"max_size" validate:"gt=0"`

	// AcquireTimeout bounds how long a caller waits for a free instance.
	AcquireTimeout types.Duration `json:"acquire_timeout" yaml:"acquire_timeout"`

	// IdleTimeout is how long an instance may sit idle before eviction.
	IdleTimeout types.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// EvictionInterval paces the background eviction task. Zero disables
	// the background task.
	EvictionInterval types.Duration `json:"eviction_interval" yaml:"eviction_interval"`
}

// DefaultPoolConfig keeps 2-10 instances with 30s acquire and 5m idle
// timeouts.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:          2,
		MaxSize:          10,
		AcquireTimeout:   types.Duration(30 * time.Second),
		IdleTimeout:      types.Duration(5 * time.Minute),
		EvictionInterval: types.Duration(30 * time.Second),
	}
}

// PoolStats is a point-in-time snapshot. The counters satisfy
// Created - Destroyed == InUse + Idle at all times.
type PoolStats struct {
	Created   int64 `json:"created"`
	Destroyed int64 `json:"destroyed"`
	InUse     int64 `json:"in_use"`
	Idle      int64 `json:"idle"`
	Waiting   int64 `json:"waiting"`
}

// Pool loans validated instances with scoped lifetimes. Acquire hands
// out a Guard that must be released exactly once; release returns the
// instance to the idle set or destroys it when validation fails.
type Pool struct {
	config  PoolConfig
	factory Factory
	logger  *slog.Logger

	mu        sync.Mutex
	idle      []*Instance
	waiters   []chan struct{}
	created   int64
	destroyed int64
	inUse     int64
	closed    bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	now func() time.Time
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the structured logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = logger }
}

// NewPool builds a pool and, when an eviction interval is configured,
// starts the background maintenance task. Close stops it.
func NewPool(factory Factory, config PoolConfig, opts ...PoolOption) (*Pool, error) {
	if factory == nil {
		return nil, types.NewError(types.INVALID_INPUT, "pool requires a factory")
	}
	if config.MaxSize <= 0 {
		return nil, types.NewError(types.INVALID_INPUT, "pool max_size must be positive")
	}
	if config.MinSize > config.MaxSize {
		return nil, types.NewError(types.INVALID_INPUT, "pool min_size exceeds max_size")
	}

	p := &Pool{
		config:  config,
		factory: factory,
		logger:  slog.Default(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if config.EvictionInterval > 0 {
		go p.maintain()
	} else {
		close(p.done)
	}
	return p, nil
}

// Guard is a scoped loan of one instance. Release must be called exactly
// once; releasing after the pool closed destroys the instance.
type Guard struct {
	pool *Pool
	inst *Instance
	once sync.Once
}

// Resource returns the loaned handle.
func (g *Guard) Resource() Resource { return g.inst.Resource() }

// Release hands the instance back. Instances failing their health check
// are destroyed instead of returned.
func (g *Guard) Release(ctx context.Context) {
	g.once.Do(func() { g.pool.release(ctx, g.inst) })
}

// Acquire loans an instance: a validated idle one if available, a fresh
// one while under max_size, otherwise the caller queues until a slot
// frees or acquire_timeout elapses with POOL_EXHAUSTED.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	if d := p.config.AcquireTimeout.Std(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, types.NewError(types.PRECONDITION_FAILED, "pool is closed")
		}

		if n := len(p.idle); n > 0 {
			inst := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.inUse++
			p.mu.Unlock()

			valid, verr := inst.Resource().IsValid(ctx)
			if valid && verr == nil {
				if err := inst.Transition(StateInUse); err == nil {
					inst.touch(p.now())
					return &Guard{pool: p, inst: inst}, nil
				}
			}
			// Invalid idle instance: destroy and try the next one.
			p.mu.Lock()
			p.inUse--
			p.destroyed++
			p.wakeLocked()
			p.mu.Unlock()
			p.teardown(ctx, inst, StateFailed)
			continue
		}

		if p.created-p.destroyed < int64(p.config.MaxSize) {
			p.created++
			p.mu.Unlock()
			return p.createForUse(ctx)
		}

		// At capacity: queue until a release or destruction frees a slot.
		ready := make(chan struct{}, 1)
		p.waiters = append(p.waiters, ready)
		p.mu.Unlock()

		select {
		case <-ready:
			continue
		case <-ctx.Done():
			p.dropWaiter(ready)
			if ctx.Err() == context.DeadlineExceeded {
				return nil, types.NewRetryableError(types.POOL_EXHAUSTED,
					"acquire timed out after "+types.FormatDurationError(p.config.AcquireTimeout.Std())+
						" waiting for a free instance")
			}
			return nil, types.WrapError(types.CANCELLED, "acquire cancelled", ctx.Err())
		}
	}
}

func (p *Pool) createForUse(ctx context.Context) (*Guard, error) {
	res, err := p.factory.Create(ctx)
	if err != nil {
		p.mu.Lock()
		p.created--
		p.wakeLocked()
		p.mu.Unlock()
		return nil, types.WrapError(types.CONNECTOR_FAILED, "resource creation failed", err)
	}

	inst := newInstance(res, p.now())
	for _, to := range []LifecycleState{StateInitializing, StateReady, StateInUse} {
		if terr := inst.Transition(to); terr != nil {
			return nil, terr
		}
	}

	p.mu.Lock()
	p.inUse++
	p.mu.Unlock()
	p.logger.Debug("pool instance created", "resource_id", res.ID())
	return &Guard{pool: p, inst: inst}, nil
}

func (p *Pool) release(ctx context.Context, inst *Instance) {
	valid, verr := inst.Resource().IsValid(ctx)

	p.mu.Lock()
	p.inUse--
	if p.closed || !valid || verr != nil {
		p.destroyed++
		p.wakeLocked()
		p.mu.Unlock()
		p.teardown(ctx, inst, StateFailed)
		return
	}

	if err := inst.Transition(StateIdle); err != nil {
		p.destroyed++
		p.wakeLocked()
		p.mu.Unlock()
		p.teardown(ctx, inst, StateFailed)
		return
	}
	inst.touch(p.now())
	p.idle = append(p.idle, inst)
	p.wakeLocked()
	p.mu.Unlock()
}

// teardown closes the underlying resource, walking the instance to
// Terminated through the via state when the direct path is illegal.
func (p *Pool) teardown(ctx context.Context, inst *Instance, via LifecycleState) {
	if inst.Transition(StateCleanup) != nil {
		_ = inst.Transition(via)
		_ = inst.Transition(StateCleanup)
	}
	if err := inst.Resource().Close(ctx); err != nil {
		p.logger.Warn("pool instance close failed", "resource_id", inst.Resource().ID(), "error", err)
		_ = inst.Transition(StateFailed)
		_ = inst.Transition(StateTerminated)
		return
	}
	_ = inst.Transition(StateTerminated)
}

// wakeLocked signals the oldest waiter. Callers hold p.mu.
func (p *Pool) wakeLocked() {
	if len(p.waiters) == 0 {
		return
	}
	ready := p.waiters[0]
	p.waiters = p.waiters[1:]
	select {
	case ready <- struct{}{}:
	default:
	}
}

func (p *Pool) dropWaiter(ready chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == ready {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
	// Already woken: pass the wakeup on so the slot is not lost.
	p.wakeLocked()
}

// Stats snapshots the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Created:   p.created,
		Destroyed: p.destroyed,
		InUse:     p.inUse,
		Idle:      int64(len(p.idle)),
		Waiting:   int64(len(p.waiters)),
	}
}

// maintain runs the background eviction and rebuild loop.
func (p *Pool) maintain() {
	defer close(p.done)
	ticker := time.NewTicker(p.config.EvictionInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictAndRebuild(context.Background())
		case <-p.stop:
			return
		}
	}
}

// evictAndRebuild destroys instances idle past idle_timeout, then
// creates idle instances until the pool is back at min_size.
func (p *Pool) evictAndRebuild(ctx context.Context) {
	now := p.now()
	cutoff := p.config.IdleTimeout.Std()

	var expired []*Instance
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if cutoff > 0 {
		kept := p.idle[:0]
		for _, inst := range p.idle {
			if now.Sub(inst.idleSince()) > cutoff {
				expired = append(expired, inst)
				p.destroyed++
			} else {
				kept = append(kept, inst)
			}
		}
		p.idle = kept
	}
	p.mu.Unlock()

	for _, inst := range expired {
		p.teardown(ctx, inst, StateFailed)
		p.logger.Debug("pool instance evicted", "resource_id", inst.Resource().ID())
	}

	for {
		p.mu.Lock()
		if p.closed || p.created-p.destroyed >= int64(p.config.MinSize) {
			p.mu.Unlock()
			return
		}
		p.created++
		p.mu.Unlock()

		res, err := p.factory.Create(ctx)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			p.logger.Warn("pool rebuild failed", "error", err)
			return
		}
		inst := newInstance(res, now)
		_ = inst.Transition(StateInitializing)
		_ = inst.Transition(StateReady)
		_ = inst.Transition(StateIdle)

		p.mu.Lock()
		p.idle = append(p.idle, inst)
		p.wakeLocked()
		p.mu.Unlock()
	}
}

// Close drains the pool: idle instances are destroyed, waiters are woken
// to observe the closed state and the background task is stopped. Guards
// released afterwards destroy their instances.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	drained := p.idle
	p.idle = nil
	p.destroyed += int64(len(drained))
	for len(p.waiters) > 0 {
		p.wakeLocked()
	}
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })
	if p.config.EvictionInterval > 0 {
		<-p.done
	}

	for _, inst := range drained {
		if inst.Transition(StateDraining) == nil {
			_ = inst.Transition(StateCleanup)
			if err := inst.Resource().Close(ctx); err != nil {
				p.logger.Warn("pool instance close failed", "resource_id", inst.Resource().ID(), "error", err)
			}
			_ = inst.Transition(StateTerminated)
		}
	}
	return nil
}
