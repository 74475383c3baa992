package resource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// fakeResource is a controllable Resource for pool tests.
type fakeResource struct {
	id      string
	invalid atomic.Bool
	closed  atomic.Bool
}

func (f *fakeResource) ID() string { return f.id }

func (f *fakeResource) IsValid(context.Context) (bool, error) {
	return !f.invalid.Load(), nil
}

func (f *fakeResource) Close(context.Context) error {
	f.closed.Store(true)
	return nil
}

type fakeFactory struct {
	mu      sync.Mutex
	made    []*fakeResource
	failure error
}

func (f *fakeFactory) Create(context.Context) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	res := &fakeResource{id: fmt.Sprintf("res-%d", len(f.made))}
	f.made = append(f.made, res)
	return res, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.made)
}

func testConfig() PoolConfig {
	return PoolConfig{
		MinSize:        0,
		MaxSize:        2,
		AcquireTimeout: types.Duration(50 * time.Millisecond),
		IdleTimeout:    types.Duration(time.Minute),
		// Background task disabled; tests drive eviction directly.
		EvictionInterval: 0,
	}
}

func assertInvariant(t *testing.T, p *Pool) {
	t.Helper()
	s := p.Stats()
	assert.Equal(t, s.Created-s.Destroyed, s.InUse+s.Idle,
		"created-destroyed must equal in_use+idle")
}

func TestLifecycleTransitions(t *testing.T) {
	assert.True(t, StateCreated.CanTransitionTo(StateInitializing))
	assert.True(t, StateIdle.CanTransitionTo(StateCleanup))
	assert.True(t, StateFailed.CanTransitionTo(StateTerminated))

	assert.False(t, StateCreated.CanTransitionTo(StateInUse))
	assert.False(t, StateTerminated.CanTransitionTo(StateCreated))
	assert.False(t, StateDraining.CanTransitionTo(StateReady))
	assert.True(t, StateTerminated.IsTerminal())
}

func TestInstanceRejectsIllegalTransition(t *testing.T) {
	inst := newInstance(&fakeResource{id: "r"}, time.Now())
	require.NoError(t, inst.Transition(StateInitializing))
	err := inst.Transition(StateInUse)
	require.Error(t, err)
	assert.Equal(t, types.PRECONDITION_FAILED, types.CodeOf(err))
	assert.Equal(t, StateInitializing, inst.State())
}

func TestAcquireReleaseReuse(t *testing.T) {
	factory := &fakeFactory{}
	p, err := NewPool(factory, testConfig())
	require.NoError(t, err)
	defer p.Close(context.Background())

	guard, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateInUse, guard.inst.State())
	assertInvariant(t, p)

	guard.Release(context.Background())
	assert.Equal(t, StateIdle, guard.inst.State())
	assertInvariant(t, p)

	// Same instance is reused.
	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, guard.inst, again.inst)
	assert.Equal(t, 1, factory.count())
	again.Release(context.Background())
}

func TestReleaseIsIdempotent(t *testing.T) {
	p, err := NewPool(&fakeFactory{}, testConfig())
	require.NoError(t, err)
	defer p.Close(context.Background())

	guard, err := p.Acquire(context.Background())
	require.NoError(t, err)
	guard.Release(context.Background())
	guard.Release(context.Background())
	assertInvariant(t, p)
	assert.Equal(t, int64(1), p.Stats().Idle)
}

func TestInvalidIdleInstanceReplaced(t *testing.T) {
	factory := &fakeFactory{}
	p, err := NewPool(factory, testConfig())
	require.NoError(t, err)
	defer p.Close(context.Background())

	guard, err := p.Acquire(context.Background())
	require.NoError(t, err)
	first := guard.Resource().(*fakeResource)
	guard.Release(context.Background())

	// Poison the idle instance: next acquire must destroy it and create
	// a replacement.
	first.invalid.Store(true)
	replacement, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), replacement.Resource().ID())
	assert.True(t, first.closed.Load(), "invalid instance destroyed")
	assert.Equal(t, 2, factory.count())
	assertInvariant(t, p)
	replacement.Release(context.Background())
}

func TestInvalidOnReleaseDestroyed(t *testing.T) {
	factory := &fakeFactory{}
	p, err := NewPool(factory, testConfig())
	require.NoError(t, err)
	defer p.Close(context.Background())

	guard, err := p.Acquire(context.Background())
	require.NoError(t, err)
	res := guard.Resource().(*fakeResource)
	res.invalid.Store(true)
	guard.Release(context.Background())

	assert.True(t, res.closed.Load())
	s := p.Stats()
	assert.Equal(t, int64(0), s.Idle)
	assertInvariant(t, p)
}

func TestAcquireTimeoutPoolExhausted(t *testing.T) {
	p, err := NewPool(&fakeFactory{}, testConfig())
	require.NoError(t, err)
	defer p.Close(context.Background())

	g1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	g2, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.POOL_EXHAUSTED, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "timed out after 50ms")

	g1.Release(context.Background())
	g2.Release(context.Background())
}

func TestWaiterWokenOnRelease(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSize = 1
	cfg.AcquireTimeout = types.Duration(time.Second)
	p, err := NewPool(&fakeFactory{}, cfg)
	require.NoError(t, err)
	defer p.Close(context.Background())

	guard, err := p.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan *Guard, 1)
	go func() {
		g, err := p.Acquire(context.Background())
		assert.NoError(t, err)
		acquired <- g
	}()

	time.Sleep(20 * time.Millisecond)
	guard.Release(context.Background())

	select {
	case g := <-acquired:
		g.Release(context.Background())
	case <-time.After(time.Second):
		t.Fatal("queued acquire never completed")
	}
	assertInvariant(t, p)
}

func TestEvictionAndRebuild(t *testing.T) {
	factory := &fakeFactory{}
	cfg := testConfig()
	cfg.MinSize = 1
	cfg.IdleTimeout = types.Duration(time.Minute)
	p, err := NewPool(factory, cfg)
	require.NoError(t, err)
	defer p.Close(context.Background())

	guard, err := p.Acquire(context.Background())
	require.NoError(t, err)
	stale := guard.Resource().(*fakeResource)
	guard.Release(context.Background())

	// Jump the clock past the idle timeout: the instance is evicted and
	// the pool rebuilds to min_size with a fresh one.
	p.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	p.evictAndRebuild(context.Background())

	assert.True(t, stale.closed.Load(), "stale idle instance evicted")
	s := p.Stats()
	assert.Equal(t, int64(1), s.Idle, "rebuilt to min_size")
	assert.Equal(t, 2, factory.count())
	assertInvariant(t, p)
}

func TestCreateFailureSurfaced(t *testing.T) {
	factory := &fakeFactory{failure: types.NewError(types.CONNECTOR_FAILED, "backend down")}
	p, err := NewPool(factory, testConfig())
	require.NoError(t, err)
	defer p.Close(context.Background())

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.CONNECTOR_FAILED, types.CodeOf(err))
	assertInvariant(t, p)
}

func TestCloseDrainsAndRejects(t *testing.T) {
	p, err := NewPool(&fakeFactory{}, testConfig())
	require.NoError(t, err)

	guard, err := p.Acquire(context.Background())
	require.NoError(t, err)
	idleGuard, err := p.Acquire(context.Background())
	require.NoError(t, err)
	idleRes := idleGuard.Resource().(*fakeResource)
	idleGuard.Release(context.Background())

	require.NoError(t, p.Close(context.Background()))
	assert.True(t, idleRes.closed.Load(), "idle instances destroyed on close")

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.PRECONDITION_FAILED, types.CodeOf(err))

	// Guard released after close destroys its instance.
	held := guard.Resource().(*fakeResource)
	guard.Release(context.Background())
	assert.True(t, held.closed.Load())
	assertInvariant(t, p)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	p, err := NewPool(&fakeFactory{}, testConfig())
	require.NoError(t, err)

	require.NoError(t, reg.Register("postgres", p))
	assert.Error(t, reg.Register("postgres", p), "duplicate registration rejected")

	guard, err := reg.Acquire(context.Background(), "postgres")
	require.NoError(t, err)
	guard.Release(context.Background())

	_, err = reg.Acquire(context.Background(), "mystery")
	require.Error(t, err)
	assert.Equal(t, types.NOT_FOUND, types.CodeOf(err))

	require.NoError(t, reg.Close(context.Background()))
	_, ok := reg.Get("postgres")
	assert.False(t, ok)
}
