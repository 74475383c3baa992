package credential

import (
	"context"
	"sync"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

// RefreshLock serializes token refresh per credential id so at most one
// caller refreshes at a time. Implementations may span processes.
type RefreshLock interface {
	Lock(ctx context.Context, id types.CredentialID) (Unlocker, error)
}

// Unlocker releases a held refresh lock.
type Unlocker interface {
	Unlock(ctx context.Context) error
}

// LocalRefreshLock is the in-process RefreshLock: one mutex per
// credential id. Suitable when a single manager owns the token cache.
type LocalRefreshLock struct {
	mu    sync.Mutex
	locks map[types.CredentialID]*sync.Mutex
}

// NewLocalRefreshLock returns an empty per-id mutex registry.
func NewLocalRefreshLock() *LocalRefreshLock {
	return &LocalRefreshLock{locks: make(map[types.CredentialID]*sync.Mutex)}
}

// Lock acquires the per-id mutex, respecting context cancellation while
// waiting.
func (l *LocalRefreshLock) Lock(ctx context.Context, id types.CredentialID) (Unlocker, error) {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return localUnlocker{m: m}, nil
	case <-ctx.Done():
		// The goroutine will eventually acquire; hand the mutex straight
		// back so the next waiter is not blocked forever.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, types.WrapError(types.CANCELLED, "refresh lock wait aborted", ctx.Err())
	}
}

type localUnlocker struct {
	m *sync.Mutex
}

func (u localUnlocker) Unlock(context.Context) error {
	u.m.Unlock()
	return nil
}
