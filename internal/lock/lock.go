// Package lock serializes writes per user.
//
// Every intake mutation touches up to two 25-hour runs of ledger buckets plus
// several rollup rows; two interleaved mutations for the same user would lose
// updates. Holding the user's lock for the whole operation prevents that.
package lock

import (
	"context"
	"sync"
)

// Locker hands out exclusive locks by key.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func
	// releases the lock and must be called exactly once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// UserKey is the lock key for a user's ledger.
func UserKey(userID string) string {
	return "halflife:user:" + userID
}

// Local is an in-process keyed lock. Entries are dropped once unused.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty Local.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
