package locks

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type lockState struct {
	waiting []block
}

// block is signaled when the lock is handed over to a waiting
// caller. It is buffered, so handing over never blocks.
type block chan struct{}

func newBlock() block {
	return make(block, 1)
}

// ElementLocks provides exclusive locks for the elements of a
// comparable domain. Waiting callers are served in FIFO order.
type ElementLocks[T comparable] struct {
	lock  sync.Mutex
	locks map[T]*lockState
}

func NewElementLocks[T comparable]() *ElementLocks[T] {
	return &ElementLocks[T]{locks: map[T]*lockState{}}
}

func (e *ElementLocks[T]) IsLocked(eid T) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.locks[eid] != nil
}

func (e *ElementLocks[T]) HasWaiting(eid T) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.locks[eid] != nil && len(e.locks[eid].waiting) > 0
}

func (e *ElementLocks[T]) TryLock(eid T) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	if locked := e.locks[eid]; locked != nil {
		return false
	}
	e.locks[eid] = &lockState{}
	return true
}

func (e *ElementLocks[T]) Unlock(eid T) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if locked := e.locks[eid]; locked != nil {
		if len(locked.waiting) > 0 {
			locked.waiting[0] <- struct{}{}
			locked.waiting = locked.waiting[1:]
		} else {
			delete(e.locks, eid)
		}
	} else {
		panic(fmt.Sprintf("unlocking unlocked element %v", eid))
	}
}

func (e *ElementLocks[T]) Lock(ctx context.Context, eid T) error {
	e.lock.Lock()

	if locked := e.locks[eid]; locked != nil {
		b := newBlock()
		locked.waiting = append(locked.waiting, b)
		e.lock.Unlock()
		if ctx == nil {
			<-b
			return nil
		}
		select {
		case <-ctx.Done():
			e.cancel(eid, b)
			return ctx.Err()
		case <-b:
			return nil
		}
	}
	e.locks[eid] = &lockState{}
	e.lock.Unlock()
	return nil
}

// cancel withdraws a waiting request. If the lock has been handed over
// meanwhile, it is passed on.
func (e *ElementLocks[T]) cancel(eid T, b block) {
	e.lock.Lock()
	locked := e.locks[eid]
	if locked != nil {
		if i := slices.Index(locked.waiting, b); i >= 0 {
			locked.waiting = slices.Delete(locked.waiting, i, i+1)
			e.lock.Unlock()
			return
		}
	}
	e.lock.Unlock()
	<-b
	e.Unlock(eid)
}

// LockAll acquires the locks for all given elements in the total order
// given by cmp. Duplicates are locked once. On failure all locks acquired
// so far are released. The returned function releases all locks.
func (e *ElementLocks[T]) LockAll(ctx context.Context, cmp func(a, b T) int, eids ...T) (func(), error) {
	list := slices.Clone(eids)
	slices.SortFunc(list, cmp)
	list = slices.Compact(list)

	for i, eid := range list {
		if err := e.Lock(ctx, eid); err != nil {
			e.unlockAll(list[:i])
			return nil, err
		}
	}
	return func() { e.unlockAll(list) }, nil
}

func (e *ElementLocks[T]) unlockAll(list []T) {
	for i := len(list) - 1; i >= 0; i-- {
		e.Unlock(list[i])
	}
}
