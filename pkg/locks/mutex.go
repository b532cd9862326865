package locks

import (
	"context"
	"slices"
	"sync"
)

// Mutex is a mutual exclusion lock whose Lock operation can be
// canceled by a context.
type Mutex struct {
	lock    sync.Mutex
	locked  bool
	waiting []block
}

func (e *Mutex) IsLocked() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.locked
}

func (e *Mutex) HasWaiting() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return len(e.waiting) > 0
}

func (e *Mutex) TryLock() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.locked {
		return false
	}
	e.locked = true
	return true
}

func (e *Mutex) Unlock() {
	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.locked {
		panic("unlocking unlocked mutex")
	}

	if len(e.waiting) > 0 {
		e.waiting[0] <- struct{}{}
		e.waiting = e.waiting[1:]
	} else {
		e.locked = false
	}
}

func (e *Mutex) Lock(ctx context.Context) error {
	e.lock.Lock()

	if e.locked {
		b := newBlock()
		e.waiting = append(e.waiting, b)
		e.lock.Unlock()
		if ctx == nil {
			<-b
			return nil
		}
		select {
		case <-ctx.Done():
			e.lock.Lock()
			if i := slices.Index(e.waiting, b); i >= 0 {
				e.waiting = slices.Delete(e.waiting, i, i+1)
				e.lock.Unlock()
				return ctx.Err()
			}
			e.lock.Unlock()
			<-b
			e.Unlock()
			return ctx.Err()
		case <-b:
			return nil
		}
	}
	e.locked = true
	e.lock.Unlock()
	return nil
}
