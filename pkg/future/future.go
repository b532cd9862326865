package future

import (
	"context"
	"sync"

	"github.com/mandelsoft/goutils/general"
)

// Future is a synchronization point released by a trigger.
type Future interface {
	// Wait reports whether the future has been released before the
	// context is done.
	Wait(ctx context.Context) bool
}

type Trigger interface {
	Future
	Trigger() bool
}

type future struct {
	lock      sync.Mutex
	retrigger bool
	fired     bool
	pending   int
	released  chan struct{}
}

// NewFuture provides a new Trigger. A plain future stays released
// after the first trigger. A retriggerable future releases the current
// waiters with every trigger; triggers without waiters are counted.
func NewFuture(retrigger ...bool) Trigger {
	return &future{retrigger: general.Optional(retrigger...)}
}

func (f *future) channel() chan struct{} {
	if f.released == nil {
		f.released = make(chan struct{})
	}
	return f.released
}

func (f *future) Wait(ctx context.Context) bool {
	f.lock.Lock()
	if f.fired {
		f.lock.Unlock()
		return true
	}
	if f.pending > 0 {
		f.pending--
		f.lock.Unlock()
		return true
	}
	released := f.channel()
	f.lock.Unlock()

	select {
	case <-released:
		return true
	case <-ctx.Done():
		return false
	}
}

func (f *future) Trigger() bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.retrigger {
		if !f.fired {
			f.fired = true
			close(f.channel())
		}
		return false
	}
	if f.released != nil {
		close(f.released)
		f.released = nil
	} else {
		f.pending++
	}
	return true
}
