package service

import (
	"context"
	"errors"
	"sync"

	"github.com/mandelsoft/concerns/pkg/future"
)

// Syncher waits for a state of a service and provides the errors
// reported until then.
type Syncher interface {
	SetError(err error)
	Wait() error
}

// Sync provides a syncher waiting for a wait group.
func Sync(wg *sync.WaitGroup) Syncher {
	return &groupSyncher{wg: wg}
}

type groupSyncher struct {
	lock sync.Mutex
	wg   *sync.WaitGroup
	errs []error
}

func (s *groupSyncher) SetError(err error) {
	if err == nil {
		return
	}
	s.lock.Lock()
	s.errs = append(s.errs, err)
	s.lock.Unlock()
}

func (s *groupSyncher) Wait() error {
	s.wg.Wait()
	s.lock.Lock()
	defer s.lock.Unlock()
	return errors.Join(s.errs...)
}

// Trigger is a syncher released explicitly.
type Trigger interface {
	Syncher
	Trigger()
}

func SyncTrigger() Trigger {
	return &trigger{released: future.NewFuture()}
}

type trigger struct {
	lock     sync.Mutex
	err      error
	released future.Trigger
}

var _ Trigger = (*trigger)(nil)

func (t *trigger) Trigger() {
	t.released.Trigger()
}

func (t *trigger) SetError(err error) {
	t.lock.Lock()
	t.err = err
	t.lock.Unlock()
}

func (t *trigger) Wait() error {
	t.released.Wait(context.Background())
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.err
}
