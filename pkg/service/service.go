package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mandelsoft/logging"

	"github.com/mandelsoft/concerns/pkg/ctxutil"
)

var REALM = logging.DefineRealm("concerns/service", "service lifecycle")

// Service is a component running until its context is cancelled.
// Start returns an optional ready syncher and a mandatory done syncher.
type Service interface {
	Start(ctx context.Context) (ready Syncher, done Syncher, err error)
	Wait() error
}

// Services starts a set of services with a shared context. A failing
// service start cancels the context for all services.
type Services interface {
	Add(s Service) error
	Start(st ...Service) error
	Wait() error
}

type entry struct {
	service Service
	done    Syncher
}

type services struct {
	lock    sync.Mutex
	ctx     context.Context
	log     logging.Logger
	entries []*entry
	started bool
	wg      sync.WaitGroup
	errs    []error
}

func New(ctx context.Context, lctx ...logging.Context) Services {
	l := logging.DefaultContext()
	if len(lctx) > 0 && lctx[0] != nil {
		l = lctx[0]
	}
	return &services{
		ctx: ctxutil.CancelContext(ctx),
		log: l.Logger(REALM),
	}
}

func (t *services) lookup(s Service) *entry {
	for _, e := range t.entries {
		if e.service == s {
			return e
		}
	}
	return nil
}

// Add registers a service. Services added after the start are started
// immediately.
func (t *services) Add(s Service) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	e := t.lookup(s)
	if e == nil {
		e = &entry{service: s}
		t.entries = append(t.entries, e)
	}
	if t.started {
		return t.startEntries(e)
	}
	return nil
}

// Start starts the given or, without arguments, all registered
// services and waits until they are ready.
func (t *services) Start(st ...Service) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	var list []*entry
	if len(st) == 0 {
		if t.started {
			return nil
		}
		t.started = true
		list = t.entries
	} else {
		for _, s := range st {
			e := t.lookup(s)
			if e == nil {
				e = &entry{service: s}
				t.entries = append(t.entries, e)
			}
			list = append(list, e)
		}
	}
	return t.startEntries(list...)
}

func (t *services) startEntries(list ...*entry) error {
	var ready []Syncher
	for _, e := range list {
		if e.done != nil {
			continue
		}
		r, err := t.start(e)
		if err != nil {
			return err
		}
		if r != nil {
			ready = append(ready, r)
		}
	}

	for _, r := range ready {
		if err := r.Wait(); err != nil {
			ctxutil.Cancel(t.ctx)
			return err
		}
	}
	return nil
}

func (t *services) start(e *entry) (Syncher, error) {
	name := fmt.Sprintf("%T", e.service)
	t.log.Debug("starting service {{service}}", "service", name)
	ready, done, err := e.service.Start(t.ctx)
	if err == nil && done == nil {
		err = fmt.Errorf("no done syncher")
	}
	if err != nil {
		ctxutil.Cancel(t.ctx)
		t.log.Error("start of service {{service}} failed", "service", name, "error", err.Error())
		return nil, fmt.Errorf("service %s: %w", name, err)
	}
	e.done = done
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		err := done.Wait()
		if err != nil {
			t.lock.Lock()
			t.errs = append(t.errs, fmt.Errorf("service %s: %w", name, err))
			t.lock.Unlock()
		}
		t.log.Debug("service {{service}} terminated", "service", name)
	}()
	return ready, nil
}

// Wait waits for the termination of all started services and returns
// their errors.
func (t *services) Wait() error {
	t.wg.Wait()
	t.lock.Lock()
	defer t.lock.Unlock()
	return errors.Join(t.errs...)
}
