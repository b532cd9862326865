package events

import (
	"slices"
	"sync"

	"github.com/mandelsoft/concerns/pkg/future"
	"github.com/mandelsoft/concerns/pkg/model"
)

type Id = model.ObjectId

// ObjectLister lists the ids of the objects of a kind. An empty kind
// lists all objects. The optional atomic function is called while the
// list is consistent with the events triggered afterwards.
type ObjectLister interface {
	ListObjectIds(kind model.Kind, atomic ...func()) []Id
}

// EventHandler is notified about objects whose concerns have changed.
type EventHandler interface {
	HandleEvent(Id)
}

type HandlerRegistration interface {
	// RegisterHandler registers a handler for the given kinds (all kinds,
	// if none is given). If current is set, the handler is initially
	// called for all existing objects, before it sees new events.
	RegisterHandler(h EventHandler, current bool, kinds ...model.Kind) future.Future
	UnregisterHandler(h EventHandler, kinds ...model.Kind)
}

type HandlerRegistry interface {
	HandlerRegistration
	EventHandler

	TriggerEvent(Id)
}

type eventhandlers []*wrapper

type registry struct {
	lock   sync.Mutex
	kinds  map[model.Kind]eventhandlers
	lister ObjectLister
}

var _ HandlerRegistry = (*registry)(nil)

func NewHandlerRegistry(l ObjectLister) HandlerRegistry {
	return &registry{
		kinds:  map[model.Kind]eventhandlers{},
		lister: l,
	}
}

func (r *registry) HandleEvent(id Id) {
	r.TriggerEvent(id)
}

func (r *registry) RegisterHandler(h EventHandler, current bool, kinds ...model.Kind) future.Future {
	f := future.NewFuture()
	if current {
		go func() {
			r.registerHandler(h, current, kinds...)
			f.Trigger()
		}()
	} else {
		r.registerHandler(h, current, kinds...)
		f.Trigger()
	}
	return f
}

func index(list []*wrapper, h EventHandler) int {
	return slices.IndexFunc(list, func(w *wrapper) bool { return w.handler == h })
}

func (r *registry) registerHandler(h EventHandler, current bool, kinds ...model.Kind) {
	if len(kinds) == 0 {
		kinds = []model.Kind{""}
	}

	for _, kind := range kinds {
		r.lock.Lock()
		if index(r.kinds[kind], h) >= 0 {
			r.lock.Unlock()
			continue
		}
		w := newHandler(h)
		atomic := func() {
			r.lock.Lock()
			if index(r.kinds[kind], h) < 0 {
				r.kinds[kind] = append(r.kinds[kind], w)
			}
			r.lock.Unlock()
		}
		r.lock.Unlock()

		var list []Id
		if current && r.lister != nil {
			list = r.lister.ListObjectIds(kind, atomic)
		} else {
			atomic()
		}
		w.Rampup(list)
	}
}

func (r *registry) UnregisterHandler(h EventHandler, kinds ...model.Kind) {
	if len(kinds) == 0 {
		kinds = []model.Kind{""}
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, kind := range kinds {
		handlers := r.kinds[kind]
		if i := index(handlers, h); i >= 0 {
			handlers = slices.Delete(handlers, i, i+1)
		}
		if len(handlers) > 0 {
			r.kinds[kind] = handlers
		} else {
			delete(r.kinds, kind)
		}
	}
}

func (r *registry) getHandlers(id Id) []*wrapper {
	r.lock.Lock()
	defer r.lock.Unlock()

	handlers := slices.Clone(r.kinds[""])
	return append(handlers, r.kinds[id.Kind]...)
}

func (r *registry) TriggerEvent(id Id) {
	for _, h := range r.getHandlers(id) {
		h.HandleEvent(id)
	}
}

// wrapper handles the rampup of a handler.
// It queues new events until the events for the
// actual ids are propagated.
type wrapper struct {
	lock    sync.Mutex
	rampup  bool
	queue   []Id
	handler EventHandler
}

var _ EventHandler = (*wrapper)(nil)

func newHandler(h EventHandler) *wrapper {
	return &wrapper{
		handler: h,
		rampup:  true,
	}
}

func (w *wrapper) Rampup(ids []Id) {
	w.lock.Lock()
	defer w.lock.Unlock()

	for _, id := range ids {
		w.handler.HandleEvent(id)
	}
	for _, id := range w.queue {
		w.handler.HandleEvent(id)
	}
	w.rampup = false
	w.queue = nil
}

func (w *wrapper) HandleEvent(id Id) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.rampup {
		w.queue = append(w.queue, id)
	} else {
		w.handler.HandleEvent(id)
	}
}
