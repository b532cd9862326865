package engine

import (
	"cmp"
	"context"
	"slices"
	"sync/atomic"

	"github.com/mandelsoft/logging"
	"go.opentelemetry.io/otel/trace"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/events"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/locks"
	"github.com/mandelsoft/concerns/pkg/model"
)

var REALM = logging.DefineRealm("concerns/engine", "concern redistribution engine")

type ObjectId = model.ObjectId

// ScopeHint describes the scope declared by an action.
type ScopeHint struct {
	// ClusterWide marks host actions locking the provider of the host.
	ClusterWide bool `json:"clusterWide,omitempty"`
}

// Action is a running action.
type Action struct {
	Id      int64     `json:"id"`
	Name    string    `json:"name"`
	Owner   ObjectId  `json:"owner"`
	Scope   ScopeHint `json:"scope"`
	Concern string    `json:"concern"`
}

type ActionStatus string

const (
	ActionSucceeded ActionStatus = "success"
	ActionFailed    ActionStatus = "failed"
	ActionAborted   ActionStatus = "aborted"
)

// world is an immutable state of the engine.
type world struct {
	version int64
	graph   *graph.Graph
	store   *concern.Store
	actions map[int64]*Action
}

type Engine struct {
	settings Settings
	log      logging.UnboundLogger
	tracer   trace.Tracer

	locks  *locks.ElementLocks[ObjectId]
	commit locks.Mutex
	world  atomic.Pointer[world]
	events events.HandlerRegistry
}

var _ events.ObjectLister = (*Engine)(nil)

func New(settings Settings) *Engine {
	s := settings.complete()
	e := &Engine{
		settings: s,
		log:      logging.DynamicLogger(s.Logging, REALM),
		tracer:   s.TracerProvider.Tracer(TracerName),
		locks:    locks.NewElementLocks[ObjectId](),
	}
	e.events = events.NewHandlerRegistry(e)
	e.world.Store(&world{
		graph:   graph.New(),
		store:   concern.NewStore(),
		actions: map[int64]*Action{},
	})
	return e
}

// Snapshot provides a consistent read-only view of the current state.
func (e *Engine) Snapshot() *Snapshot {
	return &Snapshot{e.world.Load()}
}

func (e *Engine) ConcernsOf(id ObjectId) []*concern.Item {
	return e.Snapshot().ConcernsOf(id)
}

func (e *Engine) IsReady(id ObjectId) bool {
	return e.Snapshot().IsReady(id)
}

func (e *Engine) GetConcern(id string) *concern.Item {
	return e.Snapshot().Concerns().Get(id)
}

// EventRegistration provides the registration for handlers notified
// about objects whose concerns changed.
func (e *Engine) EventRegistration() events.HandlerRegistration {
	return e.events
}

func (e *Engine) ListObjectIds(kind model.Kind, atomic ...func()) []ObjectId {
	e.commit.Lock(nil)
	defer e.commit.Unlock()

	var kinds []model.Kind
	if kind != "" {
		kinds = append(kinds, kind)
	}
	list := e.world.Load().graph.Objects(kinds...)
	for _, a := range atomic {
		a()
	}
	return list
}

// Snapshot is a consistent read-only view of the object graph,
// the concern store and the running actions.
type Snapshot struct {
	w *world
}

func (s *Snapshot) Version() int64 {
	return s.w.version
}

func (s *Snapshot) Graph() graph.Reader {
	return s.w.graph
}

func (s *Snapshot) Concerns() concern.Reader {
	return s.w.store
}

func (s *Snapshot) Object(id ObjectId) *model.Object {
	return s.w.graph.Get(id)
}

func (s *Snapshot) ConcernsOf(id ObjectId) []*concern.Item {
	return s.w.store.ConcernsOf(id)
}

func (s *Snapshot) IsReady(id ObjectId) bool {
	return s.w.store.IsReady(id)
}

func (s *Snapshot) Action(id int64) *Action {
	return s.w.actions[id]
}

func (s *Snapshot) Actions() []*Action {
	list := make([]*Action, 0, len(s.w.actions))
	for _, a := range s.w.actions {
		list = append(list, a)
	}
	slices.SortFunc(list, func(a, b *Action) int { return cmp.Compare(a.Id, b.Id) })
	return list
}

func (e *Engine) context(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
