package engine

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/mandelsoft/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/database"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/metrics"
	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/utils"
)

// tx is the processing context of a single event. It works on
// private copies of the graph, the store and the action table.
type tx struct {
	ctx   context.Context
	log   logging.Logger
	event string

	base    *world
	graph   *graph.Graph
	store   *concern.Store
	actions map[int64]*Action

	// rewrite lists persisted concern ids to be replaced by the
	// complete store content on commit.
	rewrite []string
}

// scopeFunc determines the owners to lock for an event.
type scopeFunc func(g graph.Reader) []ObjectId

func noScope(graph.Reader) []ObjectId {
	return nil
}

// run processes an event. The owners provided by scope are locked in
// their total order, fn is executed on a new transaction, which is
// committed afterwards. If a concurrent event committed meanwhile,
// the complete event is repeated.
func (e *Engine) run(ctx context.Context, event string, scope scopeFunc, fn func(t *tx) error) error {
	ctx = e.context(ctx)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "concerns."+event,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("concerns.event", event)),
	)
	defer span.End()

	log := e.settings.Logging.Logger(REALM).WithValues("event", event)

	var err error
	var t *tx
	for attempt := 0; ; attempt++ {
		t, err = e.attempt(ctx, log, event, scope, fn)
		if !errors.Is(err, errModified) || attempt >= e.settings.MaxRetries {
			break
		}
		e.settings.Metrics.Retry(event)
		span.AddEvent("retry")
		log.Debug("concurrent modification, repeating event (attempt {{attempt}})", "attempt", attempt+1)
	}

	if err != nil {
		result := metrics.ResultFailed
		if _, ok := IsBlocked(err); ok || errors.Is(err, graph.ErrMappingConflict) {
			result = metrics.ResultRefused
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.settings.Metrics.EventDone(event, result, start)
		log.Info("event {{result}}: {{error}}", "result", result, "error", err.Error())
		return err
	}
	span.SetAttributes(attribute.Int("concerns.touched", len(t.store.Touched())))
	e.settings.Metrics.EventDone(event, metrics.ResultSucceeded, start)
	log.Info("event done, {{touched}} concerns touched", "touched", len(t.store.Touched()))
	e.notify(t)
	return nil
}

func (e *Engine) attempt(ctx context.Context, log logging.Logger, event string, scope scopeFunc, fn func(t *tx) error) (*tx, error) {
	owners := scope(e.world.Load().graph)
	unlock, err := e.locks.LockAll(ctx, model.CompareObjectId, owners...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	base := e.world.Load()
	t := &tx{
		ctx:     ctx,
		log:     log,
		event:   event,
		base:    base,
		graph:   base.graph.Clone(),
		store:   base.store.Clone(),
		actions: maps.Clone(base.actions),
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	return t, e.commitTx(ctx, t)
}

func (e *Engine) commitTx(ctx context.Context, t *tx) error {
	if err := e.commit.Lock(ctx); err != nil {
		return err
	}
	defer e.commit.Unlock()

	cur := e.world.Load()
	if cur.version != t.base.version {
		return errModified
	}
	if db := e.settings.Database; db != nil {
		change := t.change()
		if !change.IsEmpty() {
			if err := db.Apply(change); err != nil {
				return err
			}
		}
	}
	e.world.Store(&world{
		version: cur.version + 1,
		graph:   t.graph,
		store:   t.store,
		actions: t.actions,
	})
	e.settings.Metrics.SetConcerns(countConcerns(t.store))
	return nil
}

// change provides the persistence change for all concerns touched
// by the transaction.
func (t *tx) change() *database.Change {
	change := &database.Change{}
	if t.rewrite != nil {
		for _, i := range t.store.All() {
			change.AddItem(i)
		}
		for _, id := range t.rewrite {
			if t.store.Get(id) == nil {
				change.AddDeleted(id)
			}
		}
		return change
	}
	for _, id := range t.store.Touched() {
		if i := t.store.Get(id); i != nil {
			change.AddItem(i)
		} else if t.base.store.Get(id) != nil {
			change.AddDeleted(id)
		}
	}
	return change
}

// notify triggers events for all objects whose concerns have changed.
func (e *Engine) notify(t *tx) {
	objs := sets.New[ObjectId]()
	for _, id := range t.store.Touched() {
		if i := t.base.store.Get(id); i != nil {
			objs = objs.Union(i.Related)
		}
		if i := t.store.Get(id); i != nil {
			objs = objs.Union(i.Related)
		}
	}
	for _, id := range utils.SortedList(objs, model.CompareObjectId) {
		e.events.TriggerEvent(id)
	}
}

func countConcerns(s *concern.Store) map[string]int {
	counts := map[string]int{
		string(concern.TypeIssue): 0,
		string(concern.TypeFlag):  0,
		string(concern.TypeLock):  0,
	}
	for _, i := range s.All() {
		counts[string(i.Type)]++
	}
	return counts
}
