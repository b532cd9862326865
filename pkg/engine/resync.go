package engine

import (
	"context"
	"fmt"

	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/pool"
)

// CmdResync is the pool command enqueuing all objects for
// recomputation.
const CmdResync = pool.Command("resync")

type reconciler struct {
	engine *Engine
	ctx    context.Context
}

var _ pool.Action = (*reconciler)(nil)

// Reconciler provides a pool action recomputing the concerns of
// objects and handling the resync command.
func (e *Engine) Reconciler(ctx context.Context) pool.Action {
	return &reconciler{engine: e, ctx: ctx}
}

func (r *reconciler) Reconcile(p pool.Pool, log pool.MessageContext, id model.ObjectId) pool.Status {
	if !r.engine.Snapshot().Graph().Exists(id) {
		log.Debug("object {{object}} gone", "object", id.String())
		return pool.StatusCompleted().Stop()
	}
	err := r.engine.Recompute(r.ctx, id)
	if err != nil {
		log.Warn("recompute of {{object}} failed", "object", id.String(), "error", err.Error())
	}
	return pool.StatusFor(err, graph.ErrInvalidState, errModified)
}

func (r *reconciler) Command(p pool.Pool, log pool.MessageContext, cmd pool.Command) pool.Status {
	if cmd != CmdResync {
		return pool.StatusFailed(fmt.Errorf("unexpected command %q", cmd))
	}
	n := r.engine.Resync(p)
	log.Info("enqueued {{count}} objects for resync", "count", n)
	return pool.StatusCompleted()
}

// Resync enqueues all objects into the pool.
func (e *Engine) Resync(p pool.Pool) int {
	ids := e.ListObjectIds("")
	for _, id := range ids {
		p.EnqueueKey(id)
	}
	return len(ids)
}

// Register registers the reconciler at a pool for all objects and the
// resync command.
func (e *Engine) Register(ctx context.Context, p pool.Pool) {
	r := e.Reconciler(ctx)
	p.AddAction(pool.AllObjects, r)
	p.AddAction(CmdResync, r)
}
