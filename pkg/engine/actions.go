package engine

import (
	"context"
	"fmt"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/resolver"
)

// StartAction registers a running action on an owner and creates its
// job lock. The lock set is computed once and stays fixed until the
// action finishes. Actions on owners carrying blocking concerns are
// refused with a BlockedError.
func (e *Engine) StartAction(ctx context.Context, id int64, owner ObjectId, name string, scope ScopeHint) (*Action, error) {
	var action *Action
	err := e.run(ctx, "action-started", scopeOf(owner), func(t *tx) error {
		if t.actions[id] != nil {
			return fmt.Errorf("%w: %d", ErrActionExists, id)
		}
		o, err := t.object(owner)
		if err != nil {
			return err
		}
		var blocking []*concern.Item
		for _, c := range t.store.ConcernsOf(owner) {
			if c.IsBlocking() {
				blocking = append(blocking, c)
			}
		}
		if len(blocking) > 0 {
			return newBlockedError(owner, blocking)
		}
		lock := t.insert(&concern.Item{
			Owner:   owner,
			Type:    concern.TypeLock,
			Cause:   concern.CauseJobLock,
			Name:    concern.NameJobLock,
			Reason:  concern.LockReason(o, concern.JobRef(name, id)),
			Related: resolver.LockSet(t.graph, owner, scope.ClusterWide),
		})
		action = &Action{
			Id:      id,
			Name:    name,
			Owner:   owner,
			Scope:   scope,
			Concern: lock.Id,
		}
		t.actions[id] = action
		return nil
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// FinishAction terminates a running action and removes its lock. On
// success a non-empty state is applied to the owner.
func (e *Engine) FinishAction(ctx context.Context, id int64, status ActionStatus, state string) error {
	scope := func(g graph.Reader) []ObjectId {
		if a := e.world.Load().actions[id]; a != nil {
			return regionList(g, a.Owner)
		}
		return nil
	}
	return e.run(ctx, "action-finished", scope, func(t *tx) error {
		a := t.actions[id]
		if a == nil {
			return fmt.Errorf("%w: %d", ErrActionNotFound, id)
		}
		delete(t.actions, id)
		if c := t.store.Get(a.Concern); c != nil {
			t.delete(c)
		}
		t.log.Info("action {{action}} on {{owner}} finished with {{status}}", "action", id, "owner", a.Owner.String(), "status", status)
		if status == ActionSucceeded && state != "" && t.graph.Exists(a.Owner) {
			return t.graph.SetState(a.Owner, state)
		}
		return nil
	})
}
