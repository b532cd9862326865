package engine

import (
	"context"
	"fmt"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/graph"
)

// RaiseFlag raises a flag with the given name on an owner. Raising
// an existing flag is a no-op. The id of the flag is returned.
func (e *Engine) RaiseFlag(ctx context.Context, owner ObjectId, name string, msg string) (string, error) {
	var id string
	err := e.run(ctx, "raise-flag", objectsOf(owner), func(t *tx) error {
		o, err := t.object(owner)
		if err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("%w: %s: empty flag name", graph.ErrInvalidState, owner)
		}
		if concern.IsReservedName(name) {
			return fmt.Errorf("%w: %s: flag name %q is reserved", graph.ErrInvalidState, owner, name)
		}
		id = t.raiseFlag(o, name, concern.CauseConfig, concern.FlagReason(o, msg)).Id
		return nil
	})
	return id, err
}

// LowerFlag removes the flag with the given name from an owner.
// It reports whether a flag has been removed.
func (e *Engine) LowerFlag(ctx context.Context, owner ObjectId, name string) (bool, error) {
	found := false
	err := e.run(ctx, "lower-flag", objectsOf(owner), func(t *tx) error {
		c := t.store.FindOwnByName(owner, concern.TypeFlag, name)
		if c == nil {
			return nil
		}
		found = true
		t.delete(c)
		return nil
	})
	return found, err
}

// RemoveConcern is the manual removal of a concern by a user. Only
// flags can be removed, if the authorizer grants it and the owner is
// not locked by a running action.
func (e *Engine) RemoveConcern(ctx context.Context, user string, id string) error {
	scope := func(graph.Reader) []ObjectId {
		if c := e.GetConcern(id); c != nil {
			return []ObjectId{c.Owner}
		}
		return nil
	}
	return e.run(ctx, "remove-concern", scope, func(t *tx) error {
		c := t.store.Get(id)
		if c == nil {
			return fmt.Errorf("%w: %s", concern.ErrConcernNotFound, id)
		}
		if c.Type != concern.TypeFlag {
			return fmt.Errorf("%w: %s is a %s", ErrNotRemovable, c, c.Type)
		}
		if !e.settings.Authorizer.MayRemoveConcern(user, c) {
			return fmt.Errorf("%w: user %q may not remove %s", ErrNotAuthorized, user, c)
		}
		if l := t.locksOn(c.Owner); len(l) > 0 {
			return newBlockedError(c.Owner, l, ErrConcernLockedByJob)
		}
		t.delete(c)
		return nil
	})
}
