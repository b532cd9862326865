package engine

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/detect"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/resolver"
	"github.com/mandelsoft/concerns/pkg/utils"
)

func (t *tx) object(id ObjectId, kinds ...model.Kind) (*model.Object, error) {
	o := t.graph.Get(id)
	if o == nil {
		return nil, fmt.Errorf("%w: %s: object not found", graph.ErrInvalidState, id)
	}
	if len(kinds) > 0 {
		for _, k := range kinds {
			if id.Kind == k {
				return o, nil
			}
		}
		return nil, fmt.Errorf("%w: %s: unexpected object kind", graph.ErrInvalidState, id)
	}
	return o, nil
}

// recompute runs the detectors for the given owners and adapts their
// issues. Afterwards the related objects of all concerns owned by
// them are recomputed. Deleted owners are ignored.
func (t *tx) recompute(ids ...ObjectId) error {
	for _, id := range uniqueIds(ids) {
		o := t.graph.Get(id)
		if o == nil {
			continue
		}
		findings, err := detect.Detect(t.graph, id)
		if err != nil {
			return err
		}
		for _, cause := range detect.CausesFor(id.Kind) {
			cur := t.store.FindOwn(id, cause)
			f := detect.Find(findings, cause)
			switch {
			case f == nil && cur != nil:
				t.delete(cur)
			case f != nil && cur == nil:
				t.raiseIssue(o, *f)
			case f != nil:
				if !reflect.DeepEqual(cur.Reason, concern.IssueReason(o, cause, f.Target)) {
					t.delete(cur)
					t.raiseIssue(o, *f)
				}
			}
		}
		if err := t.reresolve(id); err != nil {
			return err
		}
	}
	return nil
}

// reresolve recomputes the related objects of all issues and flags
// owned by the given objects. Lock sets are fixed at action start.
func (t *tx) reresolve(ids ...ObjectId) error {
	for _, id := range uniqueIds(ids) {
		if !t.graph.Exists(id) {
			continue
		}
		var related sets.Set[ObjectId]
		for _, c := range t.store.OwnConcernsOf(id) {
			if c.Type == concern.TypeLock {
				continue
			}
			if related == nil {
				related = resolver.Resolve(t.graph, id)
			}
			changed, err := t.store.UpdateRelated(c.Id, related)
			if err != nil {
				return err
			}
			if changed {
				t.log.Debug("updated related objects of {{concern}}", "concern", c.String())
			}
		}
	}
	return nil
}

func (t *tx) raiseIssue(o *model.Object, f detect.Finding) *concern.Item {
	return t.insert(&concern.Item{
		Owner:  o.Id,
		Type:   concern.TypeIssue,
		Cause:  f.Cause,
		Name:   concern.IssueName(f.Cause),
		Reason: concern.IssueReason(o, f.Cause, f.Target),
	}, f.Detail)
}

func (t *tx) raiseFlag(o *model.Object, name string, cause concern.Cause, reason concern.Reason) *concern.Item {
	return t.insert(&concern.Item{
		Owner:  o.Id,
		Type:   concern.TypeFlag,
		Cause:  cause,
		Name:   name,
		Reason: reason,
	})
}

// insert adds a new concern propagated by the resolver. Locks must
// provide their related objects.
func (t *tx) insert(i *concern.Item, detail ...string) *concern.Item {
	if i.Id == "" {
		i.Id = uuid.NewString()
	}
	if i.Related == nil {
		i.Related = resolver.Resolve(t.graph, i.Owner)
	}
	n, created := t.store.Insert(i)
	if created {
		t.log.Debug("raised {{type}} {{name}} on {{owner}}", "type", n.Type, "name", n.Name, "owner", n.Owner.String(),
			"detail", utils.Optional(detail...), "related", len(n.Related))
	}
	return n
}

func (t *tx) delete(i *concern.Item) {
	if t.store.Delete(i.Id) {
		t.log.Debug("removed {{type}} {{name}} from {{owner}}", "type", i.Type, "name", i.Name, "owner", i.Owner.String())
	}
}

// drop removes deleted objects from the store, the concerns owned by
// them are deleted. Running actions of deleted owners are discarded.
func (t *tx) drop(ids ...ObjectId) {
	for _, id := range ids {
		t.store.DropObject(id)
		for aid, a := range t.actions {
			if a.Owner == id {
				t.log.Info("discarding action {{action}} of deleted {{owner}}", "action", aid, "owner", id.String())
				delete(t.actions, aid)
			}
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// topology

// region provides the objects whose concerns may be affected by
// topology changes of the given objects: for every object in a
// cluster the cluster with its services, components and hosts, and
// the providers of those hosts.
func region(g graph.Reader, ids ...ObjectId) sets.Set[ObjectId] {
	r := sets.New[ObjectId]()
	for _, id := range ids {
		if !g.Exists(id) {
			continue
		}
		r.Insert(id)
		if id.Kind == model.KindProvider {
			r.Insert(g.ProviderHosts(id)...)
			continue
		}
		if p := g.ProviderOf(id); !p.IsZero() {
			r.Insert(p)
		}
		c := g.ClusterOf(id)
		if c.IsZero() {
			continue
		}
		r.Insert(c)
		r.Insert(g.ClusterServices(c)...)
		r.Insert(g.ClusterComponents(c)...)
		for _, h := range g.ClusterHosts(c) {
			r.Insert(h, g.ProviderOf(h))
		}
	}
	return r
}

func regionList(g graph.Reader, ids ...ObjectId) []ObjectId {
	return utils.SortedList(region(g, ids...), model.CompareObjectId)
}

// redistribute recomputes the related objects of all concerns
// owned by objects of the region before and after a topology change,
// or appearing on an object of these regions.
func (t *tx) redistribute(before sets.Set[ObjectId], ids ...ObjectId) error {
	objs := before.Union(region(t.graph, ids...))
	owners := objs.Clone()
	for o := range objs {
		for _, c := range t.store.ConcernsOf(o) {
			owners.Insert(c.Owner)
		}
	}
	return t.reresolve(utils.SortedList(owners, model.CompareObjectId)...)
}

// topology runs a topology change. The related objects of all affected
// concerns are redistributed afterwards.
func (t *tx) topology(ids []ObjectId, mod func() error) error {
	before := region(t.graph, ids...)
	if err := mod(); err != nil {
		return err
	}
	return t.redistribute(before, ids...)
}

////////////////////////////////////////////////////////////////////////////////
// locks

// locksOn provides the lock concerns appearing on an object.
func (t *tx) locksOn(id ObjectId) []*concern.Item {
	var r []*concern.Item
	for _, c := range t.store.ConcernsOf(id) {
		if c.Type == concern.TypeLock {
			r = append(r, c)
		}
	}
	return r
}

// checkUnlocked refuses operations on objects inside a lock set.
// Zero ids are ignored.
func (t *tx) checkUnlocked(cause error, ids ...ObjectId) error {
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if l := t.locksOn(id); len(l) > 0 {
			return newBlockedError(id, l, cause)
		}
	}
	return nil
}

func uniqueIds(ids []ObjectId) []ObjectId {
	if len(ids) <= 1 {
		return ids
	}
	return utils.SortedList(sets.New(ids...), model.CompareObjectId)
}
