// Package resolver computes the objects a concern appears on.
//
// The propagation rules are kept in a closed per-kind rule table. A
// rule yields the direct targets of an owner and the gateways, whose
// own rule is applied in turn. Hosts act as gateways for provider
// owned concerns. The edges walked form a DAG rooted at clusters and
// providers, a visited set guards the traversal.
package resolver

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/utils"
)

type ObjectId = model.ObjectId

type rule func(g graph.Reader, id ObjectId, targets sets.Set[ObjectId]) (gateways []ObjectId)

var rules = map[model.Kind]rule{
	model.KindCluster:   clusterRule,
	model.KindService:   serviceRule,
	model.KindComponent: componentRule,
	model.KindProvider:  providerRule,
	model.KindHost:      hostRule,
}

// Resolve computes the related objects of a concern owned by the
// given object. The owner is always included, as long as it exists.
// Maintenance mode is not considered.
func Resolve(g graph.Reader, owner ObjectId) sets.Set[ObjectId] {
	targets := sets.New[ObjectId]()
	if !g.Exists(owner) {
		return targets
	}

	visited := sets.New[ObjectId]()
	work := []ObjectId{owner}
	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		if visited.Has(id) {
			continue
		}
		visited.Insert(id)
		targets.Insert(id)
		if r := rules[id.Kind]; r != nil {
			work = append(work, r(g, id, targets)...)
		}
	}
	return targets
}

// ResolveList provides the ordered result of Resolve.
func ResolveList(g graph.Reader, owner ObjectId) []ObjectId {
	return utils.SortedList(Resolve(g, owner), model.CompareObjectId)
}

// LockSet computes the objects locked by an action running on the
// given owner. It is the propagation set of the owner. Actions on a
// host declaring a cluster wide scope additionally lock the provider
// of the host.
func LockSet(g graph.Reader, owner ObjectId, clusterWide bool) sets.Set[ObjectId] {
	set := Resolve(g, owner)
	if clusterWide && owner.Kind == model.KindHost {
		if p := g.ProviderOf(owner); !p.IsZero() {
			set.Insert(p)
		}
	}
	return set
}

////////////////////////////////////////////////////////////////////////////////

func clusterRule(g graph.Reader, id ObjectId, targets sets.Set[ObjectId]) []ObjectId {
	targets.Insert(g.ClusterServices(id)...)
	targets.Insert(g.ClusterComponents(id)...)
	targets.Insert(g.ClusterHosts(id)...)
	return nil
}

func serviceRule(g graph.Reader, id ObjectId, targets sets.Set[ObjectId]) []ObjectId {
	if c := g.ClusterOf(id); !c.IsZero() {
		targets.Insert(c)
	}
	for _, c := range g.ServiceComponents(id) {
		targets.Insert(c)
		targets.Insert(g.HostsOfComponent(c)...)
	}
	return nil
}

func componentRule(g graph.Reader, id ObjectId, targets sets.Set[ObjectId]) []ObjectId {
	if o := g.Get(id); o != nil {
		targets.Insert(o.Owner, o.Cluster)
	}
	targets.Insert(g.HostsOfComponent(id)...)
	return nil
}

// providerRule reaches the hosts of the provider, which forward the
// concern as gateways.
func providerRule(g graph.Reader, id ObjectId, targets sets.Set[ObjectId]) []ObjectId {
	hosts := g.ProviderHosts(id)
	targets.Insert(hosts...)
	return hosts
}

// hostRule never propagates back to the provider of the host.
func hostRule(g graph.Reader, id ObjectId, targets sets.Set[ObjectId]) []ObjectId {
	if c := g.ClusterOf(id); !c.IsZero() {
		targets.Insert(c)
	}
	for _, c := range g.ComponentsOfHost(id) {
		targets.Insert(c)
		if o := g.Get(c); o != nil {
			targets.Insert(o.Owner)
		}
	}
	return nil
}
