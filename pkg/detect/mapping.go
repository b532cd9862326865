package detect

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/model"
)

// Violation describes a component failing its mapping constraints.
type Violation struct {
	Component ObjectId
	Name      string
	Message   string
}

func (v Violation) String() string {
	return fmt.Sprintf("component %s(%s): %s", v.Component, v.Name, v.Message)
}

// CheckMapping evaluates the constraints of all components of the
// services added to a cluster against the current host-component
// mapping. The violations are ordered by component.
//
// A component must satisfy its host count constraint. A mapped
// component with requirements needs the required services to be
// added and required components to be mapped. A component bound to
// another one must be placed on exactly the same hosts.
// Maintenance mode does not affect the evaluation.
func CheckMapping(g graph.Reader, cluster ObjectId) []Violation {
	var r []Violation

	total := len(g.ClusterHosts(cluster))
	for _, c := range g.ClusterComponents(cluster) {
		o := g.Get(c)
		if o == nil || o.Prototype == nil {
			continue
		}
		add := func(msg string, args ...any) {
			r = append(r, Violation{Component: c, Name: o.Name, Message: fmt.Sprintf(msg, args...)})
		}
		proto := o.Prototype
		hosts := g.HostsOfComponent(c)

		if msg := proto.Constraint.Check(len(hosts), total); msg != "" {
			add("constraint %s: %s", proto.Constraint, msg)
			continue
		}
		if len(hosts) > 0 {
			if msg := checkRequires(g, cluster, proto.Requires); msg != "" {
				add("%s", msg)
				continue
			}
		}
		if proto.BoundTo != nil {
			if msg := checkBoundTo(g, cluster, hosts, *proto.BoundTo); msg != "" {
				add("%s", msg)
			}
		}
	}
	return r
}

func checkRequires(g graph.Reader, cluster ObjectId, requires []model.Requirement) string {
	for _, req := range requires {
		s := g.FindService(cluster, req.Service)
		if s.IsZero() {
			return fmt.Sprintf("requires service %q", req.Service)
		}
		if req.Component == "" {
			continue
		}
		c := g.FindComponent(s, req.Component)
		if c.IsZero() || len(g.HostsOfComponent(c)) == 0 {
			return fmt.Sprintf("requires mapped component %q", req)
		}
	}
	return ""
}

func checkBoundTo(g graph.Reader, cluster ObjectId, hosts []ObjectId, bound model.Requirement) string {
	var target []ObjectId
	if s := g.FindService(cluster, bound.Service); !s.IsZero() {
		if c := g.FindComponent(s, bound.Component); !c.IsZero() {
			target = g.HostsOfComponent(c)
		}
	}
	if len(hosts) == 0 && len(target) == 0 {
		return ""
	}
	if !sets.New(hosts...).Equal(sets.New(target...)) {
		return fmt.Sprintf("must be placed on the same hosts as %q", bound)
	}
	return ""
}
