package detect

import (
	"fmt"
	"slices"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/model"
)

type ObjectId = model.ObjectId

// Finding is a cause detected for an object. Target optionally
// references the missing counterpart (a prototype or an import).
type Finding struct {
	Cause  concern.Cause
	Target *concern.ObjRef
	Detail string
}

func (f Finding) String() string {
	if f.Detail == "" {
		return string(f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Cause, f.Detail)
}

// detector checks a single cause for an object and returns nil if the
// cause is absent.
type detector func(g graph.Reader, o *model.Object) *Finding

type entry struct {
	cause  concern.Cause
	detect detector
}

var catalog = map[model.Kind][]entry{
	model.KindCluster: {
		{concern.CauseConfig, detectConfig},
		{concern.CauseService, detectService},
		{concern.CauseImport, detectImport},
		{concern.CauseHostComponent, detectHostComponent},
	},
	model.KindService: {
		{concern.CauseConfig, detectConfig},
		{concern.CauseImport, detectImport},
		{concern.CauseRequirement, detectRequirement},
	},
	model.KindComponent: {
		{concern.CauseConfig, detectConfig},
	},
	model.KindProvider: {
		{concern.CauseConfig, detectConfig},
	},
	model.KindHost: {
		{concern.CauseConfig, detectConfig},
	},
}

// CausesFor lists the causes checked for objects of the given kind.
func CausesFor(k model.Kind) []concern.Cause {
	var r []concern.Cause
	for _, e := range catalog[k] {
		r = append(r, e.cause)
	}
	return r
}

// Detect runs all detectors of the kind of the given object. The
// findings are ordered by the canonical cause order.
func Detect(g graph.Reader, id ObjectId) ([]Finding, error) {
	o := g.Get(id)
	if o == nil {
		return nil, fmt.Errorf("%w: %s: object not found", graph.ErrInvalidState, id)
	}
	if o.Prototype == nil {
		return nil, fmt.Errorf("%w: %s: no prototype", graph.ErrInvalidState, id)
	}
	var r []Finding
	for _, e := range catalog[id.Kind] {
		if f := e.detect(g, o); f != nil {
			f.Cause = e.cause
			r = append(r, *f)
		}
	}
	return r, nil
}

// Find returns the finding for the given cause, if present.
func Find(findings []Finding, cause concern.Cause) *Finding {
	i := slices.IndexFunc(findings, func(f Finding) bool { return f.Cause == cause })
	if i < 0 {
		return nil
	}
	return &findings[i]
}

////////////////////////////////////////////////////////////////////////////////

func detectConfig(g graph.Reader, o *model.Object) *Finding {
	for _, f := range o.Prototype.Config {
		if !f.Required || !o.Config.IsGroupActive(f.Group()) {
			continue
		}
		v, ok := o.Config.Lookup(f.Name)
		if !ok || isEmpty(v) {
			return &Finding{Detail: fmt.Sprintf("required field %q not set", f.Name)}
		}
	}
	return nil
}

func isEmpty(v any) bool {
	switch e := v.(type) {
	case nil:
		return true
	case string:
		return e == ""
	case []any:
		return len(e) == 0
	case map[string]any:
		return len(e) == 0
	}
	return false
}

func detectService(g graph.Reader, o *model.Object) *Finding {
	for _, s := range o.Prototype.Bundle().RequiredServices() {
		if g.FindService(o.Id, s.Name).IsZero() {
			return &Finding{Target: concern.PrototypeRef(s.Name), Detail: fmt.Sprintf("required service %q not added", s.Name)}
		}
	}
	return nil
}

func detectImport(g graph.Reader, o *model.Object) *Finding {
	for _, imp := range o.Prototype.Imports {
		if !imp.Required {
			continue
		}
		found := false
		for _, b := range o.Imports {
			if b.Import != imp.Name {
				continue
			}
			if s := g.Get(b.Source); s != nil && s.Prototype.Name == imp.Name {
				found = true
				break
			}
		}
		if !found {
			return &Finding{Target: concern.PrototypeRef(imp.Name), Detail: fmt.Sprintf("required import %q not bound", imp.Name)}
		}
	}
	return nil
}

func detectRequirement(g graph.Reader, o *model.Object) *Finding {
	for _, r := range o.Prototype.Requires {
		s := g.FindService(o.Cluster, r.Service)
		if s.IsZero() {
			return &Finding{Target: concern.PrototypeRef(r.Service), Detail: fmt.Sprintf("required service %q not added", r.Service)}
		}
		if r.Component != "" && g.FindComponent(s, r.Component).IsZero() {
			return &Finding{Target: concern.PrototypeRef(r.Component), Detail: fmt.Sprintf("required component %q not present", r)}
		}
	}
	return nil
}

func detectHostComponent(g graph.Reader, o *model.Object) *Finding {
	v := CheckMapping(g, o.Id)
	if len(v) == 0 {
		return nil
	}
	return &Finding{Detail: v[0].String()}
}
