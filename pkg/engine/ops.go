package engine

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/detect"
	"github.com/mandelsoft/concerns/pkg/graph"
	"github.com/mandelsoft/concerns/pkg/model"
)

func scopeOf(ids ...ObjectId) scopeFunc {
	return func(g graph.Reader) []ObjectId {
		return regionList(g, ids...)
	}
}

func objectsOf(ids ...ObjectId) scopeFunc {
	return func(graph.Reader) []ObjectId {
		return ids
	}
}

// CreateCluster creates a cluster from a cluster prototype and
// raises its initial issues.
func (e *Engine) CreateCluster(ctx context.Context, proto *model.Prototype, name string) (ObjectId, error) {
	var id ObjectId
	err := e.run(ctx, "create-cluster", noScope, func(t *tx) error {
		o, err := t.graph.AddCluster(proto, name)
		if err != nil {
			return err
		}
		id = o.Id
		return t.recompute(id)
	})
	return id, err
}

func (e *Engine) CreateProvider(ctx context.Context, proto *model.Prototype, name string) (ObjectId, error) {
	var id ObjectId
	err := e.run(ctx, "create-provider", noScope, func(t *tx) error {
		o, err := t.graph.AddProvider(proto, name)
		if err != nil {
			return err
		}
		id = o.Id
		return t.recompute(id)
	})
	return id, err
}

// CreateHost creates a host of a provider. The concerns of the
// provider are propagated to the new host.
func (e *Engine) CreateHost(ctx context.Context, provider ObjectId, name string) (ObjectId, error) {
	var id ObjectId
	err := e.run(ctx, "create-host", objectsOf(provider), func(t *tx) error {
		o, err := t.graph.AddHost(provider, name)
		if err != nil {
			return err
		}
		id = o.Id
		if err := t.recompute(id); err != nil {
			return err
		}
		return t.reresolve(provider)
	})
	return id, err
}

// SaveConfig stores a new configuration. If the object already left
// its initial state and the configuration differs from the previous
// one, the outdated config flag is raised.
func (e *Engine) SaveConfig(ctx context.Context, id ObjectId, cfg model.Config) error {
	return e.run(ctx, "save-config", objectsOf(id), func(t *tx) error {
		o, err := t.object(id)
		if err != nil {
			return err
		}
		differs, err := o.Config.Differs(cfg)
		if err != nil {
			return fmt.Errorf("%w: %s: invalid config: %w", graph.ErrInvalidState, id, err)
		}
		if err := t.graph.SetConfig(id, cfg); err != nil {
			return err
		}
		if err := t.recompute(id); err != nil {
			return err
		}
		o = t.graph.Get(id)
		if !o.IsCreated() && differs {
			t.raiseFlag(o, concern.NameAdcmOutdatedConfig, concern.CauseConfig, concern.OutdatedConfigReason(o))
		}
		return nil
	})
}

// SetMapping replaces the host-component mapping of a cluster.
// Unless disabled by the settings, mappings violating the constraints
// of components of the mapped services are refused with
// graph.ErrMappingConflict.
func (e *Engine) SetMapping(ctx context.Context, cluster ObjectId, entries []model.HostComponent) error {
	return e.run(ctx, "set-mapping", scopeOf(cluster), func(t *tx) error {
		if _, err := t.object(cluster, model.KindCluster); err != nil {
			return err
		}
		if err := t.checkUnlocked(nil, cluster); err != nil {
			return err
		}
		return t.topology([]ObjectId{cluster}, func() error {
			if err := t.graph.SetMapping(cluster, entries); err != nil {
				return err
			}
			if !e.settings.LaxMapping {
				if v := t.mappingViolations(cluster, entries); len(v) > 0 {
					return fmt.Errorf("%w: %s", graph.ErrMappingConflict, v[0])
				}
			}
			ids := append([]ObjectId{cluster}, t.graph.ClusterServices(cluster)...)
			return t.recompute(append(ids, t.graph.ClusterComponents(cluster)...)...)
		})
	})
}

// mappingViolations checks the components of all services with
// components in the given mapping entries.
func (t *tx) mappingViolations(cluster ObjectId, entries []model.HostComponent) []detect.Violation {
	services := sets.New[ObjectId]()
	for _, e := range entries {
		if c := t.graph.Get(e.Component); c != nil {
			services.Insert(c.Owner)
		}
	}
	var r []detect.Violation
	for _, v := range detect.CheckMapping(t.graph, cluster) {
		if c := t.graph.Get(v.Component); c != nil && services.Has(c.Owner) {
			r = append(r, v)
		}
	}
	return r
}

// MoveHost changes the cluster membership of a host. A zero cluster
// removes the host from its cluster. Hosts inside a lock set are
// refused with ErrHostBusy, locked source or target clusters with
// a BlockedError.
func (e *Engine) MoveHost(ctx context.Context, host ObjectId, cluster ObjectId) error {
	return e.run(ctx, "move-host", scopeOf(host, cluster), func(t *tx) error {
		h, err := t.object(host, model.KindHost)
		if err != nil {
			return err
		}
		if err := t.checkUnlocked(ErrHostBusy, host); err != nil {
			return err
		}
		old := h.Cluster
		if err := t.checkUnlocked(nil, old, cluster); err != nil {
			return err
		}
		return t.topology([]ObjectId{host, old, cluster}, func() error {
			if err := t.graph.MoveHost(host, cluster); err != nil {
				return err
			}
			return t.recompute(old, cluster, host)
		})
	})
}

// AddService adds a service with all its components to a cluster.
func (e *Engine) AddService(ctx context.Context, cluster ObjectId, prototype string) (ObjectId, error) {
	var id ObjectId
	err := e.run(ctx, "add-service", scopeOf(cluster), func(t *tx) error {
		if _, err := t.object(cluster, model.KindCluster); err != nil {
			return err
		}
		if err := t.checkUnlocked(nil, cluster); err != nil {
			return err
		}
		return t.topology([]ObjectId{cluster}, func() error {
			s, err := t.graph.AddService(cluster, prototype)
			if err != nil {
				return err
			}
			id = s.Id
			ids := append([]ObjectId{cluster}, t.graph.ClusterServices(cluster)...)
			return t.recompute(append(ids, t.graph.ServiceComponents(id)...)...)
		})
	})
	return id, err
}

// RemoveService removes a service and its components from its
// cluster. All concerns owned by them are deleted.
func (e *Engine) RemoveService(ctx context.Context, service ObjectId) error {
	return e.run(ctx, "remove-service", scopeOf(service), func(t *tx) error {
		s, err := t.object(service, model.KindService)
		if err != nil {
			return err
		}
		if err := t.checkUnlocked(nil, s.Cluster, service); err != nil {
			return err
		}
		return t.remove(s)
	})
}

// DeleteObject deletes an object. Deleting a cluster deletes its
// services and components and releases its hosts. Providers must not
// own hosts anymore. All concerns owned by deleted objects are removed
// and the deleted objects are dropped from all other concerns.
func (e *Engine) DeleteObject(ctx context.Context, id ObjectId) error {
	return e.run(ctx, "delete", scopeOf(id), func(t *tx) error {
		o, err := t.object(id)
		if err != nil {
			return err
		}
		if err := t.checkUnlocked(nil, id); err != nil {
			return err
		}
		if id.Kind == model.KindService || id.Kind == model.KindComponent {
			if err := t.checkUnlocked(nil, o.Cluster); err != nil {
				return err
			}
		}
		return t.remove(o)
	})
}

func (t *tx) remove(o *model.Object) error {
	cluster := t.graph.ClusterOf(o.Id)
	provider := t.graph.ProviderOf(o.Id)
	if o.Id.Kind == model.KindCluster {
		cluster = ObjectId{}
	}

	var importers []ObjectId
	exporters := []ObjectId{o.Id}
	if o.Id.Kind == model.KindCluster {
		exporters = append(exporters, t.graph.ClusterServices(o.Id)...)
	}
	for _, x := range exporters {
		importers = append(importers, t.graph.Importers(x)...)
	}

	return t.topology([]ObjectId{o.Id, cluster}, func() error {
		deleted, err := t.graph.Delete(o.Id)
		if err != nil {
			return err
		}
		t.drop(deleted...)
		ids := append([]ObjectId{cluster, provider}, importers...)
		if !cluster.IsZero() {
			ids = append(ids, t.graph.ClusterServices(cluster)...)
		}
		return t.recompute(ids...)
	})
}

// SaveImports replaces the import bindings of a cluster or service.
func (e *Engine) SaveImports(ctx context.Context, target ObjectId, bindings []model.ImportBinding) error {
	return e.run(ctx, "save-imports", objectsOf(target), func(t *tx) error {
		if _, err := t.object(target, model.KindCluster, model.KindService); err != nil {
			return err
		}
		if err := t.checkUnlocked(nil, target); err != nil {
			return err
		}
		if err := t.graph.SetImports(target, bindings); err != nil {
			return err
		}
		return t.recompute(target)
	})
}

// SetMaintenanceMode changes the maintenance mode of a host, service
// or component. It never changes concerns.
func (e *Engine) SetMaintenanceMode(ctx context.Context, id ObjectId, mm model.MaintenanceMode) error {
	return e.run(ctx, "set-maintenance-mode", objectsOf(id), func(t *tx) error {
		if _, err := t.object(id); err != nil {
			return err
		}
		return t.graph.SetMaintenanceMode(id, mm)
	})
}

// SetState changes the lifecycle state of an object.
func (e *Engine) SetState(ctx context.Context, id ObjectId, state string) error {
	return e.run(ctx, "set-state", objectsOf(id), func(t *tx) error {
		if _, err := t.object(id); err != nil {
			return err
		}
		return t.graph.SetState(id, state)
	})
}

// Recompute rederives the issues of an object and redistributes all
// concerns owned by it.
func (e *Engine) Recompute(ctx context.Context, id ObjectId) error {
	return e.run(ctx, "recompute", scopeOf(id), func(t *tx) error {
		if _, err := t.object(id); err != nil {
			return err
		}
		return t.recompute(id)
	})
}
