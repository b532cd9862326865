package model

import (
	"fmt"
	"slices"
)

// StateCreated is the initial lifecycle state of every object.
const StateCreated = "created"

// MaintenanceMode is a runtime attribute of hosts, services and components.
// It gates execution and is neutral with respect to concerns.
type MaintenanceMode string

const (
	MaintenanceModeOff      MaintenanceMode = "off"
	MaintenanceModeOn       MaintenanceMode = "on"
	MaintenanceModeChanging MaintenanceMode = "changing"
)

func ParseMaintenanceMode(s string) (MaintenanceMode, error) {
	switch m := MaintenanceMode(s); m {
	case MaintenanceModeOff, MaintenanceModeOn, MaintenanceModeChanging:
		return m, nil
	}
	return "", fmt.Errorf("invalid maintenance mode %q", s)
}

// SupportsMaintenanceMode reports whether objects of the given kind
// carry a maintenance mode.
func SupportsMaintenanceMode(k Kind) bool {
	return k == KindHost || k == KindService || k == KindComponent
}

// ImportBinding binds an import of a cluster or service to an
// exporting cluster or service.
type ImportBinding struct {
	Import string   `json:"import"`
	Source ObjectId `json:"source"`
}

// Object is a node of the object graph.
// Objects stored in a graph are never modified in place, the graph
// replaces them with modified copies.
type Object struct {
	Id        ObjectId   `json:"id"`
	Name      string     `json:"name"`
	Prototype *Prototype `json:"-"`

	State           string          `json:"state"`
	MaintenanceMode MaintenanceMode `json:"maintenanceMode,omitempty"`
	Config          Config          `json:"config"`

	// Owner is the exclusive owner: the cluster of a service, the service
	// of a component and the provider of a host. It is zero for roots.
	Owner ObjectId `json:"owner,omitempty"`
	// Cluster is the cluster a service or component belongs to, or the
	// cluster a host is a member of.
	Cluster ObjectId `json:"cluster,omitempty"`

	Imports []ImportBinding `json:"imports,omitempty"`
}

func (o *Object) GetKind() Kind {
	return o.Id.Kind
}

func (o *Object) String() string {
	return fmt.Sprintf("%s(%s)", o.Id, o.Name)
}

// Copy provides a copy of the object, which can be modified without
// affecting the original.
func (o *Object) Copy() *Object {
	n := *o
	n.Config = o.Config.Copy()
	n.Imports = slices.Clone(o.Imports)
	return &n
}

// IsCreated reports whether the object is still in its initial state.
func (o *Object) IsCreated() bool {
	return o.State == "" || o.State == StateCreated
}
