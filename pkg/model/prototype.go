package model

import (
	"fmt"
	"slices"
	"strings"
)

// Requirement references a service, and optionally one of its components,
// by prototype name.
type Requirement struct {
	Service   string `json:"service"`
	Component string `json:"component,omitempty"`
}

func (r Requirement) String() string {
	if r.Component == "" {
		return r.Service
	}
	return r.Service + "/" + r.Component
}

// Import declares a required or optional import of a cluster or service.
// It is satisfied by a binding to a cluster or service whose prototype
// name equals the import name.
type Import struct {
	Name      string `json:"name"`
	Required  bool   `json:"required,omitempty"`
	Multibind bool   `json:"multibind,omitempty"`
}

// ConfigField describes a configuration parameter. Fields of a group are
// named <group>/<field>.
type ConfigField struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
}

// Group returns the group part of the field name or an empty string.
func (f *ConfigField) Group() string {
	if i := strings.Index(f.Name, "/"); i > 0 {
		return f.Name[:i]
	}
	return ""
}

// Prototype is the immutable schema of an object.
type Prototype struct {
	Kind    Kind   `json:"-"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`

	// Required marks a service prototype the cluster cannot do without.
	Required bool          `json:"required,omitempty"`
	Config   []ConfigField `json:"config,omitempty"`
	Imports  []Import      `json:"import,omitempty"`
	Requires []Requirement `json:"requires,omitempty"`

	// Components lists the component prototypes of a service prototype.
	Components []*Prototype `json:"components,omitempty"`

	Constraint Constraint   `json:"constraint,omitempty"`
	BoundTo    *Requirement `json:"bound_to,omitempty"`

	bundle *Bundle
	parent *Prototype
}

func (p *Prototype) String() string {
	return fmt.Sprintf("%s %s", p.Kind, p.Name)
}

func (p *Prototype) Bundle() *Bundle {
	return p.bundle
}

// Parent is the service prototype of a component prototype.
func (p *Prototype) Parent() *Prototype {
	return p.parent
}

func (p *Prototype) Component(name string) *Prototype {
	for _, c := range p.Components {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (p *Prototype) ConfigField(name string) *ConfigField {
	for i := range p.Config {
		if p.Config[i].Name == name {
			return &p.Config[i]
		}
	}
	return nil
}

// Bundle groups the prototypes delivered together. A bundle either
// describes a cluster with its services and components, or a provider
// with its hosts.
type Bundle struct {
	Name     string       `json:"name"`
	Version  string       `json:"version,omitempty"`
	Cluster  *Prototype   `json:"cluster,omitempty"`
	Services []*Prototype `json:"services,omitempty"`
	Provider *Prototype   `json:"provider,omitempty"`
	Host     *Prototype   `json:"host,omitempty"`
}

// Service returns the service prototype with the given name.
func (b *Bundle) Service(name string) *Prototype {
	for _, s := range b.Services {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// RequiredServices lists the service prototypes marked as required,
// ordered by name.
func (b *Bundle) RequiredServices() []*Prototype {
	var r []*Prototype
	for _, s := range b.Services {
		if s.Required {
			r = append(r, s)
		}
	}
	slices.SortFunc(r, func(a, b *Prototype) int { return strings.Compare(a.Name, b.Name) })
	return r
}

// Complete links the prototypes of the bundle and validates them.
// It must be called before any prototype of the bundle is used.
func (b *Bundle) Complete() error {
	if b.Cluster == nil && b.Provider == nil {
		return fmt.Errorf("bundle %q: neither cluster nor provider prototype", b.Name)
	}
	if b.Cluster != nil && b.Provider != nil {
		return fmt.Errorf("bundle %q: cluster and provider prototype in one bundle", b.Name)
	}
	if b.Provider != nil {
		if len(b.Services) > 0 {
			return fmt.Errorf("bundle %q: services in provider bundle", b.Name)
		}
		if b.Host == nil {
			b.Host = &Prototype{Name: b.Provider.Name + "-host"}
		}
		b.link(b.Provider, KindProvider, nil)
		b.link(b.Host, KindHost, nil)
		return nil
	}
	if b.Host != nil {
		return fmt.Errorf("bundle %q: host prototype in cluster bundle", b.Name)
	}

	b.link(b.Cluster, KindCluster, nil)
	names := map[string]bool{}
	for _, s := range b.Services {
		if names[s.Name] {
			return fmt.Errorf("bundle %q: duplicate service %q", b.Name, s.Name)
		}
		names[s.Name] = true
		b.link(s, KindService, nil)
		comps := map[string]bool{}
		for _, c := range s.Components {
			if comps[c.Name] {
				return fmt.Errorf("bundle %q: duplicate component %q in service %q", b.Name, c.Name, s.Name)
			}
			comps[c.Name] = true
			b.link(c, KindComponent, s)
		}
	}

	for _, s := range b.Services {
		for _, r := range s.Requires {
			if err := b.checkRequirement(s, r); err != nil {
				return err
			}
		}
		for _, c := range s.Components {
			for _, r := range c.Requires {
				if err := b.checkRequirement(c, r); err != nil {
					return err
				}
			}
			if c.BoundTo != nil {
				if err := b.checkRequirement(c, *c.BoundTo); err != nil {
					return err
				}
				if c.BoundTo.Component == "" {
					return fmt.Errorf("bundle %q: %s: bound_to requires a component", b.Name, c)
				}
			}
		}
	}
	return nil
}

func (b *Bundle) link(p *Prototype, kind Kind, parent *Prototype) {
	p.Kind = kind
	p.bundle = b
	p.parent = parent
	if p.Version == "" {
		p.Version = b.Version
	}
}

func (b *Bundle) checkRequirement(p *Prototype, r Requirement) error {
	s := b.Service(r.Service)
	if s == nil {
		return fmt.Errorf("bundle %q: %s requires unknown service %q", b.Name, p, r.Service)
	}
	if r.Component != "" && s.Component(r.Component) == nil {
		return fmt.Errorf("bundle %q: %s requires unknown component %q", b.Name, p, r)
	}
	return nil
}
