package landscape

import (
	"fmt"
	"strings"

	"github.com/mandelsoft/logging"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/utils"
)

var REALM = logging.DefineRealm("concerns/landscape", "declarative object landscapes")

// Landscape is the declarative description of bundles and an object
// topology.
type Landscape struct {
	Bundles   []*model.Bundle `json:"bundles"`
	Providers []Provider      `json:"providers,omitempty"`
	Clusters  []Cluster       `json:"clusters,omitempty"`
}

// Object holds the attributes common to all objects.
type Object struct {
	Name string `json:"name"`
	// State is applied after the complete topology has been created.
	State           string                    `json:"state,omitempty"`
	MaintenanceMode model.MaintenanceMode     `json:"maintenanceMode,omitempty"`
	Config          map[string]any            `json:"config,omitempty"`
	Attr            map[string]map[string]any `json:"attr,omitempty"`
	Meta            map[string]any            `json:"adcmMeta,omitempty"`
}

func (o *Object) config() model.Config {
	return model.Config{Values: o.Config, Attr: o.Attr, Meta: o.Meta}
}

type Provider struct {
	Object `json:",inline"`
	Bundle string   `json:"bundle"`
	Hosts  []Object `json:"hosts,omitempty"`
}

type Cluster struct {
	Object   `json:",inline"`
	Bundle   string    `json:"bundle"`
	Services []Service `json:"services,omitempty"`
	// Hosts lists the names of the member hosts.
	Hosts   []string  `json:"hosts,omitempty"`
	Mapping []Mapping `json:"mapping,omitempty"`
	Imports []Import  `json:"imports,omitempty"`
}

type Service struct {
	Object     `json:",inline"`
	Components []Object `json:"components,omitempty"`
	Imports    []Import `json:"imports,omitempty"`
}

// Mapping maps a component, given as <service>/<component>, to a host.
type Mapping struct {
	Host      string `json:"host"`
	Component string `json:"component"`
}

// Import binds an import to a source given as <cluster> or
// <cluster>/<service>.
type Import struct {
	Import string `json:"import"`
	Source string `json:"source"`
}

// Parse parses and validates a landscape document.
func Parse(data []byte) (*Landscape, error) {
	var l Landscape
	if err := yaml.UnmarshalStrict(data, &l); err != nil {
		return nil, fmt.Errorf("invalid landscape: %w", err)
	}
	if err := l.Complete(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Load reads a landscape file.
func Load(path string, fss ...vfs.FileSystem) (*Landscape, error) {
	fs := utils.OptionalDefaulted(vfs.FileSystem(osfs.OsFs), fss...)
	data, err := vfs.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Complete completes the bundles and validates the references of
// the landscape.
func (l *Landscape) Complete() error {
	bundles := map[string]bool{}
	for _, b := range l.Bundles {
		if bundles[b.Name] {
			return fmt.Errorf("duplicate bundle %q", b.Name)
		}
		bundles[b.Name] = true
		if err := b.Complete(); err != nil {
			return err
		}
	}

	hosts := map[string]bool{}
	for _, p := range l.Providers {
		b := l.Bundle(p.Bundle)
		if b == nil || b.Provider == nil {
			return fmt.Errorf("provider %q: unknown provider bundle %q", p.Name, p.Bundle)
		}
		for _, h := range p.Hosts {
			if hosts[h.Name] {
				return fmt.Errorf("duplicate host %q", h.Name)
			}
			hosts[h.Name] = true
		}
	}
	for _, c := range l.Clusters {
		b := l.Bundle(c.Bundle)
		if b == nil || b.Cluster == nil {
			return fmt.Errorf("cluster %q: unknown cluster bundle %q", c.Name, c.Bundle)
		}
		for _, s := range c.Services {
			p := b.Service(s.Name)
			if p == nil {
				return fmt.Errorf("cluster %q: unknown service %q", c.Name, s.Name)
			}
			for _, comp := range s.Components {
				if p.Component(comp.Name) == nil {
					return fmt.Errorf("cluster %q: unknown component %q of service %q", c.Name, comp.Name, s.Name)
				}
			}
		}
		for _, h := range c.Hosts {
			if !hosts[h] {
				return fmt.Errorf("cluster %q: unknown host %q", c.Name, h)
			}
		}
		for _, m := range c.Mapping {
			if _, _, err := splitComponent(m.Component); err != nil {
				return fmt.Errorf("cluster %q: %w", c.Name, err)
			}
		}
	}
	return nil
}

// Bundle provides the bundle with the given name.
func (l *Landscape) Bundle(name string) *model.Bundle {
	for _, b := range l.Bundles {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func splitComponent(s string) (string, string, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid component reference %q: <service>/<component> expected", s)
	}
	return parts[0], parts[1], nil
}
