package model

import (
	"fmt"
	"maps"
	"strings"

	"github.com/mandelsoft/concerns/pkg/utils"
)

// Config is the configuration record of an object.
//
// Values holds the parameter values, fields of a group are nested
// maps. Attr holds the group attributes (for example {"active": false}
// for a deactivated activatable group) and Meta the adcm meta
// information of the record.
type Config struct {
	Values map[string]any            `json:"config,omitempty"`
	Attr   map[string]map[string]any `json:"attr,omitempty"`
	Meta   map[string]any            `json:"adcmMeta,omitempty"`
}

func NewConfig(values map[string]any) Config {
	return Config{Values: values}
}

func (c Config) IsEmpty() bool {
	return len(c.Values) == 0 && len(c.Attr) == 0 && len(c.Meta) == 0
}

func (c Config) Copy() Config {
	r := Config{
		Values: copyMap(c.Values),
		Meta:   copyMap(c.Meta),
	}
	if c.Attr != nil {
		r.Attr = map[string]map[string]any{}
		for k, v := range c.Attr {
			r.Attr[k] = copyMap(v)
		}
	}
	return r
}

// Lookup resolves a field path (<field> or <group>/<field>).
func (c Config) Lookup(path string) (any, bool) {
	var cur any = c.Values
	for _, n := range strings.Split(path, "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[n]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// IsGroupActive reports whether a group is active. Groups
// without an explicit active attribute are active.
func (c Config) IsGroupActive(group string) bool {
	if group == "" || c.Attr == nil {
		return true
	}
	a, ok := c.Attr[group]["active"]
	if !ok {
		return true
	}
	b, ok := a.(bool)
	return !ok || b
}

// ValueHash is the canonical hash of values and group attributes.
// Values without a JSON representation are reported as error.
func (c Config) ValueHash() (string, error) {
	return utils.HashData(map[string]any{"config": utils.NonNil(c.Values), "attr": utils.NonNil(c.Attr)})
}

// MetaHash is the canonical hash of the adcm meta information.
func (c Config) MetaHash() (string, error) {
	return utils.HashData(utils.NonNil(c.Meta))
}

func (c Config) hashes() (string, string, error) {
	v, err := c.ValueHash()
	if err != nil {
		return "", "", fmt.Errorf("config values: %w", err)
	}
	m, err := c.MetaHash()
	if err != nil {
		return "", "", fmt.Errorf("config meta: %w", err)
	}
	return v, m, nil
}

// Differs reports whether two configuration records differ either
// in their values or in their adcm meta information.
func (c Config) Differs(o Config) (bool, error) {
	cv, cm, err := c.hashes()
	if err != nil {
		return false, err
	}
	ov, om, err := o.hashes()
	if err != nil {
		return false, err
	}
	return cv != ov || cm != om, nil
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	r := maps.Clone(m)
	for k, v := range r {
		r[k] = copyValue(v)
	}
	return r
}

func copyValue(v any) any {
	switch e := v.(type) {
	case map[string]any:
		return copyMap(e)
	case []any:
		l := make([]any, len(e))
		for i, x := range e {
			l[i] = copyValue(x)
		}
		return l
	default:
		return v
	}
}

// DefaultConfig provides the initial configuration of an object
// created from the prototype, populated with the field defaults.
func (p *Prototype) DefaultConfig() Config {
	values := map[string]any{}
	for _, f := range p.Config {
		if f.Default == nil {
			continue
		}
		cur := values
		path := strings.Split(f.Name, "/")
		for _, n := range path[:len(path)-1] {
			m, ok := cur[n].(map[string]any)
			if !ok {
				m = map[string]any{}
				cur[n] = m
			}
			cur = m
		}
		cur[path[len(path)-1]] = copyValue(f.Default)
	}
	if len(values) == 0 {
		return Config{}
	}
	return Config{Values: values}
}
