package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	constraintAll = "+"
	constraintOdd = "odd"
)

// Constraint describes how many hosts a component must be mapped to.
// It is written in the list notation of bundle definitions:
//
//	[n]          exactly n hosts
//	[min, max]   between min and max hosts
//	[min, "+"]   at least min hosts and every host of the cluster
//	[min, "odd"] at least min hosts and an odd number, if mapped at all
//	["odd"]      an odd number of hosts
//
// The zero value does not restrict the mapping.
type Constraint struct {
	Min int
	// Max is the maximal host count, it is only effective if Bounded is set.
	Max     int
	Bounded bool
	All     bool
	Odd     bool

	notation []any
}

func NewConstraint(min, max int) Constraint {
	return Constraint{Min: min, Max: max, Bounded: true, notation: []any{min, max}}
}

func (c Constraint) IsRestricted() bool {
	return c.Min > 0 || c.Bounded || c.All || c.Odd
}

// Check evaluates the constraint for a component mapped on count hosts
// of a cluster with clusterHosts hosts. It returns a description of
// the violation or an empty string.
func (c Constraint) Check(count, clusterHosts int) string {
	if count < c.Min {
		return fmt.Sprintf("at least %d hosts required, found %d", c.Min, count)
	}
	if c.Bounded && count > c.Max {
		return fmt.Sprintf("at most %d hosts allowed, found %d", c.Max, count)
	}
	if c.All && count < clusterHosts {
		return fmt.Sprintf("must be mapped on all %d hosts, found %d", clusterHosts, count)
	}
	if c.Odd && count > 0 && count%2 == 0 {
		return fmt.Sprintf("odd number of hosts required, found %d", count)
	}
	return ""
}

func (c Constraint) String() string {
	if !c.IsRestricted() {
		return "[0,+inf]"
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("[%d,+inf]", c.Min)
	}
	return string(data)
}

func (c Constraint) MarshalJSON() ([]byte, error) {
	if c.notation != nil {
		return json.Marshal(c.notation)
	}
	if !c.IsRestricted() {
		return []byte("null"), nil
	}
	var n []any
	switch {
	case c.All:
		n = []any{c.Min, constraintAll}
	case c.Odd && c.Min <= 1 && !c.Bounded:
		n = []any{constraintOdd}
	case c.Odd:
		n = []any{c.Min, constraintOdd}
	case !c.Bounded:
		return nil, fmt.Errorf("constraint with minimum %d and without maximum cannot be expressed", c.Min)
	case c.Max == c.Min:
		n = []any{c.Min}
	default:
		n = []any{c.Min, c.Max}
	}
	return json.Marshal(n)
}

func (c *Constraint) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("constraint must be a list: %w", err)
	}
	r, err := ParseConstraint(list...)
	if err != nil {
		return err
	}
	*c = r
	return nil
}

// ParseConstraint interprets the list notation.
func ParseConstraint(list ...any) (Constraint, error) {
	var c Constraint
	if len(list) == 0 {
		return c, nil
	}
	c.notation = list
	if len(list) > 2 {
		return c, fmt.Errorf("constraint %v: at most two elements allowed", list)
	}

	first, err := constraintElement(list[0])
	if err != nil {
		return c, err
	}
	if len(list) == 1 {
		switch v := first.(type) {
		case int:
			c.Min, c.Max, c.Bounded = v, v, true
		case string:
			if v != constraintOdd {
				return c, fmt.Errorf("constraint %v: invalid single element %q", list, v)
			}
			c.Min, c.Odd = 1, true
		}
		return c, nil
	}

	min, ok := first.(int)
	if !ok {
		return c, fmt.Errorf("constraint %v: minimum must be a number", list)
	}
	c.Min = min
	second, err := constraintElement(list[1])
	if err != nil {
		return c, err
	}
	switch v := second.(type) {
	case int:
		if v < min {
			return c, fmt.Errorf("constraint %v: maximum less than minimum", list)
		}
		c.Max, c.Bounded = v, true
	case string:
		switch v {
		case constraintAll:
			c.All = true
		case constraintOdd:
			c.Odd = true
		default:
			return c, fmt.Errorf("constraint %v: invalid element %q", list, v)
		}
	}
	return c, nil
}

func constraintElement(e any) (any, error) {
	switch v := e.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) || v < 0 {
			return nil, fmt.Errorf("invalid constraint number %v", v)
		}
		return int(v), nil
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("invalid constraint element %v (%T)", e, e)
	}
}
