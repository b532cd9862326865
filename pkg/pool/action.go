package pool

import (
	"fmt"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/mandelsoft/concerns/pkg/model"
)

// Action handles the requests of a pool. Reconcile is called for
// object keys, Command for command keys.
type Action interface {
	Reconcile(Pool, MessageContext, model.ObjectId) Status
	Command(Pool, MessageContext, Command) Status
}

type DefaultAction struct{}

func (a DefaultAction) Reconcile(_ Pool, _ MessageContext, id model.ObjectId) Status {
	return StatusFailed(fmt.Errorf("unexpected reconcile request for %q", id))
}

func (a DefaultAction) Command(_ Pool, _ MessageContext, c Command) Status {
	return StatusFailed(fmt.Errorf("unexpected command request for %q", c))
}

type Command string

func (c Command) String() string {
	return string(c)
}

// ObjectType selects the object keys of a kind handled by an action.
// The empty type matches all kinds.
type ObjectType model.Kind

func (o ObjectType) String() string {
	if o == "" {
		return "*"
	}
	return string(o)
}

// AllObjects selects all object keys.
const AllObjects = ObjectType("")

const tick = 30 * time.Second
const tickCmd = "TICK"

type ActionTargetSpec interface {
	String() string
}

// Matcher selects commands by a glob pattern.
type Matcher interface {
	ActionTargetSpec
	Match(cmd string) bool
}

type globMatcher string

func NewCommandMatcher(pattern string) Matcher {
	return globMatcher(pattern)
}

func (m globMatcher) String() string {
	return string(m)
}

func (m globMatcher) Match(cmd string) bool {
	ok, _ := path.Match(string(m), cmd)
	return ok
}

type actions []Action

func (l actions) add(a Action) actions {
	for _, r := range l {
		if r == a {
			return l
		}
	}
	return append(l, a)
}

type actionMapping struct {
	lock     sync.RWMutex
	values   map[ActionTargetSpec]actions
	matchers map[Matcher]actions
}

func newActionMapping() *actionMapping {
	return &actionMapping{
		values:   map[ActionTargetSpec]actions{},
		matchers: map[Matcher]actions{},
	}
}

func (am *actionMapping) getActions(key ActionTargetSpec) actions {
	am.lock.RLock()
	defer am.lock.RUnlock()

	switch k := key.(type) {
	case Command:
		if i := am.values[k]; i != nil {
			return i
		}
		var r actions
		for m, i := range am.matchers {
			if m.Match(string(k)) {
				for _, a := range i {
					r = r.add(a)
				}
			}
		}
		return r
	case ObjectType:
		r := slices.Clone(am.values[k])
		if k != AllObjects {
			for _, a := range am.values[AllObjects] {
				r = r.add(a)
			}
		}
		return r
	}
	return am.values[key]
}

func (am *actionMapping) addAction(key ActionTargetSpec, a Action) {
	am.lock.Lock()
	defer am.lock.Unlock()

	switch k := key.(type) {
	case Matcher:
		am.matchers[k] = am.matchers[k].add(a)
	default:
		am.values[k] = am.values[k].add(a)
	}
}
