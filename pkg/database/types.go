package database

import (
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/model"
)

var ErrNotExist = fmt.Errorf("object not found")
var ErrCorrupted = fmt.Errorf("corrupted database")

// ConcernRecord is a row of the concern table.
type ConcernRecord struct {
	Id     string         `json:"id"`
	Owner  model.ObjectId `json:"owner"`
	Type   concern.Type   `json:"type"`
	Cause  concern.Cause  `json:"cause"`
	Name   string         `json:"name"`
	Reason concern.Reason `json:"reason"`
}

// Relation is a row of the association table linking a concern
// to one of its related objects.
type Relation struct {
	Concern string         `json:"concern"`
	Object  model.ObjectId `json:"object"`
}

// Content is the complete content of the concern database.
type Content struct {
	Concerns  []ConcernRecord
	Relations []Relation
}

// Change describes the modifications of a single transaction.
// Set contains the new or modified concerns, with their complete
// association rows.
type Change struct {
	Set       []ConcernRecord
	Relations []Relation
	Deleted   []string
}

func (c *Change) IsEmpty() bool {
	return len(c.Set) == 0 && len(c.Deleted) == 0
}

// Database is the persistence of the concern and association tables.
// Apply must apply a change completely or not at all.
type Database interface {
	Apply(c *Change) error
	Load() (*Content, error)
	ListConcernIds() ([]string, error)
}

func RecordFor(i *concern.Item) ConcernRecord {
	return ConcernRecord{
		Id:     i.Id,
		Owner:  i.Owner,
		Type:   i.Type,
		Cause:  i.Cause,
		Name:   i.Name,
		Reason: i.Reason,
	}
}

func RelationsFor(i *concern.Item) []Relation {
	var r []Relation
	for _, o := range i.RelatedObjects() {
		r = append(r, Relation{Concern: i.Id, Object: o})
	}
	return r
}

// AddItem adds a concern with its related objects to the change.
func (c *Change) AddItem(i *concern.Item) {
	c.Set = append(c.Set, RecordFor(i))
	c.Relations = append(c.Relations, RelationsFor(i)...)
}

func (c *Change) AddDeleted(id string) {
	c.Deleted = append(c.Deleted, id)
}

// Items joins the concern and association table into concern items.
// Relations for unknown concerns are reported as corruption.
func (c *Content) Items() ([]*concern.Item, error) {
	items := map[string]*concern.Item{}
	for _, r := range c.Concerns {
		items[r.Id] = &concern.Item{
			Id:      r.Id,
			Owner:   r.Owner,
			Type:    r.Type,
			Cause:   r.Cause,
			Name:    r.Name,
			Reason:  r.Reason,
			Related: sets.New[model.ObjectId](),
		}
	}
	for _, r := range c.Relations {
		i := items[r.Concern]
		if i == nil {
			return nil, fmt.Errorf("%w: relation for unknown concern %q", ErrCorrupted, r.Concern)
		}
		i.Related.Insert(r.Object)
	}
	list := make([]*concern.Item, 0, len(items))
	for _, i := range items {
		list = append(list, i)
	}
	slices.SortFunc(list, func(a, b *concern.Item) int { return strings.Compare(a.Id, b.Id) })
	return list, nil
}
