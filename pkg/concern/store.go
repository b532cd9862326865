package concern

import (
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/utils"
)

// Reader is the read access to a concern store.
type Reader interface {
	Get(id string) *Item
	Len() int
	All() []*Item

	// FindOwn provides the issue of the owner with the given cause.
	FindOwn(owner ObjectId, cause Cause) *Item
	// FindOwnByName provides the concern of the owner with the given
	// type and name.
	FindOwnByName(owner ObjectId, typ Type, name string) *Item

	// ConcernsOf provides all concerns appearing on the object.
	ConcernsOf(obj ObjectId) []*Item
	// OwnConcernsOf provides all concerns owned by the object.
	OwnConcernsOf(obj ObjectId) []*Item
	// IsReady reports whether no blocking concern appears on the object.
	IsReady(obj ObjectId) bool
}

// Store is the indexed collection of live concerns. It is not
// synchronized, concurrent access is organized by working on
// clones (see Clone) and publishing them as a whole.
type Store struct {
	items   map[string]*Item
	owned   map[ObjectId]sets.Set[string]
	related map[ObjectId]sets.Set[string]
	touched sets.Set[string]
}

var _ Reader = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		items:   map[string]*Item{},
		owned:   map[ObjectId]sets.Set[string]{},
		related: map[ObjectId]sets.Set[string]{},
		touched: sets.New[string](),
	}
}

// Clone provides an independent copy with an empty change set.
func (s *Store) Clone() *Store {
	n := &Store{
		items:   make(map[string]*Item, len(s.items)),
		owned:   make(map[ObjectId]sets.Set[string], len(s.owned)),
		related: make(map[ObjectId]sets.Set[string], len(s.related)),
		touched: sets.New[string](),
	}
	for k, v := range s.items {
		n.items[k] = v
	}
	for k, v := range s.owned {
		n.owned[k] = v.Clone()
	}
	for k, v := range s.related {
		n.related[k] = v.Clone()
	}
	return n
}

// Touched provides the ids of all concerns inserted, modified or
// deleted since the store has been cloned.
func (s *Store) Touched() []string {
	return sets.List(s.touched)
}

func (s *Store) Get(id string) *Item {
	return s.items[id]
}

func (s *Store) Len() int {
	return len(s.items)
}

func (s *Store) All() []*Item {
	return s.sorted(utils.MapKeys(s.items))
}

func (s *Store) FindOwn(owner ObjectId, cause Cause) *Item {
	for id := range s.owned[owner] {
		if i := s.items[id]; i.Type == TypeIssue && i.Cause == cause {
			return i
		}
	}
	return nil
}

func (s *Store) FindOwnByName(owner ObjectId, typ Type, name string) *Item {
	for id := range s.owned[owner] {
		if i := s.items[id]; i.Type == typ && i.Name == name {
			return i
		}
	}
	return nil
}

func (s *Store) ConcernsOf(obj ObjectId) []*Item {
	return s.sorted(s.related[obj].UnsortedList())
}

func (s *Store) OwnConcernsOf(obj ObjectId) []*Item {
	return s.sorted(s.owned[obj].UnsortedList())
}

func (s *Store) IsReady(obj ObjectId) bool {
	for id := range s.related[obj] {
		if s.items[id].IsBlocking() {
			return false
		}
	}
	return true
}

// Insert adds a concern. The owner is always added to the related
// objects. Issues are unique per owner and cause, flags and locks per
// owner, type and name. Inserting a duplicate is a no-op returning the
// existing item and false.
func (s *Store) Insert(i *Item) (*Item, bool) {
	var old *Item
	if i.Type == TypeIssue {
		old = s.FindOwn(i.Owner, i.Cause)
	} else {
		old = s.FindOwnByName(i.Owner, i.Type, i.Name)
	}
	if old != nil {
		return old, false
	}
	n := i.copy()
	if n.Related == nil {
		n.Related = sets.New[ObjectId]()
	}
	n.Related.Insert(n.Owner)
	s.items[n.Id] = n
	assure(s.owned, n.Owner).Insert(n.Id)
	for o := range n.Related {
		assure(s.related, o).Insert(n.Id)
	}
	s.touched.Insert(n.Id)
	return n, true
}

// Delete removes a concern from the store and from all its related objects.
func (s *Store) Delete(id string) bool {
	i := s.items[id]
	if i == nil {
		return false
	}
	delete(s.items, id)
	remove(s.owned, i.Owner, id)
	for o := range i.Related {
		remove(s.related, o, id)
	}
	s.touched.Insert(id)
	return true
}

// UpdateRelated replaces the related objects of a concern. The
// owner is always kept. It reports whether the set has changed.
func (s *Store) UpdateRelated(id string, related sets.Set[ObjectId]) (bool, error) {
	i := s.items[id]
	if i == nil {
		return false, notFound(id)
	}
	related = related.Clone().Insert(i.Owner)
	if related.Equal(i.Related) {
		return false, nil
	}
	for o := range i.Related.Difference(related) {
		remove(s.related, o, id)
	}
	for o := range related.Difference(i.Related) {
		assure(s.related, o).Insert(id)
	}
	n := i.copy()
	n.Related = related
	s.items[id] = n
	s.touched.Insert(id)
	return true, nil
}

// DeleteOwnedBy deletes all concerns owned by the object.
func (s *Store) DeleteOwnedBy(obj ObjectId) []string {
	ids := s.owned[obj].UnsortedList()
	for _, id := range ids {
		s.Delete(id)
	}
	slices.Sort(ids)
	return ids
}

// DropObject removes the object from the related objects of all
// concerns it appears on. Concerns owned by the object are deleted.
func (s *Store) DropObject(obj ObjectId) {
	s.DeleteOwnedBy(obj)
	for _, id := range s.related[obj].UnsortedList() {
		n := s.items[id].copy()
		n.Related.Delete(obj)
		s.items[id] = n
		s.touched.Insert(id)
	}
	delete(s.related, obj)
}

func (s *Store) sorted(ids []string) []*Item {
	r := make([]*Item, 0, len(ids))
	for _, id := range ids {
		r = append(r, s.items[id])
	}
	slices.SortFunc(r, CompareItem)
	return r
}

func assure(m map[ObjectId]sets.Set[string], k ObjectId) sets.Set[string] {
	s := m[k]
	if s == nil {
		s = sets.New[string]()
		m[k] = s
	}
	return s
}

func remove(m map[ObjectId]sets.Set[string], k ObjectId, id string) {
	if s := m[k]; s != nil {
		s.Delete(id)
		if len(s) == 0 {
			delete(m, k)
		}
	}
}
