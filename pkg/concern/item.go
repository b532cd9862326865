package concern

import (
	"cmp"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mandelsoft/concerns/pkg/model"
	"github.com/mandelsoft/concerns/pkg/utils"
)

type ObjectId = model.ObjectId

// Item is a live concern. Items held by a store are immutable,
// modifications always create a new item.
type Item struct {
	Id     string
	Owner  ObjectId
	Type   Type
	Cause  Cause
	Name   string
	Reason Reason
	// Related is the set of objects the concern appears on.
	Related sets.Set[ObjectId]
}

func (i *Item) IsBlocking() bool {
	return i.Type.IsBlocking()
}

func (i *Item) String() string {
	return fmt.Sprintf("%s[%s/%s/%s@%s]", i.Id, i.Type, i.Cause, i.Name, i.Owner)
}

// RelatedObjects provides the ordered list of related objects.
func (i *Item) RelatedObjects() []ObjectId {
	return utils.SortedList(i.Related, model.CompareObjectId)
}

func (i *Item) AppearsOn(id ObjectId) bool {
	return i.Related.Has(id)
}

func (i *Item) copy() *Item {
	n := *i
	n.Related = i.Related.Clone()
	return &n
}

// CompareItem orders items by owner, type, cause, name and id.
func CompareItem(a, b *Item) int {
	if c := model.CompareObjectId(a.Owner, b.Owner); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Type), string(b.Type)); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Cause), string(b.Cause)); c != 0 {
		return c
	}
	return cmp.Or(strings.Compare(a.Name, b.Name), strings.Compare(a.Id, b.Id))
}

// Record is the stable wire shape of a concern.
type Record struct {
	Id         string   `json:"id"`
	Type       Type     `json:"type"`
	Cause      Cause    `json:"cause"`
	Name       string   `json:"name"`
	IsBlocking bool     `json:"isBlocking"`
	Reason     Reason   `json:"reason"`
	Owner      ObjectId `json:"owner"`
}

func (i *Item) Record() Record {
	return Record{
		Id:         i.Id,
		Type:       i.Type,
		Cause:      i.Cause,
		Name:       i.Name,
		IsBlocking: i.IsBlocking(),
		Reason:     i.Reason,
		Owner:      i.Owner,
	}
}

func Records(items []*Item) []Record {
	return utils.TransformSlice(items, (*Item).Record)
}
